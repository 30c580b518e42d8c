// Package auditcmder provides the audit command, which reports module health
// and synergy and projects the audit into the graph.
package auditcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshmindco/meshmind/pkg/config"
	"github.com/meshmindco/meshmind/pkg/engine"
	"github.com/meshmindco/meshmind/pkg/logger"
)

const auditLongDesc string = `Audit the health and interconnection of the core modules.

Each module is scored on its synergy connections and recent error rate, and
the audit results are recorded in the graph memory alongside the sessions
they cover.`

func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit module health and synergy",
		Long:  auditLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}

			return run(cmd.Context(), configPath, debug)
		},
	}

	return cmd
}

func run(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(debug)
	defer func() { _ = log.Sync() }()

	eng, err := engine.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer eng.Close()

	eng.Manager.AuditCoreModules(ctx)
	fmt.Print(eng.Manager.HealthReport())
	return nil
}
