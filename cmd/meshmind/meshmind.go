// Package meshmindcmder
package meshmindcmder

import (
	"github.com/spf13/cobra"

	auditcmder "github.com/meshmindco/meshmind/cmd/meshmind/audit"
	chatcmder "github.com/meshmindco/meshmind/cmd/meshmind/chat"
	configcmder "github.com/meshmindco/meshmind/cmd/meshmind/config"
	"github.com/meshmindco/meshmind/cmd/version"
)

const meshmindLongDesc string = `Meshmind is a graph-backed conversation engine for LLM providers.

Chat sessions are routed across registered providers by capability and cost,
persisted into a hypergraph memory, and mined for concepts in the background.

  meshmind chat      Start an interactive chat session
  meshmind audit     Audit module health and synergy
  meshmind config    Manage the meshmind configuration`

const meshmindShortDesc string = "Meshmind - graph-backed LLM sessions"

func NewMeshmindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meshmind",
		Short: meshmindShortDesc,
		Long:  meshmindLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to config.toml (defaults to ~/.meshmind/config.toml)")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(auditcmder.NewAuditCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(version.NewVersionCmd())

	return cmd
}
