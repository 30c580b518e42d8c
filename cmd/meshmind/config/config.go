// Package configcmder provides config management subcommands.
package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshmindco/meshmind/pkg/config"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the meshmind configuration",
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.toml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}
			if path == "" {
				path = config.DefaultPath()
			}

			if err := config.Save(config.NewDefaultConfig(), path); err != nil {
				return err
			}

			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			fmt.Printf("version: %d\n", cfg.Version)
			fmt.Printf("graph backend: %s\n", cfg.Graph.Backend)
			fmt.Printf("active window: %ds\n", cfg.Session.ActiveWindowSeconds)
			fmt.Printf("event stream: %s\n", cfg.EventStream.Provider)
			for name, p := range cfg.Providers {
				fmt.Printf("provider %s: model=%s context=%d\n", name, p.Model, p.MaxContextLength)
			}
			return nil
		},
	}
}
