// Package version
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshmindco/meshmind/pkg/buildinfo"
)

type VersionCommander struct{}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	return cmd
}

func (c *VersionCommander) run() error {
	fmt.Printf("Version: %s\nSha: %s\nBuilt at: %s\n", buildinfo.Version, buildinfo.Sha, buildinfo.Buildtime)
	return nil
}
