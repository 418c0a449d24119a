package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/version"
)

// NewVersionCmd constructs the `farmtable version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the farmtable version, git commit, and build date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, version.Get())
		},
	}
}
