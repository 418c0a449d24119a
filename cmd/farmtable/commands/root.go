// Package commands defines all Cobra CLI commands for the farmtable binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/audit"
	"github.com/54b3r/farmtable-go/internal/config"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "farmtable",
		Short: "Semantic search, recommendations and pricing for a farm-to-table marketplace",
		Long: `farmtable ranks produce listings by meaning, answers shopper questions
with grounded recommendations, suggests listing prices and summarizes market
trends. It runs as an HTTP API (farmtable serve) or as one-shot commands that
print JSON.

The AI backend is selected with MODEL_PROVIDER and EMBEDDING_PROVIDER, or a
YAML config file (~/.farmtable/config.yaml). A .env file in the working
directory is read as well; real environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.farmtable/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewPriceCmd(),
		NewTrendsCmd(),
		NewBackfillCmd(),
		NewSeedKnowledgeCmd(),
		NewSeedCatalogCmd(),
		NewVersionCmd(),
	)

	return root
}
