package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// NewSearchCmd constructs the `farmtable search` command.
func NewSearchCmd() *cobra.Command {
	var (
		limit   int
		filters catalog.Filters
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank active listings by meaning",
		Long: `Rank active produce listings against a free-text query and print the
results with their cosine similarity. When the embedding backend is down the
results come from a keyword match and carry similarity 0.

Examples:
  farmtable search "sweet mangoes for a fruit salad"
  farmtable search "leafy greens" --category Vegetables --max-price 80`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer a.Close()

			results, err := a.ranker.Rank(ctx, strings.Join(args, " "), filters, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return printJSON(cmd, results)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&filters.Category, "category", "", "Category substring filter")
	cmd.Flags().Float64Var(&filters.MaxPrice, "max-price", 0, "Inclusive price ceiling")
	cmd.Flags().StringVar(&filters.FarmingMethod, "method", "", "Farming method filter")
	cmd.Flags().StringVar(&filters.Season, "season", "", "Season filter (Year-round listings always match)")
	cmd.Flags().StringVar(&filters.Location, "location", "", "Location substring filter")

	return cmd
}
