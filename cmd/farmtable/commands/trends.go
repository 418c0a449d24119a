package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/market"
)

// NewTrendsCmd constructs the `farmtable trends` command.
func NewTrendsCmd() *cobra.Command {
	var (
		f       market.Filters
		analyze string
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Summarize market trends for the most-supplied produce",
		Long: `Summarize price trends for the most-supplied produce among the newest
active listings. With --analyze, print a structured market analysis for one
produce instead; that mode requires a configured completion backend.

Examples:
  farmtable trends --category Fruits
  farmtable trends --analyze Mango --location Davao`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("trends: %w", err)
			}
			defer a.Close()

			if analyze != "" {
				res, err := a.analyst.Analyze(ctx, market.AnalysisRequest{
					ProduceName: analyze,
					Category:    f.Category,
					Location:    f.Location,
				})
				if err != nil {
					return fmt.Errorf("trends: %w", err)
				}
				return printJSON(cmd, res)
			}

			resp, err := a.trends.Trends(ctx, f)
			if err != nil {
				return fmt.Errorf("trends: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}

	cmd.Flags().StringVar(&f.Category, "category", "", "Category filter")
	cmd.Flags().StringVar(&f.Location, "location", "", "Location filter")
	cmd.Flags().StringVar(&analyze, "analyze", "", "Produce name to analyze")

	return cmd
}
