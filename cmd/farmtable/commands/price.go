package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/pricing"
)

// NewPriceCmd constructs the `farmtable price` command.
func NewPriceCmd() *cobra.Command {
	var (
		req      pricing.Request
		producer string
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Suggest a listing price from comparable listings",
		Long: `Suggest a price for a prospective listing from recent comparable listings,
the farming method, the season and the quantity. With --producer, print that
producer's pricing insights instead.

Examples:
  farmtable price --name Tomatoes --category Vegetables --method Organic --quantity 30
  farmtable price --producer p-123`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			defer a.Close()

			if producer != "" {
				ins, err := a.pricing.Insights(ctx, producer)
				if err != nil {
					return fmt.Errorf("price: %w", err)
				}
				return printJSON(cmd, ins)
			}

			snap, err := a.pricing.Analyze(ctx, req)
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			return printJSON(cmd, snap)
		},
	}

	cmd.Flags().StringVar(&req.ProduceName, "name", "", "Produce name")
	cmd.Flags().StringVar(&req.Category, "category", "", "Produce category")
	cmd.Flags().StringVar(&req.Location, "location", "", "Listing location (default Philippines)")
	cmd.Flags().StringVar(&req.FarmingMethod, "method", "", "Farming method (default Conventional)")
	cmd.Flags().StringVar(&req.Season, "season", "", "Season (default Year-round)")
	cmd.Flags().Float64Var(&req.Quantity, "quantity", 0, "Quantity on offer (default 50)")
	cmd.Flags().StringVar(&producer, "producer", "", "Print pricing insights for this producer id")

	return cmd
}
