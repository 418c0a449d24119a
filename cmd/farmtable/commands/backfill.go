package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/logging"
)

// NewBackfillCmd constructs the `farmtable backfill` command, which
// (re)embeds listings whose vector is missing or stale.
func NewBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Embed listings with missing or stale vectors",
		Long: `Scan the catalog and embed every listing whose vector is missing or was
computed from a different embedding text. Short descriptions are rewritten
first. Running it twice in a row is a no-op the second time.

Examples:
  CATALOG_BACKEND=postgres farmtable backfill`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			defer a.Close()

			res, err := a.listings.Backfill(ctx, func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			log.Info("backfill complete",
				slog.Int("scanned", res.Scanned),
				slog.Int("updated", res.Updated),
				slog.Int("failed", res.Failed),
			)
			return printJSON(cmd, res)
		},
	}
}
