package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/agent"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// NewAskCmd constructs the `farmtable ask` command, which answers one
// shopper question with a grounded recommendation.
func NewAskCmd() *cobra.Command {
	var (
		req    agent.Request
		uctx   agent.UserContext
		prefer []string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask for produce recommendations",
		Long: `Ask a free-text question and get a recommendation narrative grounded in the
catalog, the knowledge base and the asker's recent questions. Pass --user or
--session to keep history between invocations.

Examples:
  farmtable ask "what is good for a summer salad?"
  farmtable ask --session s-42 --location Benguet "anything organic this week?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			req.Question = strings.Join(args, " ")
			uctx.Preferences = prefer
			if uctx.Location != "" || uctx.Season != "" || len(uctx.Preferences) > 0 {
				req.Context = &uctx
			}

			res, err := a.recommender.Recommend(ctx, req)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&req.UserID, "user", "", "User id for conversation history")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "Session id for conversation history")
	cmd.Flags().StringVar(&uctx.Location, "location", "", "Shopper location")
	cmd.Flags().StringVar(&uctx.Season, "season", "", "Season to prefer")
	cmd.Flags().StringSliceVar(&prefer, "prefer", nil, "Preferences (repeatable or comma-separated)")

	return cmd
}
