package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/server"
	"github.com/54b3r/farmtable-go/internal/tracing"
	"github.com/54b3r/farmtable-go/internal/version"
)

// NewServeCmd constructs the `farmtable serve` command, which wires every
// component and starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var (
		host           string
		port           int
		requestTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the farmtable HTTP API",
		Long: `Start the farmtable HTTP API.

Routes cover produce search and listing creation, recommendations, pricing
analysis and insights, market trends and analysis, conversation history and
analytics, and the knowledge base. GET /api/health, GET /api/ready and
GET /metrics are unauthenticated; every other /api route requires
FARMTABLE_API_KEY as a Bearer token when it is set.

Examples:
  farmtable serve
  farmtable serve --port 9090
  CATALOG_BACKEND=postgres DATABASE_URL=postgres://... farmtable serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			log.Info("serve starting", slog.String("version", version.String()))

			flush, ok := tracing.Setup()
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)
			a, err := buildApp(ctx, log, metricsObservers(metrics))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			svc := server.Services{
				Search:    a.ranker,
				Recommend: a.recommender,
				Listings:  a.listings,
				Pricing:   a.pricing,
				Trends:    a.trends,
				Analyst:   a.analyst,
				Knowledge: a.knowledge,
			}
			// A nil store must not become a non-nil interface.
			if a.history != nil {
				svc.History = a.history
			}
			if a.analytics != nil {
				svc.Analytics = a.analytics
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("FARMTABLE_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("FARMTABLE_PORT", port)
			}

			srv, err := server.New(svc, &server.Config{
				Host:           host,
				Port:           port,
				RequestTimeout: requestTimeout,
				Logger:         log,
				Pingers:        a.pingers,
				RateLimit:      getEnvFloat("FARMTABLE_RATE_LIMIT", 0),
				RateBurst:      getEnvInt("FARMTABLE_RATE_BURST", 0),
				APIKey:         os.Getenv("FARMTABLE_API_KEY"),
				Metrics:        metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", 60*time.Second, "Upper bound on AI-backed requests")

	return cmd
}
