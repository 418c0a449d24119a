// Package server implements the HTTP server that exposes produce search,
// recommendations, pricing, market trends, conversation history and the
// knowledge base as a JSON API.
// The server is started by the `farmtable serve` CLI command.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/farmtable-go/internal/logging"
)

// New constructs a Server from the provided services and config.
func New(svc Services, cfg *Config) (*Server, error) {
	if svc.Search == nil && svc.Recommend == nil && svc.Pricing == nil {
		return nil, fmt.Errorf("server: at least one of search, recommend or pricing must be configured")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must outlast RequestTimeout so degraded answers still
		// reach the client.
		cfg.WriteTimeout = cfg.RequestTimeout + 15*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		svc:     svc,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: cfg.Metrics,
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: FARMTABLE_API_KEY is not set, /api routes are unauthenticated")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.ObserveRateLimited)
	s.stopRL = stop

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.routes(rl)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the mux. Health, readiness and metrics are public; every
// other /api route sits behind the rate limiter and bearer auth.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	api := http.NewServeMux()
	handle := func(pattern, name string, h http.HandlerFunc) {
		api.HandleFunc(pattern, s.metrics.instrument(name, h))
	}

	if s.svc.Search != nil {
		handle("POST /api/produce/search", "search", s.handleSearch)
	}
	if s.svc.Listings != nil {
		handle("POST /api/produce", "create_listing", s.handleCreateListing)
		handle("PUT /api/producers/{id}", "producer_upsert", s.handleUpsertProducer)
	}
	if s.svc.Recommend != nil {
		handle("POST /api/ai/recommend", "recommend", s.handleRecommend)
	}
	if s.svc.Analyst != nil {
		handle("POST /api/ai/market-analysis", "market_analysis", s.handleMarketAnalysis)
	}
	if s.svc.Pricing != nil {
		handle("POST /api/pricing/analyze", "pricing_analyze", s.handlePricingAnalyze)
		handle("GET /api/pricing/insights", "pricing_insights", s.handlePricingInsights)
	}
	if s.svc.Trends != nil {
		handle("GET /api/pricing/trends", "trends", s.handleTrends)
	}
	if s.svc.History != nil {
		handle("GET /api/conversations", "conversations", s.handleConversations)
	}
	if s.svc.Analytics != nil {
		handle("GET /api/conversations/analytics", "analytics", s.handleAnalytics)
	}
	if s.svc.Knowledge != nil {
		handle("GET /api/knowledge", "knowledge_list", s.handleKnowledgeList)
		handle("POST /api/knowledge", "knowledge_create", s.handleKnowledgeCreate)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", rl.middleware(authMiddleware(s.cfg.APIKey, api)))
	mux.HandleFunc("GET /api/health", s.metrics.instrument("health", s.handleHealth))
	mux.HandleFunc("GET /api/ready", s.metrics.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	return mux
}

// Handler returns the fully wrapped HTTP handler. Tests drive it with
// httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("farmtable server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		defer s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
