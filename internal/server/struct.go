package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/farmtable-go/internal/agent"
	"github.com/54b3r/farmtable-go/internal/analytics"
	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/ingestion"
	"github.com/54b3r/farmtable-go/internal/knowledge"
	"github.com/54b3r/farmtable-go/internal/market"
	"github.com/54b3r/farmtable-go/internal/pricing"
	"github.com/54b3r/farmtable-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RequestTimeout bounds each AI-backed request. When it fires the
	// handlers return their degraded result. Defaults to 60s if zero.
	RequestTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Metrics receives request and degradation metrics. If nil, a set is
	// registered against prometheus.DefaultRegisterer.
	Metrics *Metrics
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Searcher ranks listings for POST /api/produce/search. *rag.Ranker
// satisfies it.
type Searcher interface {
	Rank(ctx context.Context, query string, f catalog.Filters, topK int) ([]rag.ScoredProduce, error)
}

// Recommender answers POST /api/ai/recommend. *agent.Recommender satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// ListingCreator stores new listings and the producers they belong to.
// *ingestion.Pipeline satisfies it.
type ListingCreator interface {
	Create(ctx context.Context, in ingestion.NewListing) (*domain.ProduceRecord, error)
	RegisterProducer(ctx context.Context, p domain.ProducerInfo) (*domain.ProducerInfo, error)
}

// Pricer backs the pricing routes. *pricing.Engine satisfies it.
type Pricer interface {
	Analyze(ctx context.Context, req pricing.Request) (*domain.PricingSnapshot, error)
	Insights(ctx context.Context, producerID string) (*pricing.Insights, error)
}

// TrendSource backs GET /api/pricing/trends. *market.Synthesizer satisfies it.
type TrendSource interface {
	Trends(ctx context.Context, f market.Filters) (*market.Response, error)
}

// MarketAnalyst backs POST /api/ai/market-analysis. *market.Analyst
// satisfies it.
type MarketAnalyst interface {
	Analyze(ctx context.Context, req market.AnalysisRequest) (*market.AnalysisResult, error)
}

// HistoryReader lists conversation turns. store.ConversationStore satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, userID, sessionID string, n int) ([]domain.ConversationTurn, error)
}

// AnalyticsReader summarizes conversations. *analytics.Service satisfies it.
type AnalyticsReader interface {
	Summary(ctx context.Context, timeRange, userID string) (analytics.Summary, error)
}

// KnowledgeBase backs /api/knowledge. *knowledge.Service satisfies it.
type KnowledgeBase interface {
	Create(ctx context.Context, in knowledge.NewEntry) (*domain.KnowledgeEntry, error)
	Search(ctx context.Context, query, category string, limit int) ([]rag.ScoredKnowledge, error)
	List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error)
}

// Services are the components behind the API. A nil field leaves its routes
// unregistered.
type Services struct {
	Search    Searcher
	Recommend Recommender
	Listings  ListingCreator
	Pricing   Pricer
	Trends    TrendSource
	Analyst   MarketAnalyst
	History   HistoryReader
	Analytics AnalyticsReader
	Knowledge KnowledgeBase
}

// Server is the HTTP server that exposes the marketplace API.
type Server struct {
	// svc holds the components each route delegates to.
	svc Services
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics records request counts, latencies and degraded outcomes.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/produce/search.
type searchRequest struct {
	// Query is the free-text search.
	Query string `json:"query"`
	// Limit caps the result count (default 10, max 50).
	Limit int `json:"limit,omitempty"`
	// Filters narrows the candidates before ranking.
	Filters *catalog.Filters `json:"filters,omitempty"`
}

// searchResponse is the JSON response for POST /api/produce/search.
type searchResponse struct {
	Results []rag.ScoredProduce `json:"results"`
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
}

// conversationsResponse is the JSON response for GET /api/conversations.
type conversationsResponse struct {
	Conversations []domain.ConversationTurn `json:"conversations"`
	Count         int                       `json:"count"`
}

// knowledgeSearchResponse is the JSON response for GET /api/knowledge?q=.
type knowledgeSearchResponse struct {
	Results []rag.ScoredKnowledge `json:"results"`
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
}

// knowledgeListResponse is the JSON response for GET /api/knowledge.
type knowledgeListResponse struct {
	Entries []domain.KnowledgeEntry `json:"entries"`
	Count   int                     `json:"count"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
	// Field names the offending request field on validation errors.
	Field string `json:"field,omitempty"`
}
