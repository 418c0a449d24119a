package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/farmtable-go/internal/agent"
	"github.com/54b3r/farmtable-go/internal/analytics"
	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/embedder"
	"github.com/54b3r/farmtable-go/internal/ingestion"
	"github.com/54b3r/farmtable-go/internal/knowledge"
	"github.com/54b3r/farmtable-go/internal/market"
	"github.com/54b3r/farmtable-go/internal/pricing"
	"github.com/54b3r/farmtable-go/internal/provider"
	"github.com/54b3r/farmtable-go/internal/rag"
	"github.com/54b3r/farmtable-go/internal/server"
	"github.com/54b3r/farmtable-go/internal/store"
)

// observers receive degradation events. Zero values are no-ops.
type observers struct {
	recommend func(outcome string)
	fallback  func(corpus string)
	trendPath func(path string)
}

// metricsObservers routes observer events into the server metrics.
func metricsObservers(m *server.Metrics) observers {
	return observers{
		recommend: m.ObserveRecommendation,
		fallback:  m.ObserveFallback,
		trendPath: m.ObserveTrendPath,
	}
}

// app is the fully wired component graph shared by serve and the one-shot
// commands.
type app struct {
	providerCfg *provider.Config
	completer   provider.Completer
	embedder    embedder.Embedder
	catalog     catalog.Repository
	history     store.ConversationStore

	ranker      *rag.Ranker
	recommender *agent.Recommender
	pricing     *pricing.Engine
	trends      *market.Synthesizer
	analyst     *market.Analyst
	listings    *ingestion.Pipeline
	knowledge   *knowledge.Service
	analytics   *analytics.Service

	pingers []server.Pinger
	closers []func()
}

// Close releases every opened resource in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires the component graph from the environment. Missing AI
// credentials are not fatal: the affected client becomes Unavailable and
// the services degrade. Unreachable storage is fatal.
func buildApp(ctx context.Context, log *slog.Logger, obs observers) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}

	completer, providerCfg, cerr := provider.NewCompleterFromEnv(ctx)
	if cerr != nil {
		log.Warn("completion backend unavailable, AI text will use fallbacks",
			slog.String("provider", string(providerCfg.Backend)),
			slog.Any("error", cerr),
		)
	}
	a.completer, a.providerCfg = completer, providerCfg
	a.pingers = append(a.pingers, server.NewLLMPinger(providerCfg))

	emb, eerr := embedder.NewFromEnv(ctx)
	if eerr != nil {
		if !errors.Is(eerr, domain.ErrProviderUnavailable) {
			return nil, fmt.Errorf("embedder: %w", eerr)
		}
		log.Warn("embedding backend unavailable, search will use the lexical fallback", slog.Any("error", eerr))
		emb = embedder.Unavailable{Reason: eerr.Error()}
	}
	a.embedder = emb
	dims := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embedder.Backend()))

	if err := a.openCatalog(ctx, log); err != nil {
		return nil, err
	}
	knowledgeRepo, err := a.openKnowledge(ctx, log, dims)
	if err != nil {
		return nil, err
	}
	a.openHistory(log)

	a.ranker, err = rag.NewRanker(emb, a.catalog, rag.WithRankerFallbackObserver(obs.fallback))
	if err != nil {
		return nil, err
	}
	retriever, err := rag.NewKnowledgeRetriever(emb, knowledgeRepo, rag.DefaultKnowledgeTopK,
		rag.WithRetrieverFallbackObserver(obs.fallback))
	if err != nil {
		return nil, err
	}

	a.recommender, err = agent.NewRecommender(agent.Config{
		Completer: completer,
		Ranker:    a.ranker,
		Knowledge: retriever,
		History:   a.history,
		Observe:   obs.recommend,
	})
	if err != nil {
		return nil, err
	}

	a.pricing = pricing.NewEngine(a.catalog, completer)

	var trendOpts []market.Option
	if obs.trendPath != nil {
		trendOpts = append(trendOpts, market.WithPathObserver(obs.trendPath))
	}
	a.trends = market.NewSynthesizer(a.catalog, completer, trendOpts...)
	a.analyst = market.NewAnalyst(a.trends, completer)

	a.listings, err = ingestion.NewPipeline(a.catalog, emb, agent.NewDescriber(completer), ingestion.Config{Dimensions: dims})
	if err != nil {
		return nil, err
	}
	if err := a.seedMemoryCatalog(ctx, log); err != nil {
		return nil, err
	}
	a.knowledge = knowledge.NewService(knowledgeRepo, emb, retriever)
	if a.history != nil {
		a.analytics = analytics.NewService(a.history)
	}
	return a, nil
}

// openCatalog selects the produce catalog from CATALOG_BACKEND. The memory
// backend is seeded once the ingestion pipeline is wired.
func (a *app) openCatalog(ctx context.Context, log *slog.Logger) error {
	switch backend := strings.ToLower(getEnvOrDefault("CATALOG_BACKEND", "memory")); backend {
	case "memory":
		a.catalog = catalog.NewMemoryRepository()
		log.Info("catalog: in-memory repository")
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("catalog: CATALOG_BACKEND=postgres requires DATABASE_URL")
		}
		pool, err := catalog.NewPool(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		repo := catalog.NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		a.catalog = repo
		a.pingers = append(a.pingers, server.NewNamedPinger("postgres", repo))
		log.Info("catalog: postgres repository ready")
	default:
		return fmt.Errorf("catalog: unknown CATALOG_BACKEND %q (valid: memory, postgres)", backend)
	}
	return nil
}

// openKnowledge selects the knowledge repository from KNOWLEDGE_BACKEND.
func (a *app) openKnowledge(ctx context.Context, log *slog.Logger, dims int) (knowledge.Repository, error) {
	switch backend := strings.ToLower(getEnvOrDefault("KNOWLEDGE_BACKEND", "memory")); backend {
	case "memory":
		log.Info("knowledge: in-memory repository")
		return knowledge.NewMemoryRepository(), nil
	case "qdrant":
		cfg := &knowledge.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "farmtable_knowledge"),
			VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}
		repo, err := knowledge.NewQdrantRepository(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("knowledge: connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		a.pingers = append(a.pingers, server.NewQdrantPinger(repo.Client()))
		log.Info("knowledge: qdrant repository ready",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)
		return repo, nil
	default:
		return nil, fmt.Errorf("knowledge: unknown KNOWLEDGE_BACKEND %q (valid: memory, qdrant)", backend)
	}
}

// openHistory opens the conversation store. FARMTABLE_HISTORY_DB overrides
// the default path (~/.farmtable/history.db); "disabled" turns history off.
// Failures disable history rather than the process.
func (a *app) openHistory(log *slog.Logger) {
	dbPath := os.Getenv("FARMTABLE_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via FARMTABLE_HISTORY_DB=disabled")
		return
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return
		}
		dbPath = p
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return
	}
	a.history = hs
	a.closers = append(a.closers, func() { _ = hs.Close() })
	a.pingers = append(a.pingers, server.NewNamedPinger("sqlite", hs))
	log.Info("history: store opened", slog.String("path", dbPath))
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
