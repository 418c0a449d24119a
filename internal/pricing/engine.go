// Package pricing suggests prices for a producer's listing from comparable
// catalog listings and fixed multiplier rules, with an AI-written rationale.
// The model explains the number; it never decides it.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/provider"
)

const (
	comparableLimit = 20

	systemPrompt      = "You are a farm-to-table pricing expert who helps producers set competitive prices based on market data, quality factors, and seasonal trends."
	fallbackReasoning = "Unable to generate pricing analysis."
	reasoningTokens   = 300
	reasoningTemp     = 0.3
)

// Request defaults applied by Normalize.
const (
	DefaultLocation      = "Philippines"
	DefaultFarmingMethod = "Conventional"
	DefaultQuantity      = 50
)

// Source is the slice of the catalog the engine reads.
// catalog.Repository satisfies it.
type Source interface {
	FindRecentComparable(ctx context.Context, name, category string, limit int) ([]domain.ProduceRecord, error)
	ListByProducer(ctx context.Context, producerID string) ([]domain.ProduceRecord, error)
}

// Request is a pricing analysis request.
type Request struct {
	ProduceName   string  `json:"produceName"`
	Category      string  `json:"category"`
	Location      string  `json:"location,omitempty"`
	FarmingMethod string  `json:"farmingMethod,omitempty"`
	Season        string  `json:"season,omitempty"`
	Quantity      float64 `json:"quantity,omitempty"`
}

// Normalize validates the required fields and fills defaults.
func (r *Request) Normalize() error {
	r.ProduceName = strings.TrimSpace(r.ProduceName)
	r.Category = strings.TrimSpace(r.Category)
	if r.ProduceName == "" {
		return domain.NewValidationError("produceName", "is required")
	}
	if r.Category == "" {
		return domain.NewValidationError("category", "is required")
	}
	if strings.TrimSpace(r.Location) == "" {
		r.Location = DefaultLocation
	}
	if strings.TrimSpace(r.FarmingMethod) == "" {
		r.FarmingMethod = DefaultFarmingMethod
	}
	if strings.TrimSpace(r.Season) == "" {
		r.Season = domain.YearRound
	}
	if r.Quantity <= 0 {
		r.Quantity = DefaultQuantity
	}
	return nil
}

// Engine computes pricing snapshots. It is safe for concurrent use when its
// RandSource is.
type Engine struct {
	source    Source
	completer provider.Completer
	rand      RandSource
	now       func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithRand replaces the demand-indicator jitter source.
func WithRand(r RandSource) Option {
	return func(e *Engine) { e.rand = r }
}

// WithClock replaces the clock used for the seasonal multiplier.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine reading comparables from src. A nil completer
// always yields the fallback rationale.
func NewEngine(src Source, c provider.Completer, opts ...Option) *Engine {
	if c == nil {
		c = provider.Unavailable{}
	}
	e := &Engine{source: src, completer: c, rand: globalRand{}, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// stats are the market statistics over the comparable set.
type stats struct {
	count        int
	average      float64
	min, max     float64
	exactAverage float64
	newestFirst  []float64
}

// Analyze returns the pricing snapshot for req. Validation and repository
// errors are returned; a failing completion only replaces the rationale.
func (e *Engine) Analyze(ctx context.Context, req Request) (*domain.PricingSnapshot, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	comparables, err := e.source.FindRecentComparable(ctx, req.ProduceName, req.Category, comparableLimit)
	if err != nil {
		return nil, fmt.Errorf("pricing: load comparables: %w", err)
	}
	st := computeStats(comparables, req)

	reasoning := e.reasoning(ctx, req, st)

	month := e.now().Month()
	seasonal := SeasonalMultiplier(req.Season, month)

	base := st.exactAverage
	if base == 0 {
		base = st.average
	}
	suggested := base * MethodMultiplier(req.FarmingMethod) * seasonal * QuantityMultiplier(req.Quantity)

	return &domain.PricingSnapshot{
		SuggestedPrice: math.Round(suggested),
		PriceRange: domain.PriceRange{
			Min: math.Round(suggested * rangeLow),
			Max: math.Round(suggested * rangeHigh),
		},
		Confidence:   Confidence(st.count),
		Reasoning:    reasoning,
		MarketTrends: MarketTrend(st.newestFirst),
		CompetitorAnalysis: domain.CompetitorAnalysis{
			AveragePrice:    math.Round(st.average),
			CompetitorCount: st.count,
			YourPosition:    Position(suggested, st.average),
		},
		SeasonalFactors: domain.SeasonalFactors{
			IsInSeason:         seasonal <= 1.0,
			SeasonalMultiplier: seasonal,
			SeasonalNote:       SeasonalNote(req.Season, month),
		},
		DemandIndicators: Demand(req.ProduceName, st.count, st.average, e.rand),
	}, nil
}

// computeStats aggregates prices over comparables (newest first). The exact
// subset shares the farming method, the first segment of the location, or
// the category with the request; when it is empty its average falls back to
// the overall average.
func computeStats(comparables []domain.ProduceRecord, req Request) stats {
	st := stats{count: len(comparables)}
	if st.count == 0 {
		return st
	}

	place := strings.TrimSpace(strings.SplitN(req.Location, ",", 2)[0])
	var exact []float64
	st.min, st.max = math.Inf(1), math.Inf(-1)
	for i := range comparables {
		c := &comparables[i]
		st.newestFirst = append(st.newestFirst, c.Price)
		st.min = math.Min(st.min, c.Price)
		st.max = math.Max(st.max, c.Price)

		if strings.EqualFold(c.EffectiveFarmingMethod(), req.FarmingMethod) ||
			(place != "" && strings.Contains(strings.ToLower(c.EffectiveLocation()), strings.ToLower(place))) ||
			strings.EqualFold(c.Category, req.Category) {
			exact = append(exact, c.Price)
		}
	}
	st.average = mean(st.newestFirst)
	st.exactAverage = st.average
	if len(exact) > 0 {
		st.exactAverage = mean(exact)
	}
	return st
}

func (e *Engine) reasoning(ctx context.Context, req Request, st stats) string {
	text, err := e.completer.Complete(ctx, provider.CompletionRequest{
		System:      systemPrompt,
		User:        reasoningPrompt(req, st),
		MaxTokens:   reasoningTokens,
		Temperature: reasoningTemp,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("pricing: rationale generation failed",
			slog.String("produce", req.ProduceName),
			slog.Any("error", err),
		)
		return fallbackReasoning
	}
	return text
}

func reasoningPrompt(req Request, st stats) string {
	lo, hi := st.min, st.max
	if st.count == 0 {
		lo, hi = 0, 0
	}
	return fmt.Sprintf(`Analyze pricing for this produce item:

Product: %s
Category: %s
Location: %s
Farming Method: %s
Season: %s
Quantity Available: %gkg

Market Data:
- Similar products average price: PHP %.2f/kg
- Price range in market: PHP %.2f - PHP %.2f/kg
- Exact matches average: PHP %.2f/kg
- Number of competitors: %d

Consider the farming method premium, seasonal availability, location advantages, quality indicators and market positioning.
Explain a suitable price per kg in 2-3 sentences.`,
		req.ProduceName, req.Category, req.Location, req.FarmingMethod, req.Season, req.Quantity,
		st.average, lo, hi, st.exactAverage, st.count)
}
