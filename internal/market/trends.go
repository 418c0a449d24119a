// Package market turns current listings into per-product trend series and
// AI market analyses. Every series has the same shape whether a model wrote
// its narrative or it was synthesized locally.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/provider"
)

const (
	listingWindow = 50
	maxSeries     = 10
	aiConcurrency = 4

	narrativeTokens = 400
	narrativeTemp   = 0.4
)

// Paths reported to the observer.
const (
	PathAI          = "ai"
	PathSynthesized = "synthesized"
)

// Source is the slice of the catalog the synthesizer reads.
type Source interface {
	FindRecent(ctx context.Context, f catalog.Filters, limit int) ([]domain.ProduceRecord, error)
}

// Filters narrow the listings a trend response covers.
type Filters struct {
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
}

// Response is the trends payload.
type Response struct {
	Trends    []domain.TrendSeries `json:"trends"`
	Timestamp time.Time            `json:"timestamp"`
	Filters   Filters              `json:"filters"`
}

// Synthesizer builds TrendSeries from the newest active listings.
type Synthesizer struct {
	source    Source
	completer provider.Completer
	now       func() time.Time
	observe   func(path string)
}

// Option customises a Synthesizer.
type Option func(*Synthesizer)

// WithClock replaces the clock used for history dates and seeding.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// WithPathObserver registers fn to be called once per series with PathAI or
// PathSynthesized.
func WithPathObserver(fn func(path string)) Option {
	return func(s *Synthesizer) { s.observe = fn }
}

// NewSynthesizer returns a Synthesizer. With a nil or unavailable completer
// every series is synthesized.
func NewSynthesizer(src Source, c provider.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{source: src, completer: c, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// group is the listings sharing a lower-cased product name.
type group struct {
	key       string
	name      string
	category  string
	current   float64
	average   float64
	suppliers int
}

// Trends returns up to ten series for the products with the most distinct
// suppliers among the 50 newest in-stock listings matching f.
func (s *Synthesizer) Trends(ctx context.Context, f Filters) (*Response, error) {
	now := s.now()
	recs, err := s.source.FindRecent(ctx, catalog.Filters{
		Category:   f.Category,
		Location:   f.Location,
		ActiveOnly: true,
	}, listingWindow)
	if err != nil {
		return nil, fmt.Errorf("market: load listings: %w", err)
	}

	groups := groupListings(recs)
	series := make([]domain.TrendSeries, len(groups))
	for i := range groups {
		series[i] = synthesize(&groups[i], now)
	}

	if provider.IsAvailable(s.completer) {
		s.narrate(ctx, groups, series)
	} else {
		for range series {
			s.report(PathSynthesized)
		}
	}

	return &Response{Trends: series, Timestamp: now.UTC(), Filters: f}, nil
}

// groupListings groups newest-first records by lower-cased name in
// first-seen order and keeps the ten with the most distinct suppliers.
func groupListings(recs []domain.ProduceRecord) []group {
	var (
		order     []string
		prices    = map[string][]float64{}
		suppliers = map[string]map[string]bool{}
		first     = map[string]*domain.ProduceRecord{}
	)
	for i := range recs {
		r := &recs[i]
		key := strings.ToLower(strings.TrimSpace(r.Name))
		if _, ok := first[key]; !ok {
			order = append(order, key)
			first[key] = r
			suppliers[key] = map[string]bool{}
		}
		prices[key] = append(prices[key], r.Price)
		suppliers[key][supplierOf(r)] = true
	}

	out := make([]group, 0, len(order))
	for _, key := range order {
		ps := prices[key]
		var sum float64
		for _, p := range ps {
			sum += p
		}
		category := first[key].Category
		if category == "" {
			category = "Unknown"
		}
		out = append(out, group{
			key:       key,
			name:      first[key].Name,
			category:  category,
			current:   ps[0],
			average:   sum / float64(len(ps)),
			suppliers: len(suppliers[key]),
		})
	}
	slices.SortStableFunc(out, func(a, b group) int { return b.suppliers - a.suppliers })
	return out[:min(len(out), maxSeries)]
}

func supplierOf(r *domain.ProduceRecord) string {
	if r.ProducerID != "" {
		return r.ProducerID
	}
	return r.Producer.Name
}

// narrative is the structured reply requested per product.
type narrative struct {
	Trend           string   `json:"trend"`
	TrendPercentage float64  `json:"trendPercentage"`
	MarketInsight   string   `json:"marketInsight"`
	Recommendations []string `json:"recommendations"`
}

// narrate overlays model narratives onto series, at most four in flight.
// A group whose call or reply fails keeps its synthesized fields.
func (s *Synthesizer) narrate(ctx context.Context, groups []group, series []domain.TrendSeries) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aiConcurrency)
	paths := make([]string, len(series))
	for i := range series {
		g.Go(func() error {
			n, err := s.ask(gctx, &groups[i], &series[i])
			if err != nil {
				logging.FromContext(ctx).Warn("market: trend narrative failed, using synthesized trend",
					slog.String("produce", series[i].Produce),
					slog.Any("error", err),
				)
				paths[i] = PathSynthesized
				return nil
			}
			series[i].Trend = n.Trend
			series[i].TrendPercentage = math.Round(math.Abs(n.TrendPercentage))
			series[i].MarketInsight = n.MarketInsight
			series[i].Recommendations = n.Recommendations
			paths[i] = PathAI
			return nil
		})
	}
	_ = g.Wait()
	for _, p := range paths {
		s.report(p)
	}
}

func (s *Synthesizer) ask(ctx context.Context, g *group, ts *domain.TrendSeries) (*narrative, error) {
	raw, err := s.completer.Complete(ctx, provider.CompletionRequest{
		System:      "You are an agricultural market analyst for the Philippines. Reply with JSON only.",
		User:        narrativePrompt(g, ts),
		MaxTokens:   narrativeTokens,
		Temperature: narrativeTemp,
	})
	if err != nil {
		return nil, err
	}
	var n narrative
	if err := provider.DecodeJSON(raw, &n); err != nil {
		return nil, err
	}
	switch n.Trend {
	case TrendUp, TrendDown, TrendStable:
	default:
		return nil, fmt.Errorf("market: trend %q: %w", n.Trend, domain.ErrProviderFailed)
	}
	if math.IsNaN(n.TrendPercentage) || math.IsInf(n.TrendPercentage, 0) {
		return nil, fmt.Errorf("market: trend percentage: %w", domain.ErrProviderFailed)
	}
	if n.Recommendations == nil {
		n.Recommendations = []string{}
	}
	return &n, nil
}

func narrativePrompt(g *group, ts *domain.TrendSeries) string {
	return fmt.Sprintf(`Assess the current market for %s (%s) in the Philippines.

Current listing price: PHP %.2f/kg
Average listing price: PHP %.2f/kg
Active suppliers: %d

Reply as JSON:
{"trend": "up|down|stable", "trendPercentage": number, "marketInsight": "one or two sentences", "recommendations": ["...", "..."]}`,
		ts.Produce, ts.Category, g.current, g.average, g.suppliers)
}

func (s *Synthesizer) report(path string) {
	if s.observe != nil {
		s.observe(path)
	}
}
