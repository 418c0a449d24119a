package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/provider"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSource struct {
	comparables []domain.ProduceRecord
	byProducer  []domain.ProduceRecord
	err         error

	gotName, gotCategory string
	gotLimit             int
}

func (f *fakeSource) FindRecentComparable(_ context.Context, name, category string, limit int) ([]domain.ProduceRecord, error) {
	f.gotName, f.gotCategory, f.gotLimit = name, category, limit
	return f.comparables, f.err
}

func (f *fakeSource) ListByProducer(context.Context, string) ([]domain.ProduceRecord, error) {
	return f.byProducer, f.err
}

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return r.n }

type stubCompleter struct {
	reply string
	err   error
	got   provider.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req provider.CompletionRequest) (string, error) {
	s.got = req
	return s.reply, s.err
}

func october() time.Time { return time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC) }

// flatMarket returns n comparables priced at price, sharing the category.
func flatMarket(n int, price float64) []domain.ProduceRecord {
	out := make([]domain.ProduceRecord, n)
	for i := range out {
		out[i] = domain.ProduceRecord{ID: string(rune('a' + i)), Name: "Carrots", Category: "Vegetables", Price: price}
	}
	return out
}

func newTestEngine(src Source, c provider.Completer) *Engine {
	return NewEngine(src, c, WithRand(fixedRand{f: 0.5, n: 7}), WithClock(october))
}

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestAnalyze_OrganicInSeason(t *testing.T) {
	t.Parallel()

	src := &fakeSource{comparables: flatMarket(6, 100)}
	llm := &stubCompleter{reply: "Price slightly above market for organic quality."}
	e := newTestEngine(src, llm)

	snap, err := e.Analyze(context.Background(), Request{
		ProduceName:   "Heirloom Carrots",
		Category:      "Vegetables",
		FarmingMethod: "Organic",
		Season:        "Fall",
		Quantity:      30,
	})
	require.NoError(t, err)

	assert.Equal(t, 117.0, snap.SuggestedPrice)
	assert.Equal(t, domain.PriceRange{Min: 99, Max: 135}, snap.PriceRange)
	assert.Equal(t, domain.ConfidenceMedium, snap.Confidence)
	assert.Equal(t, llm.reply, snap.Reasoning)
	assert.True(t, snap.SeasonalFactors.IsInSeason)
	assert.Equal(t, 0.9, snap.SeasonalFactors.SeasonalMultiplier)
	assert.Equal(t, 100.0, snap.CompetitorAnalysis.AveragePrice)
	assert.Equal(t, 6, snap.CompetitorAnalysis.CompetitorCount)
	assert.Equal(t, PositionAbove, snap.CompetitorAnalysis.YourPosition)

	assert.Equal(t, "Heirloom Carrots", src.gotName)
	assert.Equal(t, comparableLimit, src.gotLimit)
	assert.Equal(t, systemPrompt, llm.got.System)
	assert.Equal(t, reasoningTokens, llm.got.MaxTokens)
	assert.InDelta(t, reasoningTemp, llm.got.Temperature, 1e-6)
}

func TestAnalyze_OffSeasonScarcity(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeSource{comparables: flatMarket(12, 100)}, &stubCompleter{reply: "ok"})
	snap, err := e.Analyze(context.Background(), Request{
		ProduceName:   "Carrots",
		Category:      "Vegetables",
		FarmingMethod: "Conventional",
		Season:        "Spring",
		Quantity:      5,
	})
	require.NoError(t, err)

	assert.Equal(t, 132.0, snap.SuggestedPrice)
	assert.False(t, snap.SeasonalFactors.IsInSeason)
	assert.Equal(t, domain.ConfidenceHigh, snap.Confidence)
	assert.Contains(t, snap.SeasonalFactors.SeasonalNote, "Off-season")
}

func TestAnalyze_EmptyCatalog(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeSource{}, &stubCompleter{err: domain.ErrProviderUnavailable})
	snap, err := e.Analyze(context.Background(), Request{ProduceName: "Dragonfruit", Category: "Fruits"})
	require.NoError(t, err)

	assert.Zero(t, snap.SuggestedPrice)
	assert.Equal(t, domain.PriceRange{}, snap.PriceRange)
	assert.Equal(t, domain.ConfidenceLow, snap.Confidence)
	assert.Equal(t, fallbackReasoning, snap.Reasoning)
	assert.Equal(t, TrendStable, snap.MarketTrends.Trend)
	assert.Zero(t, snap.CompetitorAnalysis.CompetitorCount)
	// Year-round default.
	assert.Equal(t, 1.0, snap.SeasonalFactors.SeasonalMultiplier)
}

func TestAnalyze_Validation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeSource{}, nil)
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing name", Request{Category: "Fruits"}, "produceName"},
		{"blank name", Request{ProduceName: "  ", Category: "Fruits"}, "produceName"},
		{"missing category", Request{ProduceName: "Mango"}, "category"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.Analyze(context.Background(), tc.req)
			ve, ok := domain.AsValidation(err)
			require.True(t, ok, "error %v is not a validation error", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestAnalyze_RepositoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	e := newTestEngine(&fakeSource{err: boom}, nil)
	_, err := e.Analyze(context.Background(), Request{ProduceName: "Mango", Category: "Fruits"})
	assert.ErrorIs(t, err, boom)
}

func TestAnalyze_DeterministicApartFromDemand(t *testing.T) {
	t.Parallel()

	src := &fakeSource{comparables: flatMarket(8, 80)}
	req := Request{ProduceName: "Okra", Category: "Vegetables", FarmingMethod: "Hydroponic", Quantity: 60}

	a, err := NewEngine(src, nil, WithClock(october), WithRand(fixedRand{f: 0.1, n: 1})).Analyze(context.Background(), req)
	require.NoError(t, err)
	b, err := NewEngine(src, nil, WithClock(october), WithRand(fixedRand{f: 0.9, n: 19})).Analyze(context.Background(), req)
	require.NoError(t, err)

	a.DemandIndicators, b.DemandIndicators = domain.DemandIndicators{}, domain.DemandIndicators{}
	assert.Equal(t, a, b)
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	r := Request{ProduceName: " Mango ", Category: "Fruits"}
	require.NoError(t, r.Normalize())
	assert.Equal(t, "Mango", r.ProduceName)
	assert.Equal(t, DefaultLocation, r.Location)
	assert.Equal(t, DefaultFarmingMethod, r.FarmingMethod)
	assert.Equal(t, domain.YearRound, r.Season)
	assert.Equal(t, float64(DefaultQuantity), r.Quantity)
}

func TestComputeStats_ExactSubset(t *testing.T) {
	t.Parallel()

	comparables := []domain.ProduceRecord{
		{Name: "Carrots", Category: "Root", Price: 200, FarmingMethod: "Organic"},
		{Name: "Carrots", Category: "Vegetables", Price: 50, Location: "Cebu"},
		{Name: "Carrots", Category: "Vegetables", Price: 110, Location: "Benguet, Luzon"},
	}
	st := computeStats(comparables, Request{
		Category: "Root", Location: "benguet, Philippines", FarmingMethod: "Organic",
	})
	assert.Equal(t, 3, st.count)
	assert.InDelta(t, 120, st.average, 1e-9)
	assert.Equal(t, 50.0, st.min)
	assert.Equal(t, 200.0, st.max)
	assert.InDelta(t, 155, st.exactAverage, 1e-9)
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

func TestClassifyTrend_Boundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		recent    float64
		wantTrend string
		wantPct   float64
	}{
		{"up 4.9", 104.9, TrendStable, 4.9},
		{"down 4.9", 95.1, TrendStable, 4.9},
		{"up 5.1", 105.1, TrendIncreasing, 5.1},
		{"down 5.1", 94.9, TrendDecreasing, -5.1},
		{"flat", 100, TrendStable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			trend, pct := ClassifyTrend(tc.recent, 100)
			assert.Equal(t, tc.wantTrend, trend)
			assert.InDelta(t, tc.wantPct, pct, 1e-9)
		})
	}
}

func TestClassifyTrend_ZeroBaseline(t *testing.T) {
	t.Parallel()

	trend, pct := ClassifyTrend(100, 0)
	assert.Equal(t, TrendStable, trend)
	assert.Zero(t, pct)
}

func TestMarketTrend_Windows(t *testing.T) {
	t.Parallel()

	prices := make([]float64, 0, 25)
	for i := 0; i < 10; i++ {
		prices = append(prices, 120)
	}
	for i := 0; i < 15; i++ {
		prices = append(prices, 100)
	}
	got := MarketTrend(prices)
	assert.Equal(t, TrendIncreasing, got.Trend)
	assert.InDelta(t, 20, got.Percentage, 1e-9)
	assert.Equal(t, "last 30 days", got.Timeframe)

	assert.Equal(t, TrendStable, MarketTrend(prices[:10]).Trend, "no older window")
}

func TestMultipliers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.3, MethodMultiplier("ORGANIC"))
	assert.Equal(t, 1.2, MethodMultiplier("hydroponic"))
	assert.Equal(t, 1.4, MethodMultiplier("Biodynamic"))
	assert.Equal(t, 1.0, MethodMultiplier("Conventional"))

	assert.Equal(t, 0.95, QuantityMultiplier(51))
	assert.Equal(t, 1.0, QuantityMultiplier(50))
	assert.Equal(t, 1.0, QuantityMultiplier(10))
	assert.Equal(t, 1.10, QuantityMultiplier(9))

	assert.Equal(t, 0.9, SeasonalMultiplier("winter", time.January))
	assert.Equal(t, 0.9, SeasonalMultiplier("Winter", time.December))
	assert.Equal(t, 1.2, SeasonalMultiplier("Summer", time.December))
	assert.Equal(t, 1.0, SeasonalMultiplier("Year-round", time.December))
}

func TestConfidenceAndPosition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.ConfidenceLow, Confidence(4))
	assert.Equal(t, domain.ConfidenceMedium, Confidence(5))
	assert.Equal(t, domain.ConfidenceHigh, Confidence(10))

	assert.Equal(t, PositionBelow, Position(89, 100))
	assert.Equal(t, PositionAverage, Position(90, 100))
	assert.Equal(t, PositionAverage, Position(110, 100))
	assert.Equal(t, PositionAbove, Position(111, 100))
}

func TestPopularityScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20, PopularityScore(0, 0, 0))
	assert.Equal(t, 30, PopularityScore(0, 100, 0))
	assert.Equal(t, 80, PopularityScore(20, 100, 0))
	assert.Equal(t, 80, PopularityScore(40, 300, 0.5))
	assert.LessOrEqual(t, PopularityScore(1000, 100, 0.999), 100)
}

func TestDemand_SearchVolume(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "high", Demand("Cherry Tomatoes", 0, 0, fixedRand{}).SearchVolume)
	assert.Equal(t, "medium", Demand("Okra", 0, 0, fixedRand{f: 0.7}).SearchVolume)
	assert.Equal(t, "low", Demand("Okra", 0, 0, fixedRand{f: 0.2}).SearchVolume)
	assert.Equal(t, 7, Demand("Okra", 0, 0, fixedRand{n: 7}).RecentOrders)
}

// ---------------------------------------------------------------------------
// Insights
// ---------------------------------------------------------------------------

func TestInsights(t *testing.T) {
	t.Parallel()

	src := &fakeSource{byProducer: []domain.ProduceRecord{
		{Category: "Vegetables", Price: 40},
		{Category: "Fruits", Price: 100},
		{Category: "Vegetables", Price: 70},
	}}
	got, err := newTestEngine(src, nil).Insights(context.Background(), "prod-1")
	require.NoError(t, err)

	assert.Equal(t, 3, got.TotalListings)
	assert.InDelta(t, 70, got.AveragePrice, 1e-9)
	assert.Equal(t, domain.PriceRange{Min: 40, Max: 100}, got.PriceRange)
	assert.Equal(t, []string{"Vegetables", "Fruits"}, got.Categories)
	assert.Len(t, got.Recommendations, 4)
}

func TestInsights_Empty(t *testing.T) {
	t.Parallel()

	got, err := newTestEngine(&fakeSource{}, nil).Insights(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Zero(t, got.TotalListings)
	assert.Equal(t, domain.PriceRange{}, got.PriceRange)
	assert.Empty(t, got.Categories)

	_, err = newTestEngine(&fakeSource{}, nil).Insights(context.Background(), " ")
	_, ok := domain.AsValidation(err)
	assert.True(t, ok)
}
