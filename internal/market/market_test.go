package market

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/provider"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSource struct {
	recs     []domain.ProduceRecord
	err      error
	gotF     catalog.Filters
	gotLimit int
}

func (f *fakeSource) FindRecent(_ context.Context, filters catalog.Filters, limit int) ([]domain.ProduceRecord, error) {
	f.gotF, f.gotLimit = filters, limit
	return f.recs, f.err
}

type completerFunc func(ctx context.Context, req provider.CompletionRequest) (string, error)

func (f completerFunc) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	return f(ctx, req)
}

func fixedNow() time.Time { return time.Date(2026, time.October, 15, 14, 30, 0, 0, time.UTC) }

// listings returns newest-first records: three mango suppliers, one tomato
// supplier with two listings, and a single okra listing.
func listings() []domain.ProduceRecord {
	return []domain.ProduceRecord{
		{Name: "Tomatoes", Category: "Vegetables", Price: 60, ProducerID: "p1"},
		{Name: "Mango", Category: "Fruits", Price: 120, ProducerID: "p1"},
		{Name: "mango", Category: "Fruits", Price: 100, ProducerID: "p2"},
		{Name: "Okra", Price: 40, ProducerID: "p3"},
		{Name: "tomatoes", Category: "Vegetables", Price: 50, ProducerID: "p1"},
		{Name: "MANGO", Category: "Fruits", Price: 110, ProducerID: "p3"},
	}
}

// ---------------------------------------------------------------------------
// Grouping
// ---------------------------------------------------------------------------

func TestGroupListings(t *testing.T) {
	t.Parallel()

	groups := groupListings(listings())
	require.Len(t, groups, 3)

	assert.Equal(t, "Mango", groups[0].name)
	assert.Equal(t, 3, groups[0].suppliers)
	assert.Equal(t, 120.0, groups[0].current)
	assert.InDelta(t, 110, groups[0].average, 1e-9)

	// Tomatoes and Okra both have one supplier and keep first-seen order.
	assert.Equal(t, "Tomatoes", groups[1].name)
	assert.Equal(t, 60.0, groups[1].current)
	assert.InDelta(t, 55, groups[1].average, 1e-9)
	assert.Equal(t, "Okra", groups[2].name)
	assert.Equal(t, "Unknown", groups[2].category)
}

func TestGroupListings_TopTen(t *testing.T) {
	t.Parallel()

	var recs []domain.ProduceRecord
	for i := 0; i < 15; i++ {
		recs = append(recs, domain.ProduceRecord{Name: string(rune('A' + i)), Price: 10, ProducerID: "p"})
	}
	assert.Len(t, groupListings(recs), maxSeries)
}

// ---------------------------------------------------------------------------
// Synthesized series
// ---------------------------------------------------------------------------

func TestTrends_SynthesizedShape(t *testing.T) {
	t.Parallel()

	src := &fakeSource{recs: listings()}
	var paths []string
	s := NewSynthesizer(src, nil, WithClock(fixedNow), WithPathObserver(func(p string) { paths = append(paths, p) }))

	resp, err := s.Trends(context.Background(), Filters{Category: "fruit"})
	require.NoError(t, err)

	assert.Equal(t, listingWindow, src.gotLimit)
	assert.True(t, src.gotF.ActiveOnly)
	assert.Equal(t, "fruit", src.gotF.Category)
	assert.Equal(t, Filters{Category: "fruit"}, resp.Filters)
	assert.Equal(t, fixedNow(), resp.Timestamp)
	assert.Equal(t, []string{PathSynthesized, PathSynthesized, PathSynthesized}, paths)

	mango := resp.Trends[0]
	require.Len(t, mango.PriceHistory, historyDays)
	require.Len(t, mango.SeasonalPattern, 12)
	assert.Equal(t, "2026-09-16", mango.PriceHistory[0].Date)
	assert.Equal(t, "2026-10-15", mango.PriceHistory[historyDays-1].Date)
	for _, p := range mango.PriceHistory {
		assert.GreaterOrEqual(t, p.Price, math.Round(120*priceFloor))
		assert.GreaterOrEqual(t, p.Volume, 10)
		assert.Less(t, p.Volume, 110)
	}
	for _, p := range mango.SeasonalPattern {
		assert.GreaterOrEqual(t, p.Volume, 50)
		assert.Less(t, p.Volume, 250)
	}
	assert.Equal(t, "Jan", mango.SeasonalPattern[0].Month)
	assert.Equal(t, 88.0, mango.SeasonalPattern[0].AveragePrice)
	assert.Equal(t, 132.0, mango.SeasonalPattern[3].AveragePrice)
	assert.Empty(t, mango.MarketInsight)

	trend, pct := HistoryTrend(mango.PriceHistory)
	assert.Equal(t, trend, mango.Trend)
	assert.Equal(t, pct, mango.TrendPercentage)
}

func TestTrends_StableWithinDay(t *testing.T) {
	t.Parallel()

	src := &fakeSource{recs: listings()}
	morning := NewSynthesizer(src, nil, WithClock(func() time.Time { return fixedNow().Add(-6 * time.Hour) }))
	evening := NewSynthesizer(src, nil, WithClock(func() time.Time { return fixedNow().Add(6 * time.Hour) }))

	a, err := morning.Trends(context.Background(), Filters{})
	require.NoError(t, err)
	b, err := evening.Trends(context.Background(), Filters{})
	require.NoError(t, err)
	assert.Equal(t, a.Trends, b.Trends)
}

func TestTrends_SourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	_, err := NewSynthesizer(&fakeSource{err: boom}, nil).Trends(context.Background(), Filters{})
	assert.ErrorIs(t, err, boom)
}

func TestTrends_Empty(t *testing.T) {
	t.Parallel()

	resp, err := NewSynthesizer(&fakeSource{}, nil).Trends(context.Background(), Filters{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Trends)
	assert.Empty(t, resp.Trends)
}

func TestHistoryTrend(t *testing.T) {
	t.Parallel()

	series := func(oldest, newest float64) []domain.PricePoint {
		return []domain.PricePoint{{Price: oldest}, {Price: 100}, {Price: newest}}
	}
	cases := []struct {
		name      string
		oldest    float64
		newest    float64
		wantTrend string
		wantPct   float64
	}{
		{"flat", 100, 100, TrendStable, 0},
		{"small rise", 100, 104, TrendStable, 4},
		{"rise", 100, 112, TrendUp, 12},
		{"fall", 100, 80, TrendDown, 20},
		{"zero baseline", 0, 80, TrendStable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			trend, pct := HistoryTrend(series(tc.oldest, tc.newest))
			assert.Equal(t, tc.wantTrend, trend)
			assert.Equal(t, tc.wantPct, pct)
		})
	}
}

// ---------------------------------------------------------------------------
// AI narratives
// ---------------------------------------------------------------------------

func TestTrends_AINarrativeWithPerGroupFallback(t *testing.T) {
	t.Parallel()

	llm := completerFunc(func(_ context.Context, req provider.CompletionRequest) (string, error) {
		switch {
		case strings.Contains(req.User, "Mango"):
			return "```json\n{\"trend\":\"up\",\"trendPercentage\":-8.4,\"marketInsight\":\"Carabao supply is tight.\",\"recommendations\":[\"Hold price\"]}\n```", nil
		case strings.Contains(req.User, "Tomatoes"):
			return "not json at all", nil
		default:
			return `{"trend":"sideways","trendPercentage":1}`, nil
		}
	})
	var paths []string
	s := NewSynthesizer(&fakeSource{recs: listings()}, llm, WithClock(fixedNow),
		WithPathObserver(func(p string) { paths = append(paths, p) }))

	resp, err := s.Trends(context.Background(), Filters{})
	require.NoError(t, err)
	require.Len(t, resp.Trends, 3)

	mango := resp.Trends[0]
	assert.Equal(t, TrendUp, mango.Trend)
	assert.Equal(t, 8.0, mango.TrendPercentage)
	assert.Equal(t, "Carabao supply is tight.", mango.MarketInsight)
	assert.Equal(t, []string{"Hold price"}, mango.Recommendations)
	assert.Len(t, mango.PriceHistory, historyDays)

	for _, fallback := range resp.Trends[1:] {
		assert.Empty(t, fallback.MarketInsight)
		trend, _ := HistoryTrend(fallback.PriceHistory)
		assert.Equal(t, trend, fallback.Trend)
	}
	assert.Equal(t, []string{PathAI, PathSynthesized, PathSynthesized}, paths)
}

// ---------------------------------------------------------------------------
// Analyst
// ---------------------------------------------------------------------------

const analysisReply = `{"analysis":{"priceAnalysis":{"currentTrend":"up","trendStrength":"moderate","pricePrediction":"PHP 110-130","confidence":"medium"},"riskFactors":{"highRisk":["Typhoon season"]}},"summary":"Prices firming.","confidence":"medium"}`

func TestAnalyst_Analyze(t *testing.T) {
	t.Parallel()

	var analysisPromptSeen string
	llm := completerFunc(func(_ context.Context, req provider.CompletionRequest) (string, error) {
		if req.System == analystSystem {
			analysisPromptSeen = req.User
			assert.Equal(t, analysisTokens, req.MaxTokens)
			return analysisReply, nil
		}
		return "", domain.ErrProviderFailed
	})
	synth := NewSynthesizer(&fakeSource{recs: listings()}, llm, WithClock(fixedNow))
	a := NewAnalyst(synth, llm)
	a.now = fixedNow

	got, err := a.Analyze(context.Background(), AnalysisRequest{ProduceName: "Carabao Mango", Category: "Fruits"})
	require.NoError(t, err)

	assert.Equal(t, "up", got.Analysis.PriceAnalysis.CurrentTrend)
	assert.Equal(t, []string{"Typhoon season"}, got.Analysis.RiskFactors.HighRisk)
	assert.Equal(t, "Prices firming.", got.Summary)
	assert.Equal(t, "ai-powered", got.Source)
	require.NotNil(t, got.Trend)
	assert.Equal(t, "Mango", got.Trend.Produce)
	assert.Contains(t, analysisPromptSeen, "Analysis Type: comprehensive")
	assert.Contains(t, analysisPromptSeen, "Current Market Data")
}

func TestAnalyst_Errors(t *testing.T) {
	t.Parallel()

	synth := NewSynthesizer(&fakeSource{}, nil)

	_, err := NewAnalyst(synth, nil).Analyze(context.Background(), AnalysisRequest{})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "produceName", ve.Field)

	_, err = NewAnalyst(synth, nil).Analyze(context.Background(), AnalysisRequest{ProduceName: "Okra"})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	garbled := completerFunc(func(context.Context, provider.CompletionRequest) (string, error) {
		return "I cannot produce JSON today", nil
	})
	_, err = NewAnalyst(synth, garbled).Analyze(context.Background(), AnalysisRequest{ProduceName: "Okra"})
	assert.ErrorIs(t, err, domain.ErrProviderFailed)
}

func TestRelevantTrend(t *testing.T) {
	t.Parallel()

	series := []domain.TrendSeries{{Produce: "Tomatoes"}, {Produce: "Mango"}}
	assert.Equal(t, "Mango", relevantTrend(series, "carabao mango").Produce)
	assert.Equal(t, "Tomatoes", relevantTrend(series, "tomato").Produce)
	assert.Nil(t, relevantTrend(series, "okra"))
}
