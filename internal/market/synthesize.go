package market

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/54b3r/farmtable-go/internal/domain"
)

const (
	historyDays = 30
	// walkStep bounds the day-over-day move of the synthesized history (±5%).
	walkStep = 0.1
	// priceFloor is the lowest synthesized price as a fraction of current.
	priceFloor = 0.7

	stableThreshold = 5.0
)

// Trend directions of a TrendSeries.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

var months = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// seededRand returns a generator keyed on the product name and the calendar
// day, so the synthesized series is stable for a product within a day.
func seededRand(name string, day time.Time) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(day.UTC().Format(time.DateOnly)))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// History synthesizes a 30-day price history ending at now, oldest first.
// Walking back from current, each day moves at most ±5% and never drops
// below 70% of current.
func History(current float64, now time.Time, r *rand.Rand) []domain.PricePoint {
	out := make([]domain.PricePoint, historyDays)
	price := current
	for i := 0; i < historyDays; i++ {
		variation := (r.Float64() - 0.5) * walkStep
		price = math.Max(price*(1+variation), current*priceFloor)
		out[historyDays-1-i] = domain.PricePoint{
			Date:   now.AddDate(0, 0, -i).UTC().Format(time.DateOnly),
			Price:  math.Round(price),
			Volume: r.IntN(100) + 10,
		}
	}
	return out
}

// SeasonalPattern synthesizes a Jan..Dec curve around average.
func SeasonalPattern(average float64, r *rand.Rand) []domain.SeasonalPoint {
	out := make([]domain.SeasonalPoint, len(months))
	for i, m := range months {
		mult := 0.8 + 0.4*math.Sin(float64(i)*math.Pi/6)
		out[i] = domain.SeasonalPoint{
			Month:        m,
			AveragePrice: math.Round(average * mult),
			Volume:       r.IntN(200) + 50,
		}
	}
	return out
}

// HistoryTrend classifies the move from the oldest to the newest point.
// The percentage is the rounded magnitude.
func HistoryTrend(history []domain.PricePoint) (string, float64) {
	if len(history) < 2 {
		return TrendStable, 0
	}
	oldest, newest := history[0].Price, history[len(history)-1].Price
	if oldest == 0 {
		return TrendStable, 0
	}
	change := (newest - oldest) / oldest * 100
	pct := math.Round(math.Abs(change))
	switch {
	case math.Abs(change) < stableThreshold:
		return TrendStable, pct
	case change > 0:
		return TrendUp, pct
	default:
		return TrendDown, pct
	}
}

// synthesize builds the deterministic series for one product group.
func synthesize(g *group, now time.Time) domain.TrendSeries {
	r := seededRand(g.key, now)
	history := History(g.current, now, r)
	trend, pct := HistoryTrend(history)
	return domain.TrendSeries{
		Produce:         g.name,
		Category:        g.category,
		CurrentPrice:    g.current,
		PriceHistory:    history,
		Trend:           trend,
		TrendPercentage: pct,
		SeasonalPattern: SeasonalPattern(g.average, r),
	}
}
