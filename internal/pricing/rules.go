package pricing

import (
	"math"
	"strings"
	"time"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Trend labels for comparable-listing price movement.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Positions of a suggestion relative to the market average.
const (
	PositionBelow   = "below"
	PositionAverage = "average"
	PositionAbove   = "above"
)

const (
	// stableThreshold is the |% change| under which prices count as stable.
	stableThreshold = 5.0
	// trendWindow is the size of each of the recent and older windows.
	trendWindow = 10
	trendLabel  = "last 30 days"

	bulkQuantity     = 50
	scarceQuantity   = 10
	bulkMultiplier   = 0.95
	scarceMultiplier = 1.10

	inSeasonMultiplier  = 0.90
	offSeasonMultiplier = 1.20

	rangeLow  = 0.85
	rangeHigh = 1.15

	highConfidenceListings   = 10
	mediumConfidenceListings = 5
)

// methodMultipliers are the farming-method premiums. Unknown methods are ×1.
var methodMultipliers = map[string]float64{
	"organic":    1.30,
	"hydroponic": 1.20,
	"biodynamic": 1.40,
}

// MethodMultiplier returns the premium for a farming method
// (case-insensitive).
func MethodMultiplier(method string) float64 {
	if m, ok := methodMultipliers[strings.ToLower(strings.TrimSpace(method))]; ok {
		return m
	}
	return 1.0
}

// SeasonOf returns the canonical season of a calendar month. Winter spans
// December to February.
func SeasonOf(m time.Month) string {
	switch m {
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	case time.September, time.October, time.November:
		return "Fall"
	default:
		return "Winter"
	}
}

// SeasonalMultiplier is 1.0 for Year-round produce, 0.9 when season is the
// canonical season of month, and 1.2 otherwise.
func SeasonalMultiplier(season string, month time.Month) float64 {
	switch {
	case isYearRound(season):
		return 1.0
	case strings.EqualFold(strings.TrimSpace(season), SeasonOf(month)):
		return inSeasonMultiplier
	default:
		return offSeasonMultiplier
	}
}

// SeasonalNote explains the seasonal multiplier to the producer.
func SeasonalNote(season string, month time.Month) string {
	switch {
	case isYearRound(season):
		return "Available year-round with stable pricing"
	case strings.EqualFold(strings.TrimSpace(season), SeasonOf(month)):
		return "Peak season - expect higher demand and competitive pricing"
	default:
		return "Off-season - premium pricing due to limited availability"
	}
}

func isYearRound(season string) bool {
	return strings.EqualFold(strings.TrimSpace(season), domain.YearRound)
}

// QuantityMultiplier is the bulk discount above 50 units and the scarcity
// premium below 10.
func QuantityMultiplier(qty float64) float64 {
	switch {
	case qty > bulkQuantity:
		return bulkMultiplier
	case qty < scarceQuantity:
		return scarceMultiplier
	default:
		return 1.0
	}
}

// Confidence buckets the comparable listing count.
func Confidence(comparables int) string {
	switch {
	case comparables >= highConfidenceListings:
		return domain.ConfidenceHigh
	case comparables >= mediumConfidenceListings:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// ClassifyTrend compares the recent average against the older average.
// Changes under 5% are stable with their absolute magnitude; larger changes
// carry their sign.
func ClassifyTrend(recentAvg, olderAvg float64) (string, float64) {
	if olderAvg == 0 {
		return TrendStable, 0
	}
	change := (recentAvg - olderAvg) / olderAvg * 100
	switch {
	case math.Abs(change) < stableThreshold:
		return TrendStable, math.Abs(change)
	case change > 0:
		return TrendIncreasing, change
	default:
		return TrendDecreasing, change
	}
}

// MarketTrend splits newest-first comparable prices into the 10 most recent
// and the next 10, and classifies the movement between their averages.
func MarketTrend(newestFirst []float64) domain.MarketTrend {
	recent := newestFirst[:min(len(newestFirst), trendWindow)]
	older := newestFirst[len(recent):min(len(newestFirst), 2*trendWindow)]
	out := domain.MarketTrend{Trend: TrendStable, Timeframe: trendLabel}
	if len(recent) == 0 || len(older) == 0 {
		return out
	}
	out.Trend, out.Percentage = ClassifyTrend(mean(recent), mean(older))
	return out
}

// Position places suggested against the market average: below 90% is
// "below", above 110% is "above".
func Position(suggested, average float64) string {
	switch {
	case suggested < average*0.9:
		return PositionBelow
	case suggested > average*1.1:
		return PositionAbove
	default:
		return PositionAverage
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
