package pricing

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// RandSource supplies the jitter in demand indicators. *rand.Rand from
// math/rand/v2 satisfies it; tests pin it.
//
// The jitter stands in for search and order telemetry the marketplace does
// not collect yet. Confidence and position thresholds were tuned with it in
// place, so it stays until real demand signals replace it.
type RandSource interface {
	Float64() float64
	IntN(n int) int
}

// globalRand uses the concurrency-safe top-level math/rand/v2 functions.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// popularNames get a "high" search volume bucket.
var popularNames = []string{"tomato", "lettuce", "carrot", "spinach", "kale"}

const (
	maxRecentOrders  = 20
	popularityJitter = 20.0
)

// Demand computes the demand indicators for name. Popular names always
// bucket "high"; others draw medium or low from r.
func Demand(name string, competitors int, averagePrice float64, r RandSource) domain.DemandIndicators {
	return domain.DemandIndicators{
		SearchVolume:    searchVolume(name, r),
		RecentOrders:    r.IntN(maxRecentOrders),
		PopularityScore: PopularityScore(competitors, averagePrice, r.Float64()),
	}
}

func searchVolume(name string, r RandSource) string {
	lower := strings.ToLower(name)
	for _, p := range popularNames {
		if strings.Contains(lower, p) {
			return "high"
		}
	}
	if r.Float64() > 0.5 {
		return "medium"
	}
	return "low"
}

// PopularityScore is min(competitors/20, 1)·50, plus 30 when the average
// price is within (50, 200) and 20 otherwise, plus jitter·20 where jitter is
// in [0, 1). The result is rounded and lies in [20, 100].
func PopularityScore(competitors int, averagePrice, jitter float64) int {
	competitorScore := math.Min(float64(competitors)/20, 1) * 50
	priceScore := 20.0
	if averagePrice > 50 && averagePrice < 200 {
		priceScore = 30
	}
	return int(math.Round(competitorScore + priceScore + jitter*popularityJitter))
}
