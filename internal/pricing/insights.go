package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// staticAdvice is returned with every insights response.
var staticAdvice = []string{
	"Consider seasonal pricing adjustments",
	"Monitor competitor prices weekly",
	"Highlight organic/premium qualities in descriptions",
	"Bundle complementary items for better margins",
}

// Insights summarizes a producer's active listings.
type Insights struct {
	TotalListings   int               `json:"totalListings"`
	AveragePrice    float64           `json:"averagePrice"`
	PriceRange      domain.PriceRange `json:"priceRange"`
	Categories      []string          `json:"categories"`
	Recommendations []string          `json:"recommendations"`
}

// Insights returns the pricing overview for producerID. A producer with no
// listings gets zeroes rather than an error.
func (e *Engine) Insights(ctx context.Context, producerID string) (*Insights, error) {
	if strings.TrimSpace(producerID) == "" {
		return nil, domain.NewValidationError("producerId", "is required")
	}
	recs, err := e.source.ListByProducer(ctx, producerID)
	if err != nil {
		return nil, fmt.Errorf("pricing: list producer listings: %w", err)
	}

	out := &Insights{
		TotalListings:   len(recs),
		Categories:      []string{},
		Recommendations: append([]string(nil), staticAdvice...),
	}
	if len(recs) == 0 {
		return out, nil
	}

	prices := make([]float64, 0, len(recs))
	seen := map[string]bool{}
	out.PriceRange = domain.PriceRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for i := range recs {
		p := recs[i].Price
		prices = append(prices, p)
		out.PriceRange.Min = math.Min(out.PriceRange.Min, p)
		out.PriceRange.Max = math.Max(out.PriceRange.Max, p)
		if c := recs[i].Category; c != "" && !seen[c] {
			seen[c] = true
			out.Categories = append(out.Categories, c)
		}
	}
	out.AveragePrice = mean(prices)
	return out, nil
}
