package domain

// Confidence buckets for a pricing suggestion.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// PricingSnapshot is the derived pricing view for a producer's item.
// It is computed per request and never persisted.
type PricingSnapshot struct {
	SuggestedPrice     float64            `json:"suggestedPrice"`
	PriceRange         PriceRange         `json:"priceRange"`
	Confidence         string             `json:"confidence"`
	Reasoning          string             `json:"reasoning"`
	MarketTrends       MarketTrend        `json:"marketTrends"`
	CompetitorAnalysis CompetitorAnalysis `json:"competitorAnalysis"`
	SeasonalFactors    SeasonalFactors    `json:"seasonalFactors"`
	DemandIndicators   DemandIndicators   `json:"demandIndicators"`
}

// MarketTrend is the price direction across comparable listings.
type MarketTrend struct {
	// Trend is "increasing", "decreasing" or "stable".
	Trend string `json:"trend"`
	// Percentage is the change magnitude; negative when decreasing.
	Percentage float64 `json:"percentage"`
	// Timeframe labels the comparison window.
	Timeframe string `json:"timeframe"`
}

// CompetitorAnalysis places the suggestion against the comparable set.
type CompetitorAnalysis struct {
	AveragePrice    float64 `json:"averagePrice"`
	CompetitorCount int     `json:"competitorCount"`
	// YourPosition is "below", "average" or "above".
	YourPosition string `json:"yourPosition"`
}

// SeasonalFactors explains the seasonal multiplier.
type SeasonalFactors struct {
	IsInSeason         bool    `json:"isInSeason"`
	SeasonalMultiplier float64 `json:"seasonalMultiplier"`
	SeasonalNote       string  `json:"seasonalNote"`
}

// DemandIndicators are coarse demand signals. RecentOrders and part of
// PopularityScore are placeholders until real order telemetry exists.
type DemandIndicators struct {
	// SearchVolume is "high", "medium" or "low".
	SearchVolume    string `json:"searchVolume"`
	RecentOrders    int    `json:"recentOrders"`
	PopularityScore int    `json:"popularityScore"`
}

// PricePoint is one day of a trend history.
type PricePoint struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Volume int     `json:"volume"`
}

// SeasonalPoint is one month of a seasonal curve.
type SeasonalPoint struct {
	Month        string  `json:"month"`
	AveragePrice float64 `json:"averagePrice"`
	Volume       int     `json:"volume"`
}

// TrendSeries is the per-product market trend record.
type TrendSeries struct {
	Produce      string       `json:"produce"`
	Category     string       `json:"category"`
	CurrentPrice float64      `json:"currentPrice"`
	PriceHistory []PricePoint `json:"priceHistory"`
	// Trend is "up", "down" or "stable".
	Trend           string          `json:"trend"`
	TrendPercentage float64         `json:"trendPercentage"`
	SeasonalPattern []SeasonalPoint `json:"seasonalPattern"`
	MarketInsight   string          `json:"marketInsight,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
}
