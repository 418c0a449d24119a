package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/provider"
)

const (
	analystSystem  = "You are a senior agricultural market analyst with deep expertise in Philippine agricultural markets. Provide accurate, data-driven insights that help producers make informed decisions about pricing, production timing, and market positioning. Consider local factors like weather patterns, regional supply chains, and consumer preferences."
	analysisTokens = 3000
	analysisTemp   = 0.2

	// DefaultAnalysisType is used when a request names none.
	DefaultAnalysisType = "comprehensive"
)

// AnalysisRequest asks for a market analysis of one product.
type AnalysisRequest struct {
	ProduceName  string `json:"produceName"`
	Category     string `json:"category,omitempty"`
	Location     string `json:"location,omitempty"`
	AnalysisType string `json:"analysisType,omitempty"`
}

// Analysis is the structured analysis a model returns.
type Analysis struct {
	PriceAnalysis struct {
		CurrentTrend    string `json:"currentTrend"`
		TrendStrength   string `json:"trendStrength"`
		PricePrediction string `json:"pricePrediction"`
		Confidence      string `json:"confidence"`
	} `json:"priceAnalysis"`
	SupplyDemand struct {
		CurrentSupply   string   `json:"currentSupply"`
		DemandLevel     string   `json:"demandLevel"`
		SeasonalFactors []string `json:"seasonalFactors"`
		MarketBalance   string   `json:"marketBalance"`
	} `json:"supplyDemand"`
	CompetitiveLandscape struct {
		CompetitorCount              string   `json:"competitorCount"`
		PriceRange                   string   `json:"priceRange"`
		DifferentiationOpportunities []string `json:"differentiationOpportunities"`
		MarketGaps                   []string `json:"marketGaps"`
	} `json:"competitiveLandscape"`
	SeasonalPatterns struct {
		PeakSeasons     []string `json:"peakSeasons"`
		OffSeasons      []string `json:"offSeasons"`
		PriceVariation  string   `json:"priceVariation"`
		VolumeVariation string   `json:"volumeVariation"`
	} `json:"seasonalPatterns"`
	RiskFactors struct {
		HighRisk      []string `json:"highRisk"`
		MediumRisk    []string `json:"mediumRisk"`
		Opportunities []string `json:"opportunities"`
	} `json:"riskFactors"`
	StrategicRecommendations struct {
		Pricing    []string `json:"pricing"`
		Production []string `json:"production"`
		Marketing  []string `json:"marketing"`
		Timing     []string `json:"timing"`
	} `json:"strategicRecommendations"`
}

// AnalysisResult is the market analysis payload.
type AnalysisResult struct {
	Analysis    Analysis            `json:"analysis"`
	Summary     string              `json:"summary"`
	Confidence  string              `json:"confidence"`
	ProduceName string              `json:"produceName"`
	Category    string              `json:"category,omitempty"`
	Location    string              `json:"location,omitempty"`
	Trend       *domain.TrendSeries `json:"trend,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
	Source      string              `json:"source"`
}

// Analyst writes market analyses grounded on the current trend series.
type Analyst struct {
	trends    *Synthesizer
	completer provider.Completer
	now       func() time.Time
}

// NewAnalyst returns an Analyst.
func NewAnalyst(trends *Synthesizer, c provider.Completer) *Analyst {
	if c == nil {
		c = provider.Unavailable{}
	}
	return &Analyst{trends: trends, completer: c, now: time.Now}
}

// Analyze asks the model for a structured analysis of req.ProduceName. There
// is no local fallback: provider errors and undecodable replies are returned.
func (a *Analyst) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	req.ProduceName = strings.TrimSpace(req.ProduceName)
	if req.ProduceName == "" {
		return nil, domain.NewValidationError("produceName", "is required")
	}
	if req.AnalysisType == "" {
		req.AnalysisType = DefaultAnalysisType
	}
	if !provider.IsAvailable(a.completer) {
		return nil, fmt.Errorf("market: analysis: %w", domain.ErrProviderUnavailable)
	}

	resp, err := a.trends.Trends(ctx, Filters{Category: req.Category, Location: req.Location})
	if err != nil {
		return nil, err
	}
	trend := relevantTrend(resp.Trends, req.ProduceName)

	raw, err := a.completer.Complete(ctx, provider.CompletionRequest{
		System:      analystSystem,
		User:        analysisPrompt(req, trend),
		MaxTokens:   analysisTokens,
		Temperature: analysisTemp,
	})
	if err != nil {
		return nil, fmt.Errorf("market: analysis: %w", err)
	}

	var reply struct {
		Analysis   Analysis `json:"analysis"`
		Summary    string   `json:"summary"`
		Confidence string   `json:"confidence"`
	}
	if err := provider.DecodeJSON(raw, &reply); err != nil {
		return nil, err
	}
	return &AnalysisResult{
		Analysis:    reply.Analysis,
		Summary:     reply.Summary,
		Confidence:  reply.Confidence,
		ProduceName: req.ProduceName,
		Category:    req.Category,
		Location:    req.Location,
		Trend:       trend,
		Timestamp:   a.now().UTC(),
		Source:      "ai-powered",
	}, nil
}

// relevantTrend returns the first series whose product name contains name
// or is contained in it (case-insensitive).
func relevantTrend(series []domain.TrendSeries, name string) *domain.TrendSeries {
	n := strings.ToLower(name)
	for i := range series {
		p := strings.ToLower(series[i].Produce)
		if strings.Contains(p, n) || strings.Contains(n, p) {
			return &series[i]
		}
	}
	return nil
}

func analysisPrompt(req AnalysisRequest, trend *domain.TrendSeries) string {
	category, location := req.Category, req.Location
	if category == "" {
		category = "General"
	}
	if location == "" {
		location = "Philippines"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Provide a detailed market analysis for %s in the Philippines.\n\n", req.ProduceName)
	fmt.Fprintf(&b, "Context:\n- Category: %s\n- Location: %s\n- Analysis Type: %s\n", category, location, req.AnalysisType)
	if trend != nil {
		fmt.Fprintf(&b, "\nCurrent Market Data:\n- Current Price: PHP %.2f/kg\n- Trend: %s (%.0f%%)\n",
			trend.CurrentPrice, trend.Trend, trend.TrendPercentage)
		if trend.MarketInsight != "" {
			fmt.Fprintf(&b, "- Market Insight: %s\n", trend.MarketInsight)
		}
	}
	b.WriteString(`
Cover price analysis, supply and demand, the competitive landscape, seasonal patterns, risk factors and strategic recommendations.

Reply as JSON:
{
  "analysis": {
    "priceAnalysis": {"currentTrend": "up/down/stable", "trendStrength": "strong/moderate/weak", "pricePrediction": "expected range for the next 3 months", "confidence": "high/medium/low"},
    "supplyDemand": {"currentSupply": "abundant/moderate/scarce", "demandLevel": "high/medium/low", "seasonalFactors": [], "marketBalance": "supply-driven/demand-driven/balanced"},
    "competitiveLandscape": {"competitorCount": "estimate", "priceRange": "PHP min - PHP max", "differentiationOpportunities": [], "marketGaps": []},
    "seasonalPatterns": {"peakSeasons": [], "offSeasons": [], "priceVariation": "expected % variation", "volumeVariation": "expected volume changes"},
    "riskFactors": {"highRisk": [], "mediumRisk": [], "opportunities": []},
    "strategicRecommendations": {"pricing": [], "production": [], "marketing": [], "timing": []}
  },
  "summary": "brief executive summary",
  "confidence": "high/medium/low"
}`)
	return b.String()
}
