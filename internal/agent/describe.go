package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/provider"
)

const describeSystemPrompt = "You are an expert farm-to-table copywriter who creates appealing descriptions for fresh produce, emphasizing quality, nutrition, and local sourcing."

const (
	describeMaxTokens   = 180
	describeTemperature = 0.7
)

// Describer writes listing descriptions for producers.
type Describer struct {
	completer provider.Completer
}

// NewDescriber returns a Describer using c. A nil c always falls back.
func NewDescriber(c provider.Completer) *Describer {
	return &Describer{completer: c}
}

// Describe returns AI-written copy for rec, or a fixed template when the
// completion backend is unavailable or fails. It never returns an empty
// string.
func (d *Describer) Describe(ctx context.Context, rec *domain.ProduceRecord) string {
	if d.completer == nil {
		return FallbackDescription(rec)
	}
	text, err := d.completer.Complete(ctx, provider.CompletionRequest{
		System:      describeSystemPrompt,
		User:        describePrompt(rec),
		MaxTokens:   describeMaxTokens,
		Temperature: describeTemperature,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("agent: description generation failed, using template",
			slog.String("produce", rec.Name),
			slog.Any("error", err),
		)
		return FallbackDescription(rec)
	}
	return text
}

// FallbackDescription is the template description:
// "Fresh <name> from <producer>. <method or Locally grown> and perfect for
// your kitchen needs."
func FallbackDescription(rec *domain.ProduceRecord) string {
	method := rec.EffectiveFarmingMethod()
	if method == "" {
		method = "Locally grown"
	}
	producer := rec.Producer.Name
	if producer == "" {
		producer = "a local farm"
	}
	return fmt.Sprintf("Fresh %s from %s. %s and perfect for your kitchen needs.", rec.Name, producer, method)
}

func describePrompt(rec *domain.ProduceRecord) string {
	unit := rec.EffectiveUnit()
	lines := []string{"Product: " + rec.Name}
	opt := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	opt("Category", rec.Category)
	opt("Type", rec.SubCategory)
	opt("Farming", rec.EffectiveFarmingMethod())
	opt("Season", rec.Season)
	opt("Location", rec.EffectiveLocation())
	lines = append(lines,
		fmt.Sprintf("Price: %s pesos/%s", formatNumber(rec.Price), unit),
		fmt.Sprintf("Available: %s %s", formatNumber(rec.Quantity), unit),
	)
	opt("Producer", rec.Producer.Name)
	opt("Nutrition", strings.Join(rec.NutritionalHighlights, ", "))
	opt("Uses", strings.Join(rec.CommonUses, ", "))

	return "Generate a compelling, natural description for this fresh produce item:\n\n" +
		strings.Join(lines, "\n") +
		"\n\nWrite 2-3 sentences on its freshness and quality, what makes it special " +
		"(farming method, season, origin), and its best uses and nutritional benefits. " +
		"Keep it natural and under 120 words."
}
