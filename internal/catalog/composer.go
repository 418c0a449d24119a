// Package catalog owns the produce listing catalog: the canonical embedding
// text of a listing, the coarse candidate filters, and the Repository
// contract with its in-memory and Postgres implementations.
package catalog

import (
	"strconv"
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// CurrencyUnit is the spoken currency used in the price clause of the
// embedding text.
const CurrencyUnit = "pesos"

// EmbeddingText builds the canonical text a listing is embedded from.
// Parts are name, description, effective location, "<producer> farm" and
// "<price> pesos per <unit>", joined by single spaces with empty parts
// skipped. The function is pure: the same inputs always give the same string,
// and the price clause is always last.
func EmbeddingText(rec *domain.ProduceRecord, description string) string {
	parts := make([]string, 0, 5)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(rec.Name)
	add(description)
	add(rec.EffectiveLocation())
	if name := strings.TrimSpace(rec.Producer.Name); name != "" {
		add(name + " farm")
	}
	add(PriceClause(rec.Price, rec.EffectiveUnit()))

	return strings.Join(parts, " ")
}

// PriceClause renders "<price> pesos per <unit>" with the price in its
// shortest exact decimal form.
func PriceClause(price float64, unit string) string {
	if unit == "" {
		unit = domain.DefaultUnit
	}
	return strconv.FormatFloat(price, 'f', -1, 64) + " " + CurrencyUnit + " per " + unit
}

// ApplyProducerDefaults fills the listing's location and farming method from
// its producer when the listing leaves them blank. Item values always win.
func ApplyProducerDefaults(rec *domain.ProduceRecord) {
	if strings.TrimSpace(rec.Location) == "" {
		rec.Location = rec.Producer.Location
	}
	if strings.TrimSpace(rec.FarmingMethod) == "" {
		rec.FarmingMethod = rec.Producer.FarmingMethod
	}
}
