package catalog

import (
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Filters are the coarse candidate filters applied before ranking.
// Text fields use case-insensitive substring matching so free-text catalog
// entries still match. Zero values disable a filter.
type Filters struct {
	// Category is matched as a substring of the listing category.
	Category string `json:"category,omitempty"`
	// Season matches the listing season, or listings tagged Year-round.
	Season string `json:"season,omitempty"`
	// FarmingMethod is matched against the effective farming method.
	FarmingMethod string `json:"farmingMethod,omitempty"`
	// Location is matched against the effective location.
	Location string `json:"location,omitempty"`
	// MaxPrice is the inclusive price ceiling; 0 means no ceiling.
	MaxPrice float64 `json:"maxPrice,omitempty"`
	// ActiveOnly excludes delisted items.
	ActiveOnly bool `json:"-"`
	// MinQuantity excludes listings whose quantity is not strictly greater.
	MinQuantity float64 `json:"-"`
}

// Match reports whether rec passes every enabled filter. It is the reference
// predicate; SQL-backed repositories must agree with it.
func (f Filters) Match(rec *domain.ProduceRecord) bool {
	if f.ActiveOnly && !rec.Active {
		return false
	}
	if rec.Quantity <= f.MinQuantity {
		return false
	}
	if f.MaxPrice > 0 && rec.Price > f.MaxPrice {
		return false
	}
	if !containsFold(rec.Category, f.Category) {
		return false
	}
	if !containsFold(rec.EffectiveFarmingMethod(), f.FarmingMethod) {
		return false
	}
	if !containsFold(rec.EffectiveLocation(), f.Location) {
		return false
	}
	if f.Season != "" && !strings.EqualFold(rec.Season, f.Season) && !strings.EqualFold(rec.Season, domain.YearRound) {
		return false
	}
	return true
}

// containsFold reports whether needle is a case-insensitive substring of
// haystack. An empty needle always matches.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
