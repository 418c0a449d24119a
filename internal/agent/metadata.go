package agent

import (
	"math"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/rag"
)

// DeriveMetadata computes the turn metadata from the ranked recommendations
// alone: listing ids in rank order, plus the distinct non-empty categories,
// farming methods and seasons in first-seen order, and the price span.
// ResponseTimeMS and ModelUsed are left for the caller.
func DeriveMetadata(recs []rag.ScoredProduce) domain.TurnMetadata {
	var (
		meta                         domain.TurnMetadata
		categories, methods, seasons distinct
	)
	if len(recs) == 0 {
		return meta
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range recs {
		r := &recs[i]
		meta.ProduceIDs = append(meta.ProduceIDs, r.ID)
		categories.add(r.Category)
		methods.add(r.EffectiveFarmingMethod())
		seasons.add(r.Season)
		lo = math.Min(lo, r.Price)
		hi = math.Max(hi, r.Price)
	}
	meta.Categories = categories.values
	meta.FarmingMethods = methods.values
	meta.Seasons = seasons.values
	meta.PriceRange = &domain.PriceRange{Min: lo, Max: hi}
	return meta
}

type distinct struct {
	seen   map[string]bool
	values []string
}

func (d *distinct) add(s string) {
	if s == "" || d.seen[s] {
		return
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[s] = true
	d.values = append(d.values, s)
}
