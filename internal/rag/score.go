package rag

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/vecmath"
)

// scored pairs an item with its similarity.
type scored[T any] struct {
	item T
	sim  float64
}

// rankByCosine scores every item with a non-empty vector against query,
// sorts descending with ties kept in input order, and returns the first topK.
// Items whose vector length differs from the query are skipped and logged at
// ERROR: the corpus is supposed to share one dimensionality.
func rankByCosine[T any](ctx context.Context, query []float32, items []T, vector func(*T) []float32, id func(*T) string, topK int) []scored[T] {
	out := make([]scored[T], 0, len(items))
	for i := range items {
		vec := vector(&items[i])
		if len(vec) == 0 {
			continue
		}
		sim, err := vecmath.Cosine(query, vec)
		if err != nil {
			if errors.Is(err, domain.ErrDimensionMismatch) {
				logging.FromContext(ctx).Error("rag: skipping candidate with wrong embedding size",
					slog.String("id", id(&items[i])),
					slog.Int("query_dims", len(query)),
					slog.Int("candidate_dims", len(vec)),
				)
			}
			continue
		}
		out = append(out, scored[T]{item: items[i], sim: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].sim > out[j].sim })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
