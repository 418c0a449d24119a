package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/embedder"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// Ranker returns the top-K produce listings for a query. It is safe for
// concurrent use.
type Ranker struct {
	embedder   embedder.Embedder
	source     ProduceSource
	fallback   ProduceFallback
	onFallback func(corpus string)
}

// RankerOption customises a Ranker.
type RankerOption func(*Ranker)

// WithLexicalFallback replaces the default lexical fallback.
func WithLexicalFallback(fn ProduceFallback) RankerOption {
	return func(r *Ranker) {
		if fn != nil {
			r.fallback = fn
		}
	}
}

// WithRankerFallbackObserver registers fn to be called whenever the ranker
// takes the lexical path.
func WithRankerFallbackObserver(fn func(corpus string)) RankerOption {
	return func(r *Ranker) { r.onFallback = fn }
}

// NewRanker constructs a Ranker from the given embedder and candidate source.
func NewRanker(emb embedder.Embedder, source ProduceSource, opts ...RankerOption) (*Ranker, error) {
	if emb == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("rag: produce source must not be nil")
	}
	r := &Ranker{embedder: emb, source: source, fallback: LexicalProduce}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Rank embeds query, fetches active candidates matching f, and returns the
// topK most similar with their cosine similarity. Candidates without an
// embedding are not ranked. Ties keep repository order.
//
// When the query cannot be embedded (provider unavailable or failing,
// including a cancelled context) Rank returns the lexical fallback over the
// same candidates instead of an error. Repository errors are returned.
func (r *Ranker) Rank(ctx context.Context, query string, f catalog.Filters, topK int) ([]ScoredProduce, error) {
	f.ActiveOnly = true

	candidates, err := r.source.FindCandidates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("rag: find candidates: %w", err)
	}

	qvec, err := embedder.EmbedOne(ctx, r.embedder, query)
	if err != nil {
		logging.FromContext(ctx).Warn("rag: query embedding failed, using lexical fallback",
			slog.String("corpus", CorpusProduce),
			slog.Int("candidates", len(candidates)),
			slog.Any("error", err),
		)
		if r.onFallback != nil {
			r.onFallback(CorpusProduce)
		}
		return r.fallback(query, candidates, topK), nil
	}

	ranked := rankByCosine(ctx, qvec, candidates,
		func(p *domain.ProduceRecord) []float32 { return p.Embedding },
		func(p *domain.ProduceRecord) string { return p.ID },
		topK)

	out := make([]ScoredProduce, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, ScoredProduce{ProduceRecord: s.item, Producer: s.item.Producer, Similarity: s.sim})
	}
	return out, nil
}
