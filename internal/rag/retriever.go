package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/embedder"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// DefaultKnowledgeTopK is the result count when Retrieve is called with 0.
const DefaultKnowledgeTopK = 3

// KnowledgeRetriever ranks active knowledge entries against a query with the
// same algorithm as Ranker. Results ground recommendation narratives.
type KnowledgeRetriever struct {
	embedder    embedder.Embedder
	source      KnowledgeSource
	fallback    KnowledgeFallback
	onFallback  func(corpus string)
	defaultTopK int
}

// RetrieverOption customises a KnowledgeRetriever.
type RetrieverOption func(*KnowledgeRetriever)

// WithKnowledgeFallback replaces the default lexical fallback.
func WithKnowledgeFallback(fn KnowledgeFallback) RetrieverOption {
	return func(r *KnowledgeRetriever) {
		if fn != nil {
			r.fallback = fn
		}
	}
}

// WithRetrieverFallbackObserver registers fn to be called whenever the
// retriever takes the lexical path.
func WithRetrieverFallbackObserver(fn func(corpus string)) RetrieverOption {
	return func(r *KnowledgeRetriever) { r.onFallback = fn }
}

// NewKnowledgeRetriever constructs a KnowledgeRetriever. defaultTopK sets the
// result count when Retrieve is called with topK=0; values ≤ 0 use
// DefaultKnowledgeTopK.
func NewKnowledgeRetriever(emb embedder.Embedder, source KnowledgeSource, defaultTopK int, opts ...RetrieverOption) (*KnowledgeRetriever, error) {
	if emb == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("rag: knowledge source must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultKnowledgeTopK
	}
	r := &KnowledgeRetriever{embedder: emb, source: source, fallback: LexicalKnowledge, defaultTopK: defaultTopK}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Retrieve returns the topK active entries most similar to query, optionally
// restricted to category (exact match). It degrades to the lexical fallback
// when the query cannot be embedded.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query, category string, topK int) ([]ScoredKnowledge, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	entries, err := r.source.FindActive(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("rag: find knowledge: %w", err)
	}

	qvec, err := embedder.EmbedOne(ctx, r.embedder, query)
	if err != nil {
		logging.FromContext(ctx).Warn("rag: query embedding failed, using lexical fallback",
			slog.String("corpus", CorpusKnowledge),
			slog.Int("candidates", len(entries)),
			slog.Any("error", err),
		)
		if r.onFallback != nil {
			r.onFallback(CorpusKnowledge)
		}
		return r.fallback(query, entries, topK), nil
	}

	ranked := rankByCosine(ctx, qvec, entries,
		func(e *domain.KnowledgeEntry) []float32 { return e.Embedding },
		func(e *domain.KnowledgeEntry) string { return e.ID },
		topK)

	out := make([]ScoredKnowledge, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, ScoredKnowledge{KnowledgeEntry: s.item, Similarity: s.sim})
	}
	return out, nil
}
