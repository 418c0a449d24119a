// Package rag ranks produce listings and knowledge entries against a query
// by cosine similarity over precomputed embeddings. When the query cannot be
// embedded the rankers fail closed to a lexical match instead of erroring,
// so callers always receive a list.
package rag

import (
	"context"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
)

// ProduceSource supplies ranking candidates. catalog.Repository satisfies it.
type ProduceSource interface {
	FindCandidates(ctx context.Context, f catalog.Filters) ([]domain.ProduceRecord, error)
}

// KnowledgeSource supplies knowledge candidates. knowledge.Repository
// satisfies it.
type KnowledgeSource interface {
	FindActive(ctx context.Context, category string) ([]domain.KnowledgeEntry, error)
}

// ScoredProduce is a listing annotated with its similarity to the query.
// It marshals as the flattened listing plus "similarity" and "producer".
type ScoredProduce struct {
	domain.ProduceRecord
	// Producer exposes the joined producer in API responses.
	Producer domain.ProducerInfo `json:"producer"`
	// Similarity is the cosine similarity, or 0 on the lexical path.
	Similarity float64 `json:"similarity"`
}

// ScoredKnowledge is a knowledge entry annotated with its similarity.
type ScoredKnowledge struct {
	domain.KnowledgeEntry
	Similarity float64 `json:"similarity"`
}

// ProduceFallback ranks candidates without embeddings. It receives the
// filtered candidate set in repository order and must return at most topK
// results.
type ProduceFallback func(query string, candidates []domain.ProduceRecord, topK int) []ScoredProduce

// KnowledgeFallback is the knowledge-corpus counterpart of ProduceFallback.
type KnowledgeFallback func(query string, candidates []domain.KnowledgeEntry, topK int) []ScoredKnowledge

// Corpus labels passed to fallback observers.
const (
	CorpusProduce   = "produce"
	CorpusKnowledge = "knowledge"
)
