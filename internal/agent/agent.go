// Package agent composes AI-authored text for the marketplace: contextual
// produce recommendations grounded in the catalog, the knowledge base and
// the customer's recent questions, and listing descriptions for producers.
package agent

import (
	"context"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/rag"
)

// ProduceRanker ranks catalog listings for a query. *rag.Ranker satisfies it.
type ProduceRanker interface {
	Rank(ctx context.Context, query string, f catalog.Filters, topK int) ([]rag.ScoredProduce, error)
}

// KnowledgeRetriever ranks knowledge entries for a query.
// *rag.KnowledgeRetriever satisfies it.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query, category string, topK int) ([]rag.ScoredKnowledge, error)
}

// Recommendation methods reported to callers.
const (
	MethodSemantic            = "semantic_search"
	MethodSemanticWithContext = "semantic_search_with_context"
)

// Outcomes passed to Config.Observe.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
)
