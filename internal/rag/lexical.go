package rag

import (
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// minTermLen is the shortest query word used by the per-term lexical pass.
const minTermLen = 3

// LexicalProduce is the default ProduceFallback. It keeps candidates whose
// name, description or category contains the whole query (case-insensitive);
// when none do, it keeps candidates containing any query word of three or
// more characters. Repository order is preserved. The result is never nil.
func LexicalProduce(query string, candidates []domain.ProduceRecord, topK int) []ScoredProduce {
	fields := func(r *domain.ProduceRecord) []string {
		return []string{r.Name, r.Description, r.Category}
	}
	hits := lexicalMatch(query, candidates, fields, topK)
	out := make([]ScoredProduce, 0, len(hits))
	for _, r := range hits {
		out = append(out, ScoredProduce{ProduceRecord: r, Producer: r.Producer})
	}
	return out
}

// LexicalKnowledge is the default KnowledgeFallback over title, content,
// category and tags.
func LexicalKnowledge(query string, candidates []domain.KnowledgeEntry, topK int) []ScoredKnowledge {
	fields := func(e *domain.KnowledgeEntry) []string {
		return append([]string{e.Title, e.Content, e.Category}, e.Tags...)
	}
	hits := lexicalMatch(query, candidates, fields, topK)
	out := make([]ScoredKnowledge, 0, len(hits))
	for _, e := range hits {
		out = append(out, ScoredKnowledge{KnowledgeEntry: e})
	}
	return out
}

func lexicalMatch[T any](query string, items []T, fields func(*T) []string, topK int) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []T{}
	}

	match := func(pred func(string) bool) []T {
		out := []T{}
		for i := range items {
			for _, f := range fields(&items[i]) {
				if pred(strings.ToLower(f)) {
					out = append(out, items[i])
					break
				}
			}
			if topK > 0 && len(out) == topK {
				break
			}
		}
		return out
	}

	if out := match(func(f string) bool { return strings.Contains(f, q) }); len(out) > 0 {
		return out
	}

	var terms []string
	for _, w := range strings.Fields(q) {
		if len(w) >= minTermLen {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return []T{}
	}
	return match(func(f string) bool {
		for _, t := range terms {
			if strings.Contains(f, t) {
				return true
			}
		}
		return false
	})
}
