package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/embedder"
	"github.com/54b3r/farmtable-go/internal/rag"
)

// DefaultSearchLimit is the result count for Search and List when the caller
// passes 0.
const DefaultSearchLimit = 10

// Service is the knowledge base façade used by the HTTP API and the CLI.
type Service struct {
	repo      Repository
	embedder  embedder.Embedder
	retriever *rag.KnowledgeRetriever
}

// NewService wires a Service. The retriever must read from repo.
func NewService(repo Repository, emb embedder.Embedder, retriever *rag.KnowledgeRetriever) *Service {
	return &Service{repo: repo, embedder: emb, retriever: retriever}
}

// NewEntry is the input to Create.
type NewEntry struct {
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content" yaml:"content"`
	Category string   `json:"category" yaml:"category"`
	Tags     []string `json:"tags" yaml:"tags"`
}

// Create validates, embeds and stores a new active entry. An embedding
// failure is returned: an entry without a vector cannot be retrieved
// semantically.
func (s *Service) Create(ctx context.Context, in NewEntry) (*domain.KnowledgeEntry, error) {
	for _, f := range []struct{ name, value string }{
		{"title", in.Title},
		{"content", in.Content},
		{"category", in.Category},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, domain.NewValidationError(f.name, "is required")
		}
	}

	e := &domain.KnowledgeEntry{
		Title:    strings.TrimSpace(in.Title),
		Content:  strings.TrimSpace(in.Content),
		Category: strings.TrimSpace(in.Category),
		Tags:     in.Tags,
		Active:   true,
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	vec, err := embedder.EmbedOne(ctx, s.embedder, EmbeddingText(e))
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed entry: %w", err)
	}
	e.Embedding = vec

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("knowledge: create entry: %w", err)
	}
	return e, nil
}

// Search ranks active entries against query.
func (s *Service) Search(ctx context.Context, query, category string, limit int) ([]rag.ScoredKnowledge, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("q", "is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.retriever.Retrieve(ctx, query, category, limit)
}

// List returns the newest entries.
func (s *Service) List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	entries, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list: %w", err)
	}
	return entries, nil
}
