// Package knowledge stores the farming knowledge base that grounds
// recommendation narratives, and exposes create/list/search over it.
package knowledge

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Repository is the knowledge base storage contract.
type Repository interface {
	// FindActive returns active entries, restricted to category when it is
	// non-empty (exact match). Order is insertion order.
	FindActive(ctx context.Context, category string) ([]domain.KnowledgeEntry, error)
	// List returns up to limit entries, newest first. limit ≤ 0 means all.
	List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error)
	// Create stores e, assigning ID and CreatedAt when they are zero.
	Create(ctx context.Context, e *domain.KnowledgeEntry) error
}

// MemoryRepository is an in-process Repository. It is safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []domain.KnowledgeEntry
	now     func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

// FindActive implements Repository.
func (m *MemoryRepository) FindActive(_ context.Context, category string) ([]domain.KnowledgeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.KnowledgeEntry
	for _, e := range m.entries {
		if !e.Active {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, clone(e))
	}
	return out, nil
}

// List implements Repository.
func (m *MemoryRepository) List(_ context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	m.mu.RLock()
	out := make([]domain.KnowledgeEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, clone(m.entries[i]))
	}
	m.mu.RUnlock()
	return newestFirst(out, limit), nil
}

// Create implements Repository.
func (m *MemoryRepository) Create(_ context.Context, e *domain.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now().UTC()
	}
	for _, existing := range m.entries {
		if existing.ID == e.ID {
			return fmt.Errorf("knowledge: entry %s already exists", e.ID)
		}
	}
	m.entries = append(m.entries, clone(*e))
	return nil
}

// newestFirst sorts entries by CreatedAt descending, keeping the incoming
// order for equal timestamps, and applies limit.
func newestFirst(entries []domain.KnowledgeEntry, limit int) []domain.KnowledgeEntry {
	slices.SortStableFunc(entries, func(a, b domain.KnowledgeEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func clone(e domain.KnowledgeEntry) domain.KnowledgeEntry {
	e.Tags = slices.Clone(e.Tags)
	e.Embedding = slices.Clone(e.Embedding)
	return e
}

// EmbeddingText is the text embedded for an entry: title, content, category
// and tags, space-joined with empty parts skipped.
func EmbeddingText(e *domain.KnowledgeEntry) string {
	parts := make([]string, 0, 3+len(e.Tags))
	for _, p := range append([]string{e.Title, e.Content, e.Category}, e.Tags...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
