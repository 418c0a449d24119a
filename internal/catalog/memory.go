package catalog

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

// MemoryRepository is an in-process Repository. Records keep insertion
// order, and producer defaults are joined on every read. It is used by the
// CLI when no database is configured and as the test double for every
// catalog consumer.
type MemoryRepository struct {
	mu        sync.RWMutex
	records   []domain.ProduceRecord
	producers map[string]domain.ProducerInfo
	now       func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		producers: make(map[string]domain.ProducerInfo),
		now:       time.Now,
	}
}

// UpsertProducer implements Repository.
func (m *MemoryRepository) UpsertProducer(_ context.Context, p domain.ProducerInfo) error {
	if p.ID == "" {
		return fmt.Errorf("catalog: upsert producer: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.producers[p.ID] = p
	return nil
}

// Producer implements Repository.
func (m *MemoryRepository) Producer(_ context.Context, id string) (*domain.ProducerInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.producers[id]
	if !ok {
		return nil, fmt.Errorf("catalog: producer %q: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

// Create implements Repository.
func (m *MemoryRepository) Create(_ context.Context, rec *domain.ProduceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == rec.ID {
			return fmt.Errorf("catalog: create %q: duplicate id", rec.ID)
		}
	}
	m.records = append(m.records, cloneRecord(*rec))
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(_ context.Context, id string) (*domain.ProduceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.records {
		if m.records[i].ID == id {
			rec := m.joined(m.records[i])
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("catalog: get %q: %w", id, domain.ErrNotFound)
}

// FindCandidates implements Repository.
func (m *MemoryRepository) FindCandidates(_ context.Context, f Filters) ([]domain.ProduceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ProduceRecord, 0, len(m.records))
	for _, r := range m.records {
		rec := m.joined(r)
		if f.Match(&rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FindRecentComparable implements Repository.
func (m *MemoryRepository) FindRecentComparable(_ context.Context, name, category string, limit int) ([]domain.ProduceRecord, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	category = strings.ToLower(strings.TrimSpace(category))

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProduceRecord
	for _, rec := range m.newestFirst() {
		if !rec.Active || rec.Quantity <= 0 {
			continue
		}
		byName := name != "" && strings.Contains(strings.ToLower(rec.Name), name)
		byCategory := category != "" && strings.Contains(strings.ToLower(rec.Category), category)
		if byName || byCategory {
			out = append(out, rec)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FindRecent implements Repository.
func (m *MemoryRepository) FindRecent(_ context.Context, f Filters, limit int) ([]domain.ProduceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProduceRecord
	for _, rec := range m.newestFirst() {
		if !f.Match(&rec) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListByProducer implements Repository.
func (m *MemoryRepository) ListByProducer(_ context.Context, producerID string) ([]domain.ProduceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProduceRecord
	for _, rec := range m.newestFirst() {
		if rec.ProducerID == producerID && rec.Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

// UpdateEmbedding implements Repository.
func (m *MemoryRepository) UpdateEmbedding(_ context.Context, id string, u EmbeddingUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		r := &m.records[i]
		r.Description = u.Description
		r.AIGeneratedDescription = u.AIGeneratedDescription
		r.Embedding = slices.Clone(u.Embedding)
		r.EmbeddingText = u.EmbeddingText
		r.EmbeddingModel = u.EmbeddingModel
		return nil
	}
	return fmt.Errorf("catalog: update embedding %q: %w", id, domain.ErrNotFound)
}

// FindMissingEmbeddings implements Repository.
func (m *MemoryRepository) FindMissingEmbeddings(_ context.Context) ([]domain.ProduceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ProduceRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, m.joined(r))
	}
	return out, nil
}

// newestFirst returns joined copies ordered by CreatedAt descending; records
// created at the same instant keep reverse insertion order. Caller holds mu.
func (m *MemoryRepository) newestFirst() []domain.ProduceRecord {
	out := make([]domain.ProduceRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.joined(m.records[i]))
	}
	slices.SortStableFunc(out, func(a, b domain.ProduceRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// joined returns a copy of r with its producer defaults attached. Caller
// holds mu.
func (m *MemoryRepository) joined(r domain.ProduceRecord) domain.ProduceRecord {
	rec := cloneRecord(r)
	if p, ok := m.producers[r.ProducerID]; ok {
		rec.Producer = p
	}
	return rec
}

func cloneRecord(r domain.ProduceRecord) domain.ProduceRecord {
	r.Embedding = slices.Clone(r.Embedding)
	r.NutritionalHighlights = slices.Clone(r.NutritionalHighlights)
	r.CommonUses = slices.Clone(r.CommonUses)
	return r
}
