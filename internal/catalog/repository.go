package catalog

import (
	"context"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Repository is the produce catalog contract consumed by ranking, pricing,
// trends and ingestion. Returned records carry their producer defaults in
// ProduceRecord.Producer.
type Repository interface {
	// FindCandidates returns every record matching f, in insertion order.
	FindCandidates(ctx context.Context, f Filters) ([]domain.ProduceRecord, error)

	// FindRecentComparable returns up to limit active, in-stock records whose
	// name contains name or whose category contains category
	// (case-insensitive), newest first.
	FindRecentComparable(ctx context.Context, name, category string, limit int) ([]domain.ProduceRecord, error)

	// FindRecent returns up to limit records matching f, newest first.
	FindRecent(ctx context.Context, f Filters, limit int) ([]domain.ProduceRecord, error)

	// ListByProducer returns the producer's active records, newest first.
	ListByProducer(ctx context.Context, producerID string) ([]domain.ProduceRecord, error)

	// Get returns the record with id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ProduceRecord, error)

	// Create stores rec. An empty rec.ID is assigned a new UUID.
	Create(ctx context.Context, rec *domain.ProduceRecord) error

	// UpdateEmbedding replaces the description, embedding and embedding text
	// of the record with id.
	UpdateEmbedding(ctx context.Context, id string, u EmbeddingUpdate) error

	// FindMissingEmbeddings returns records that need an embedding pass.
	// Implementations return every record; the caller decides which are stale
	// by comparing the stored text against a freshly composed one.
	FindMissingEmbeddings(ctx context.Context) ([]domain.ProduceRecord, error)

	// Producer returns the producer with id or domain.ErrNotFound.
	Producer(ctx context.Context, id string) (*domain.ProducerInfo, error)

	// UpsertProducer registers p, replacing any producer with the same ID.
	// Listings can only be created for registered producers.
	UpsertProducer(ctx context.Context, p domain.ProducerInfo) error
}

// EmbeddingUpdate is the write set of an embedding pass.
type EmbeddingUpdate struct {
	Description            string
	AIGeneratedDescription bool
	Embedding              []float32
	EmbeddingText          string
	EmbeddingModel         string
}
