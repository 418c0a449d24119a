package knowledge

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// scrollLimit bounds a single scroll over the knowledge collection. The
// knowledge base is a small curated corpus, far below this size.
const scrollLimit = 1000

// Payload keys stored on each point.
const (
	fieldTitle     = "title"
	fieldContent   = "content"
	fieldCategory  = "category"
	fieldTags      = "tags"
	fieldActive    = "active"
	fieldCreatedAt = "created_at"
)

// QdrantConfig holds connection parameters for the knowledge collection.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection holding knowledge entries.
	Collection string

	// VectorSize is the embedding dimensionality of the collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantRepository implements Repository on a Qdrant collection. Entries are
// points whose payload carries the entry fields and whose vector is the
// entry embedding. Similarity is computed by the retriever, not by Qdrant, so
// both storage backends rank identically.
type QdrantRepository struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg *QdrantConfig

	now func() time.Time
}

// NewQdrantRepository connects to Qdrant and ensures the collection exists.
func NewQdrantRepository(ctx context.Context, cfg *QdrantConfig) (*QdrantRepository, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "farmtable_knowledge"
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	repo := &QdrantRepository{client: client, cfg: cfg, now: time.Now}
	if err := repo.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return repo, nil
}

// Client exposes the gRPC client for readiness probes.
func (r *QdrantRepository) Client() *qdrant.Client { return r.client }

func (r *QdrantRepository) ensureCollection(ctx context.Context) error {
	exists, err := r.client.CollectionExists(ctx, r.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     r.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", r.cfg.Collection, err)
	}
	return nil
}

// Create implements Repository. The entry must carry an embedding of the
// collection's dimensionality.
func (r *QdrantRepository) Create(ctx context.Context, e *domain.KnowledgeEntry) error {
	if uint64(len(e.Embedding)) != r.cfg.VectorSize {
		return fmt.Errorf("qdrant: entry has %d dims, collection expects %d: %w",
			len(e.Embedding), r.cfg.VectorSize, domain.ErrDimensionMismatch)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.cfg.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(e.ID),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(toPayload(e)),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// FindActive implements Repository.
func (r *QdrantRepository) FindActive(ctx context.Context, category string) ([]domain.KnowledgeEntry, error) {
	must := []*qdrant.Condition{qdrant.NewMatchBool(fieldActive, true)}
	if category != "" {
		must = append(must, qdrant.NewMatch(fieldCategory, category))
	}
	entries, err := r.scroll(ctx, &qdrant.Filter{Must: must})
	if err != nil {
		return nil, err
	}
	// Scroll returns points in id order; present them by creation time so
	// ranking ties resolve the same way as the in-memory backend.
	slices.SortStableFunc(entries, func(a, b domain.KnowledgeEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return entries, nil
}

// List implements Repository.
func (r *QdrantRepository) List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	entries, err := r.scroll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newestFirst(entries, limit), nil
}

func (r *QdrantRepository) scroll(ctx context.Context, filter *qdrant.Filter) ([]domain.KnowledgeEntry, error) {
	limit := uint32(scrollLimit)
	points, err := r.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: r.cfg.Collection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}

	out := make([]domain.KnowledgeEntry, 0, len(points))
	for _, p := range points {
		e := fromPayload(p.GetPayload())
		e.ID = p.GetId().GetUuid()
		e.Embedding = pointVector(p)
		out = append(out, e)
	}
	return out, nil
}

// Ping calls the Qdrant HealthCheck RPC.
func (r *QdrantRepository) Ping(ctx context.Context) error {
	if _, err := r.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.client.Close()
}

func toPayload(e *domain.KnowledgeEntry) map[string]any {
	tags := make([]any, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, t)
	}
	return map[string]any{
		fieldTitle:     e.Title,
		fieldContent:   e.Content,
		fieldCategory:  e.Category,
		fieldTags:      tags,
		fieldActive:    e.Active,
		fieldCreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromPayload(p map[string]*qdrant.Value) domain.KnowledgeEntry {
	e := domain.KnowledgeEntry{
		Title:    p[fieldTitle].GetStringValue(),
		Content:  p[fieldContent].GetStringValue(),
		Category: p[fieldCategory].GetStringValue(),
		Active:   p[fieldActive].GetBoolValue(),
	}
	for _, v := range p[fieldTags].GetListValue().GetValues() {
		e.Tags = append(e.Tags, v.GetStringValue())
	}
	if ts, err := time.Parse(time.RFC3339Nano, p[fieldCreatedAt].GetStringValue()); err == nil {
		e.CreatedAt = ts
	}
	return e
}

func pointVector(p *qdrant.RetrievedPoint) []float32 {
	vo := p.GetVectors().GetVector()
	if d := vo.GetDense(); d != nil {
		return d.GetData()
	}
	return vo.GetData()
}
