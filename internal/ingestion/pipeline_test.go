package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// countingEmbedder returns a vector of dims ones per text and records calls.
type countingEmbedder struct {
	mu    sync.Mutex
	dims  int
	err   error
	calls [][]string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls = append(c.calls, texts)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, c.dims)
		for j := range v {
			v[j] = 1
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Model() string { return "test-embed" }

type stubDescriber struct{ text string }

func (s stubDescriber) Describe(context.Context, *domain.ProduceRecord) string { return s.text }

// countingDescriber returns a fixed description and counts calls.
type countingDescriber struct {
	mu    sync.Mutex
	text  string
	names []string
}

func (c *countingDescriber) Describe(_ context.Context, rec *domain.ProduceRecord) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, rec.Name)
	return c.text
}

func newRepo() *catalog.MemoryRepository {
	repo := catalog.NewMemoryRepository()
	_ = repo.UpsertProducer(context.Background(), domain.ProducerInfo{ID: "p1", Name: "Green Valley", Location: "Benguet", FarmingMethod: "Organic"})
	return repo
}

const longDescription = "Crisp sweet carrots pulled this morning from cool highland soil, washed and bundled."

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_EmbedsComposedText(t *testing.T) {
	t.Parallel()

	repo := newRepo()
	emb := &countingEmbedder{dims: 3}
	p, err := NewPipeline(repo, emb, stubDescriber{text: "unused"}, Config{Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := p.Create(context.Background(), NewListing{
		Name: "Carrots", Description: longDescription, Price: 120, Quantity: 30, ProducerID: "p1",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	want := "Carrots " + longDescription + " Benguet Green Valley farm 120 pesos per kg"
	if rec.EmbeddingText != want {
		t.Errorf("EmbeddingText = %q, want %q", rec.EmbeddingText, want)
	}
	if rec.Location != "Benguet" || rec.FarmingMethod != "Organic" {
		t.Errorf("producer defaults not applied: %q %q", rec.Location, rec.FarmingMethod)
	}
	if rec.AIGeneratedDescription {
		t.Error("long description should be kept")
	}
	if rec.EmbeddingModel != "test-embed" || len(rec.Embedding) != 3 {
		t.Errorf("embedding = %v (%s)", rec.Embedding, rec.EmbeddingModel)
	}

	stored, err := repo.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !stored.Active || !stored.HasEmbedding() {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCreate_GeneratesShortDescription(t *testing.T) {
	t.Parallel()

	p, _ := NewPipeline(newRepo(), &countingEmbedder{dims: 2}, stubDescriber{text: "Fresh Okra from Green Valley."}, Config{})
	rec, err := p.Create(context.Background(), NewListing{Name: "Okra", Description: "tasty", Price: 40, ProducerID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Description != "Fresh Okra from Green Valley." || !rec.AIGeneratedDescription {
		t.Errorf("description = %q ai=%v", rec.Description, rec.AIGeneratedDescription)
	}
	if !strings.Contains(rec.EmbeddingText, "Fresh Okra from Green Valley.") {
		t.Errorf("EmbeddingText = %q", rec.EmbeddingText)
	}
}

func TestCreate_EmbedFailureSavesWithoutVector(t *testing.T) {
	t.Parallel()

	repo := newRepo()
	p, _ := NewPipeline(repo, &countingEmbedder{err: domain.ErrProviderUnavailable}, nil, Config{})
	rec, err := p.Create(context.Background(), NewListing{Name: "Kale", Description: longDescription, Price: 80, ProducerID: "p1"})
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	if rec.HasEmbedding() || rec.EmbeddingText != "" {
		t.Errorf("record should have no vector: %+v", rec)
	}
	if _, err := repo.Get(context.Background(), rec.ID); err != nil {
		t.Errorf("listing not saved: %v", err)
	}
}

func TestCreate_DimensionMismatch(t *testing.T) {
	t.Parallel()

	repo := newRepo()
	p, _ := NewPipeline(repo, &countingEmbedder{dims: 4}, nil, Config{Dimensions: 3})
	_, err := p.Create(context.Background(), NewListing{Name: "Kale", Price: 80, ProducerID: "p1"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Create() error = %v, want ErrDimensionMismatch", err)
	}
	all, _ := repo.FindMissingEmbeddings(context.Background())
	if len(all) != 0 {
		t.Errorf("listing saved despite mismatch: %d", len(all))
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	p, _ := NewPipeline(newRepo(), &countingEmbedder{dims: 1}, nil, Config{})
	cases := []struct {
		name  string
		in    NewListing
		field string
	}{
		{"missing name", NewListing{Price: 1, ProducerID: "p1"}, "name"},
		{"zero price", NewListing{Name: "Kale", ProducerID: "p1"}, "price"},
		{"negative quantity", NewListing{Name: "Kale", Price: 1, Quantity: -1, ProducerID: "p1"}, "quantity"},
		{"missing producer", NewListing{Name: "Kale", Price: 1}, "producerId"},
		{"unknown producer", NewListing{Name: "Kale", Price: 1, ProducerID: "nope"}, "producerId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.Create(context.Background(), tc.in)
			ve, ok := domain.AsValidation(err)
			if !ok {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RegisterProducer
// ---------------------------------------------------------------------------

func TestRegisterProducer_EnablesListings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := NewPipeline(catalog.NewMemoryRepository(), &countingEmbedder{dims: 2}, nil, Config{})

	listing := NewListing{Name: "Calamansi", Description: longDescription, Price: 60, ProducerID: "batangas-citrus"}
	if _, err := p.Create(ctx, listing); err == nil {
		t.Fatal("Create() before registration succeeded")
	}

	got, err := p.RegisterProducer(ctx, domain.ProducerInfo{
		ID: " batangas-citrus ", Name: " Batangas Citrus Co-op", Location: "Batangas", FarmingMethod: "Conventional",
	})
	if err != nil {
		t.Fatalf("RegisterProducer() error: %v", err)
	}
	if got.ID != "batangas-citrus" || got.Name != "Batangas Citrus Co-op" {
		t.Errorf("producer not trimmed: %+v", got)
	}

	rec, err := p.Create(ctx, listing)
	if err != nil {
		t.Fatalf("Create() after registration error: %v", err)
	}
	if rec.Location != "Batangas" || rec.Producer.Name != "Batangas Citrus Co-op" {
		t.Errorf("producer defaults not applied: %+v", rec)
	}
}

func TestRegisterProducer_Validation(t *testing.T) {
	t.Parallel()

	p, _ := NewPipeline(newRepo(), &countingEmbedder{dims: 1}, nil, Config{})
	cases := []struct {
		name  string
		in    domain.ProducerInfo
		field string
	}{
		{"missing id", domain.ProducerInfo{Name: "Green Valley"}, "id"},
		{"blank id", domain.ProducerInfo{ID: "  ", Name: "Green Valley"}, "id"},
		{"missing name", domain.ProducerInfo{ID: "p2"}, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.RegisterProducer(context.Background(), tc.in)
			ve, ok := domain.AsValidation(err)
			if !ok {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Backfill
// ---------------------------------------------------------------------------

func TestBackfill_BatchesOnlyStaleRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo()
	fresh := &domain.ProduceRecord{Name: "Fresh", Description: longDescription, Price: 10, Quantity: 1, ProducerID: "p1", Active: true,
		Producer: domain.ProducerInfo{ID: "p1", Name: "Green Valley", Location: "Benguet"}}
	fresh.Location = "Benguet"
	fresh.EmbeddingText = catalog.EmbeddingText(fresh, fresh.Description)
	fresh.Embedding = []float32{1, 1}
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		rec := &domain.ProduceRecord{Name: "Stale", Description: longDescription, Price: float64(i + 1), Quantity: 1, ProducerID: "p1", Active: true}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	emb := &countingEmbedder{dims: 2}
	p, _ := NewPipeline(repo, emb, nil, Config{Dimensions: 2})
	var msgs []string
	res, err := p.Backfill(ctx, func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("Backfill() error: %v", err)
	}

	if res.Scanned != 21 || res.Stale != 20 || res.Updated != 20 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(emb.calls) != 2 || len(emb.calls[0]) != DefaultBatchSize || len(emb.calls[1]) != 4 {
		t.Errorf("batches = %d", len(emb.calls))
	}
	if len(msgs) != 3 {
		t.Errorf("progress messages = %v", msgs)
	}

	// A second run finds nothing to do.
	res, err = p.Backfill(ctx, nil)
	if err != nil || res.Stale != 0 {
		t.Errorf("second run = %+v, %v", res, err)
	}
}

func TestBackfill_DescribesOnlyStaleRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo()

	// Up to date, with a short description: must not cost a describer call.
	current := &domain.ProduceRecord{Name: "Okra", Description: "Tender pods", Price: 40, Quantity: 3, ProducerID: "p1", Active: true}
	if err := repo.Create(ctx, current); err != nil {
		t.Fatal(err)
	}
	joined, err := repo.Get(ctx, current.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateEmbedding(ctx, current.ID, catalog.EmbeddingUpdate{
		Description:   joined.Description,
		Embedding:     []float32{1, 1},
		EmbeddingText: catalog.EmbeddingText(joined, joined.Description),
	}); err != nil {
		t.Fatal(err)
	}

	// Never embedded, with a short description: described once.
	if err := repo.Create(ctx, &domain.ProduceRecord{Name: "Squash", Description: "Big", Price: 30, Quantity: 2, ProducerID: "p1", Active: true}); err != nil {
		t.Fatal(err)
	}

	desc := &countingDescriber{text: longDescription}
	p, _ := NewPipeline(repo, &countingEmbedder{dims: 2}, desc, Config{Dimensions: 2})
	res, err := p.Backfill(ctx, nil)
	if err != nil {
		t.Fatalf("Backfill() error: %v", err)
	}
	if res.Stale != 1 || res.Updated != 1 {
		t.Errorf("result = %+v, want one stale listing updated", res)
	}
	if len(desc.names) != 1 || desc.names[0] != "Squash" {
		t.Errorf("describer called for %v, want only [Squash]", desc.names)
	}

	got, _ := repo.Get(ctx, current.ID)
	if got.Description != "Tender pods" {
		t.Errorf("up-to-date description rewritten to %q", got.Description)
	}
}

func TestBackfill_FailedBatchIsCounted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo()
	for i := 0; i < 3; i++ {
		_ = repo.Create(ctx, &domain.ProduceRecord{Name: "Kale", Price: 5, Quantity: 1, ProducerID: "p1", Active: true})
	}
	p, _ := NewPipeline(repo, &countingEmbedder{err: domain.ErrProviderFailed}, nil, Config{})
	res, err := p.Backfill(ctx, nil)
	if err != nil {
		t.Fatalf("Backfill() error: %v", err)
	}
	if res.Failed != 3 || res.Updated != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestNewPipeline_NilDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(nil, &countingEmbedder{}, nil, Config{}); err == nil {
		t.Error("expected error for nil repository")
	}
	if _, err := NewPipeline(newRepo(), nil, nil, Config{}); err == nil {
		t.Error("expected error for nil embedder")
	}
}
