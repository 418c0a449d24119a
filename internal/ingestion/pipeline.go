// Package ingestion implements the listing ingestion pipeline. New listings
// get producer defaults, a generated description when the supplied one is
// too thin, and an embedding of their composed text before they are saved.
// Backfill re-embeds stored listings whose composed text has changed.
// The pipeline backs POST /api/produce and the `farmtable backfill` command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/embedder"
	"github.com/54b3r/farmtable-go/internal/logging"
)

const (
	// MinDescriptionLen is the shortest supplied description kept as-is.
	MinDescriptionLen = 50
	// DefaultBatchSize is the number of texts embedded per provider call.
	DefaultBatchSize = 16
)

// Describer writes a listing description. It must always return usable
// text, falling back to a template when the model is unavailable.
type Describer interface {
	Describe(ctx context.Context, rec *domain.ProduceRecord) string
}

// NewListing is a listing as submitted by a producer.
type NewListing struct {
	Name                  string   `json:"name" yaml:"name"`
	Description           string   `json:"description,omitempty" yaml:"description,omitempty"`
	Price                 float64  `json:"price" yaml:"price"`
	Quantity              float64  `json:"quantity" yaml:"quantity"`
	Unit                  string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Category              string   `json:"category,omitempty" yaml:"category,omitempty"`
	SubCategory           string   `json:"subCategory,omitempty" yaml:"subCategory,omitempty"`
	Season                string   `json:"season,omitempty" yaml:"season,omitempty"`
	FarmingMethod         string   `json:"farmingMethod,omitempty" yaml:"farmingMethod,omitempty"`
	Location              string   `json:"location,omitempty" yaml:"location,omitempty"`
	NutritionalHighlights []string `json:"nutritionalHighlights,omitempty" yaml:"nutritionalHighlights,omitempty"`
	CommonUses            []string `json:"commonUses,omitempty" yaml:"commonUses,omitempty"`
	PreparationTips       string   `json:"preparationTips,omitempty" yaml:"preparationTips,omitempty"`
	StorageInstructions   string   `json:"storageInstructions,omitempty" yaml:"storageInstructions,omitempty"`
	ShelfLife             string   `json:"shelfLife,omitempty" yaml:"shelfLife,omitempty"`
	ProducerID            string   `json:"producerId" yaml:"producerId"`
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Dimensions is the required embedding length. Zero disables the check.
	Dimensions int

	// BatchSize is the number of texts per Embed call during Backfill.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int
}

// Pipeline orchestrates the describe → compose → embed → save flow.
type Pipeline struct {
	// repo is the produce catalog.
	repo catalog.Repository

	// embedder converts composed listing text into vectors.
	embedder embedder.Embedder

	// describer fills thin descriptions. May be nil.
	describer Describer

	// cfg holds the resolved pipeline configuration.
	cfg Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(repo catalog.Repository, emb embedder.Embedder, d Describer, cfg Config) (*Pipeline, error) {
	if repo == nil {
		return nil, fmt.Errorf("ingestion: repository must not be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Pipeline{repo: repo, embedder: emb, describer: d, cfg: cfg}, nil
}

// Create validates in, stores it as an active listing and returns the saved
// record. A listing whose text cannot be embedded is still saved, without a
// vector, so Backfill can pick it up later. A vector of the wrong length is
// an error and nothing is saved.
func (p *Pipeline) Create(ctx context.Context, in NewListing) (*domain.ProduceRecord, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	producer, err := p.repo.Producer(ctx, in.ProducerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewValidationError("producerId", "unknown producer")
	}
	if err != nil {
		return nil, fmt.Errorf("ingestion: load producer: %w", err)
	}

	rec := &domain.ProduceRecord{
		Name:                  in.Name,
		Description:           strings.TrimSpace(in.Description),
		Price:                 in.Price,
		Quantity:              in.Quantity,
		Unit:                  in.Unit,
		Category:              in.Category,
		SubCategory:           in.SubCategory,
		Season:                in.Season,
		FarmingMethod:         in.FarmingMethod,
		Location:              in.Location,
		NutritionalHighlights: in.NutritionalHighlights,
		CommonUses:            in.CommonUses,
		PreparationTips:       in.PreparationTips,
		StorageInstructions:   in.StorageInstructions,
		ShelfLife:             in.ShelfLife,
		ProducerID:            in.ProducerID,
		Producer:              *producer,
		Active:                true,
	}
	if rec.Unit == "" {
		rec.Unit = domain.DefaultUnit
	}
	catalog.ApplyProducerDefaults(rec)

	if desc, generated := p.describe(ctx, rec, rec.Description); generated {
		rec.Description = desc
		rec.AIGeneratedDescription = true
	}

	text := catalog.EmbeddingText(rec, rec.Description)
	vec, err := embedder.EmbedOne(ctx, p.embedder, text)
	switch {
	case err != nil:
		logging.FromContext(ctx).Warn("ingestion: embedding failed, saving listing without vector",
			slog.String("name", rec.Name),
			slog.Any("error", err),
		)
	case p.cfg.Dimensions > 0 && len(vec) != p.cfg.Dimensions:
		return nil, fmt.Errorf("ingestion: embedding has %d dimensions, want %d: %w",
			len(vec), p.cfg.Dimensions, domain.ErrDimensionMismatch)
	default:
		rec.Embedding = vec
		rec.EmbeddingText = text
		rec.EmbeddingModel = embedder.ModelOf(p.embedder)
	}

	if err := p.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("ingestion: save listing: %w", err)
	}
	logging.FromContext(ctx).Info("ingestion: listing created",
		slog.String("id", rec.ID),
		slog.Bool("embedded", rec.HasEmbedding()),
		slog.Bool("ai_description", rec.AIGeneratedDescription),
	)
	return rec, nil
}

func validate(in *NewListing) error {
	in.Name = strings.TrimSpace(in.Name)
	in.ProducerID = strings.TrimSpace(in.ProducerID)
	switch {
	case in.Name == "":
		return domain.NewValidationError("name", "is required")
	case in.Price <= 0:
		return domain.NewValidationError("price", "must be greater than zero")
	case in.Quantity < 0:
		return domain.NewValidationError("quantity", "must not be negative")
	case in.ProducerID == "":
		return domain.NewValidationError("producerId", "is required")
	}
	return nil
}

// RegisterProducer stores p so listings can be created for it. An existing
// producer with the same ID is replaced; its listings keep their own
// location and farming method.
func (p *Pipeline) RegisterProducer(ctx context.Context, in domain.ProducerInfo) (*domain.ProducerInfo, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.FarmingMethod = strings.TrimSpace(in.FarmingMethod)
	switch {
	case in.ID == "":
		return nil, domain.NewValidationError("id", "is required")
	case in.Name == "":
		return nil, domain.NewValidationError("name", "is required")
	}

	if err := p.repo.UpsertProducer(ctx, in); err != nil {
		return nil, fmt.Errorf("ingestion: save producer: %w", err)
	}
	logging.FromContext(ctx).Info("ingestion: producer registered", slog.String("id", in.ID))
	return &in, nil
}

// describe returns a generated description when current is shorter than
// MinDescriptionLen and a describer is configured.
func (p *Pipeline) describe(ctx context.Context, rec *domain.ProduceRecord, current string) (string, bool) {
	if p.describer == nil || len(strings.TrimSpace(current)) >= MinDescriptionLen {
		return current, false
	}
	return p.describer.Describe(ctx, rec), true
}

// BackfillResult counts the outcome of a Backfill run.
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Stale   int `json:"stale"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// pending is a stale record with its recomposed description and text.
type pending struct {
	id          string
	description string
	generated   bool
	text        string
}

// Backfill re-embeds every stored listing whose vector is missing or whose
// composed text no longer matches the stored one. Batches that fail to embed
// are counted and skipped; repository errors and cancellation abort the run.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Backfill(ctx context.Context, progress func(msg string)) (BackfillResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	recs, err := p.repo.FindMissingEmbeddings(ctx)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("ingestion: load listings: %w", err)
	}
	res := BackfillResult{Scanned: len(recs)}

	var stale []pending
	for i := range recs {
		rec := &recs[i]
		// Staleness is decided on the stored description so up-to-date
		// listings never reach the describer.
		if rec.HasEmbedding() && rec.EmbeddingText == catalog.EmbeddingText(rec, rec.Description) {
			continue
		}
		desc, generated := p.describe(ctx, rec, rec.Description)
		text := catalog.EmbeddingText(rec, desc)
		stale = append(stale, pending{
			id:          rec.ID,
			description: desc,
			generated:   generated || rec.AIGeneratedDescription,
			text:        text,
		})
	}
	res.Stale = len(stale)
	progress(fmt.Sprintf("scanned %d listings, %d need embedding", res.Scanned, res.Stale))

	model := embedder.ModelOf(p.embedder)
	for start := 0; start < len(stale); start += p.cfg.BatchSize {
		batch := stale[start:min(start+p.cfg.BatchSize, len(stale))]
		texts := make([]string, len(batch))
		for i, b := range batch {
			texts[i] = b.text
		}

		vecs, err := p.embedder.Embed(ctx, texts)
		if err == nil && len(vecs) != len(batch) {
			err = fmt.Errorf("ingestion: got %d vectors for %d texts: %w", len(vecs), len(batch), domain.ErrProviderFailed)
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("ingestion: batch embedding failed", slog.Int("batch_start", start), slog.Any("error", err))
			res.Failed += len(batch)
			continue
		}

		for i, b := range batch {
			if p.cfg.Dimensions > 0 && len(vecs[i]) != p.cfg.Dimensions {
				log.Error("ingestion: embedding dimension mismatch",
					slog.String("id", b.id),
					slog.Int("got", len(vecs[i])),
					slog.Int("want", p.cfg.Dimensions),
				)
				res.Failed++
				continue
			}
			err := p.repo.UpdateEmbedding(ctx, b.id, catalog.EmbeddingUpdate{
				Description:            b.description,
				AIGeneratedDescription: b.generated,
				Embedding:              vecs[i],
				EmbeddingText:          b.text,
				EmbeddingModel:         model,
			})
			if err != nil {
				return res, fmt.Errorf("ingestion: update %s: %w", b.id, err)
			}
			res.Updated++
		}
		progress(fmt.Sprintf("embedded %d/%d listings", min(start+len(batch), len(stale)), len(stale)))
	}
	return res, nil
}
