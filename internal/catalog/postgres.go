package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Schema is the DDL PostgresRepository expects. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS producers (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	location       TEXT NOT NULL DEFAULT '',
	farming_method TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS produce (
	id                       TEXT PRIMARY KEY,
	name                     TEXT NOT NULL,
	description              TEXT NOT NULL DEFAULT '',
	price                    DOUBLE PRECISION NOT NULL,
	quantity                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit                     TEXT NOT NULL DEFAULT 'kg',
	category                 TEXT NOT NULL DEFAULT '',
	sub_category             TEXT NOT NULL DEFAULT '',
	season                   TEXT NOT NULL DEFAULT '',
	farming_method           TEXT NOT NULL DEFAULT '',
	location                 TEXT NOT NULL DEFAULT '',
	nutritional_highlights   TEXT[] NOT NULL DEFAULT '{}',
	common_uses              TEXT[] NOT NULL DEFAULT '{}',
	preparation_tips         TEXT NOT NULL DEFAULT '',
	storage_instructions     TEXT NOT NULL DEFAULT '',
	shelf_life               TEXT NOT NULL DEFAULT '',
	embedding                REAL[],
	embedding_text           TEXT NOT NULL DEFAULT '',
	embedding_model          TEXT NOT NULL DEFAULT '',
	ai_generated_description BOOLEAN NOT NULL DEFAULT FALSE,
	producer_id              TEXT REFERENCES producers(id),
	is_active                BOOLEAN NOT NULL DEFAULT TRUE,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_produce_created_at ON produce (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_produce_producer ON produce (producer_id);
`

// Effective-value expressions: item columns win, producer columns fill gaps.
const (
	effLocation = "COALESCE(NULLIF(p.location, ''), pr.location, '')"
	effMethod   = "COALESCE(NULLIF(p.farming_method, ''), pr.farming_method, '')"
)

var produceColumns = []string{
	"p.id", "p.name", "p.description", "p.price", "p.quantity", "p.unit",
	"p.category", "p.sub_category", "p.season", "p.farming_method", "p.location",
	"p.nutritional_highlights", "p.common_uses", "p.preparation_tips",
	"p.storage_instructions", "p.shelf_life", "COALESCE(p.embedding, '{}')",
	"p.embedding_text", "p.embedding_model", "p.ai_generated_description",
	"COALESCE(p.producer_id, '')", "p.is_active", "p.created_at",
	"COALESCE(pr.name, '')", "COALESCE(pr.location, '')", "COALESCE(pr.farming_method, '')",
}

// PostgresRepository is a Repository over a pgx connection pool. Queries are
// built with squirrel using $n placeholders; text filters use ILIKE against
// the effective (producer-backfilled) values so they agree with Filters.Match.
type PostgresRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
	now  func() time.Time
}

// NewPool parses dsn, opens a pgx pool and pings it.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresRepository wraps pool. The caller owns the pool's lifecycle.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:  time.Now,
	}
}

// Migrate creates the tables and indexes if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// UpsertProducer implements Repository.
func (r *PostgresRepository) UpsertProducer(ctx context.Context, p domain.ProducerInfo) error {
	if p.ID == "" {
		return fmt.Errorf("catalog: upsert producer: empty id")
	}
	q := r.sb.Insert("producers").
		Columns("id", "name", "location", "farming_method").
		Values(p.ID, p.Name, p.Location, p.FarmingMethod).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location, farming_method = EXCLUDED.farming_method")
	return r.exec(ctx, "upsert producer", q)
}

// Producer implements Repository.
func (r *PostgresRepository) Producer(ctx context.Context, id string) (*domain.ProducerInfo, error) {
	sql, args, err := r.sb.Select("id", "name", "location", "farming_method").
		From("producers").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build producer query: %w", err)
	}
	var p domain.ProducerInfo
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.Name, &p.Location, &p.FarmingMethod); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("catalog: producer %q: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("catalog: producer %q: %w", id, err)
	}
	return &p, nil
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.ProduceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	var producerID any
	if rec.ProducerID != "" {
		producerID = rec.ProducerID
	}
	var embedding any
	if len(rec.Embedding) > 0 {
		embedding = rec.Embedding
	}
	q := r.sb.Insert("produce").
		Columns("id", "name", "description", "price", "quantity", "unit",
			"category", "sub_category", "season", "farming_method", "location",
			"nutritional_highlights", "common_uses", "preparation_tips",
			"storage_instructions", "shelf_life", "embedding", "embedding_text",
			"embedding_model", "ai_generated_description", "producer_id",
			"is_active", "created_at").
		Values(rec.ID, rec.Name, rec.Description, rec.Price, rec.Quantity, rec.EffectiveUnit(),
			rec.Category, rec.SubCategory, rec.Season, rec.FarmingMethod, rec.Location,
			nonNil(rec.NutritionalHighlights), nonNil(rec.CommonUses), rec.PreparationTips,
			rec.StorageInstructions, rec.ShelfLife, embedding, rec.EmbeddingText,
			rec.EmbeddingModel, rec.AIGeneratedDescription, producerID,
			rec.Active, rec.CreatedAt)
	return r.exec(ctx, "create produce", q)
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.ProduceRecord, error) {
	recs, err := r.query(ctx, "get produce", r.selectProduce().Where(squirrel.Eq{"p.id": id}))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("catalog: get %q: %w", id, domain.ErrNotFound)
	}
	return &recs[0], nil
}

// FindCandidates implements Repository.
func (r *PostgresRepository) FindCandidates(ctx context.Context, f Filters) ([]domain.ProduceRecord, error) {
	q := applyFilters(r.selectProduce(), f).OrderBy("p.created_at ASC", "p.id ASC")
	return r.query(ctx, "find candidates", q)
}

// FindRecentComparable implements Repository.
func (r *PostgresRepository) FindRecentComparable(ctx context.Context, name, category string, limit int) ([]domain.ProduceRecord, error) {
	or := squirrel.Or{}
	if name != "" {
		or = append(or, ilikeContains("p.name", name))
	}
	if category != "" {
		or = append(or, ilikeContains("p.category", category))
	}
	if len(or) == 0 {
		return nil, nil
	}
	q := r.selectProduce().
		Where(squirrel.Eq{"p.is_active": true}).
		Where(squirrel.Gt{"p.quantity": 0}).
		Where(or).
		OrderBy("p.created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.query(ctx, "find comparable", q)
}

// FindRecent implements Repository.
func (r *PostgresRepository) FindRecent(ctx context.Context, f Filters, limit int) ([]domain.ProduceRecord, error) {
	q := applyFilters(r.selectProduce(), f).OrderBy("p.created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.query(ctx, "find recent", q)
}

// ListByProducer implements Repository.
func (r *PostgresRepository) ListByProducer(ctx context.Context, producerID string) ([]domain.ProduceRecord, error) {
	q := r.selectProduce().
		Where(squirrel.Eq{"p.producer_id": producerID, "p.is_active": true}).
		OrderBy("p.created_at DESC")
	return r.query(ctx, "list by producer", q)
}

// UpdateEmbedding implements Repository.
func (r *PostgresRepository) UpdateEmbedding(ctx context.Context, id string, u EmbeddingUpdate) error {
	sql, args, err := r.sb.Update("produce").
		Set("description", u.Description).
		Set("ai_generated_description", u.AIGeneratedDescription).
		Set("embedding", u.Embedding).
		Set("embedding_text", u.EmbeddingText).
		Set("embedding_model", u.EmbeddingModel).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("catalog: build update embedding: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("catalog: update embedding %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: update embedding %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

// FindMissingEmbeddings implements Repository.
func (r *PostgresRepository) FindMissingEmbeddings(ctx context.Context) ([]domain.ProduceRecord, error) {
	return r.query(ctx, "find missing embeddings", r.selectProduce().OrderBy("p.created_at ASC"))
}

// Ping reports whether the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) selectProduce() squirrel.SelectBuilder {
	return r.sb.Select(produceColumns...).
		From("produce p").
		LeftJoin("producers pr ON pr.id = p.producer_id")
}

// applyFilters mirrors Filters.Match in SQL.
func applyFilters(q squirrel.SelectBuilder, f Filters) squirrel.SelectBuilder {
	if f.ActiveOnly {
		q = q.Where(squirrel.Eq{"p.is_active": true})
	}
	q = q.Where(squirrel.Gt{"p.quantity": f.MinQuantity})
	if f.MaxPrice > 0 {
		q = q.Where(squirrel.LtOrEq{"p.price": f.MaxPrice})
	}
	if f.Category != "" {
		q = q.Where(ilikeContains("p.category", f.Category))
	}
	if f.FarmingMethod != "" {
		q = q.Where(ilikeContains(effMethod, f.FarmingMethod))
	}
	if f.Location != "" {
		q = q.Where(ilikeContains(effLocation, f.Location))
	}
	if f.Season != "" {
		q = q.Where(squirrel.Or{
			squirrel.Expr("lower(p.season) = lower(?)", f.Season),
			squirrel.Expr("lower(p.season) = lower(?)", domain.YearRound),
		})
	}
	return q
}

// likeEscaper makes user text literal inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ilikeContains is the SQL form of containsFold: col contains needle,
// case-insensitively, with LIKE wildcards in needle matched literally.
func ilikeContains(col, needle string) squirrel.Sqlizer {
	return squirrel.Expr(col+` ILIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(needle)+"%")
}

func (r *PostgresRepository) exec(ctx context.Context, op string, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("catalog: build %s: %w", op, err)
	}
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, op string, q squirrel.SelectBuilder) ([]domain.ProduceRecord, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build %s: %w", op, err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.ProduceRecord
	for rows.Next() {
		var rec domain.ProduceRecord
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Description, &rec.Price, &rec.Quantity, &rec.Unit,
			&rec.Category, &rec.SubCategory, &rec.Season, &rec.FarmingMethod, &rec.Location,
			&rec.NutritionalHighlights, &rec.CommonUses, &rec.PreparationTips,
			&rec.StorageInstructions, &rec.ShelfLife, &rec.Embedding,
			&rec.EmbeddingText, &rec.EmbeddingModel, &rec.AIGeneratedDescription,
			&rec.ProducerID, &rec.Active, &rec.CreatedAt,
			&rec.Producer.Name, &rec.Producer.Location, &rec.Producer.FarmingMethod,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan %s: %w", op, err)
		}
		rec.Producer.ID = rec.ProducerID
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: %s rows: %w", op, err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
