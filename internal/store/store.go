// Package store persists recommendation conversation turns in SQLite. Each
// turn keeps the question, the narrative, the optional user and session keys,
// and typed context/metadata that are serialized to JSON columns only here.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/farmtable-go/internal/domain"
)

// ConversationStore persists and retrieves conversation turns keyed by user
// or session. Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Append persists turn, assigning its ID and CreatedAt.
	Append(ctx context.Context, turn *domain.ConversationTurn) error
	// Recent returns up to n turns newest-first, filtered on every non-empty
	// key. With both keys empty it returns no turns.
	Recent(ctx context.Context, userID, sessionID string, n int) ([]domain.ConversationTurn, error)
	// Since returns every turn created at or after since, newest-first,
	// restricted to userID when it is non-empty.
	Since(ctx context.Context, since time.Time, userID string) ([]domain.ConversationTurn, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a ConversationStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now stamps new turns; replaced in tests.
	now func() time.Time
}

// DefaultDBPath returns ~/.farmtable/history.db, creating the directory.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".farmtable")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// alive for the life of the pool.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      TEXT    NOT NULL DEFAULT '',
    session_id   TEXT    NOT NULL DEFAULT '',
    question     TEXT    NOT NULL,
    response     TEXT    NOT NULL,
    context      TEXT    NOT NULL DEFAULT '{}',
    metadata     TEXT    NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_turns_user_created
    ON conversation_turns (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_turns_session_created
    ON conversation_turns (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists turn.
func (s *SQLiteStore) Append(ctx context.Context, turn *domain.ConversationTurn) error {
	ctxJSON, err := json.Marshal(turn.Context)
	if err != nil {
		return fmt.Errorf("store: encode context: %w", err)
	}
	metaJSON, err := json.Marshal(turn.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode metadata: %w", err)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now().UTC()
	}

	const q = `INSERT INTO conversation_turns
    (user_id, session_id, question, response, context, metadata, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		turn.UserID, turn.SessionID, turn.Question, turn.Response,
		string(ctxJSON), string(metaJSON), turn.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: append id: %w", err)
	}
	turn.ID = id
	return nil
}

// Recent implements ConversationStore.
func (s *SQLiteStore) Recent(ctx context.Context, userID, sessionID string, n int) ([]domain.ConversationTurn, error) {
	var (
		where []string
		args  []any
	)
	if userID != "" {
		where = append(where, "user_id = ?")
		args = append(args, userID)
	}
	if sessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, sessionID)
	}
	if len(where) == 0 || n <= 0 {
		return []domain.ConversationTurn{}, nil
	}
	args = append(args, n)

	q := selectTurns + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id DESC LIMIT ?"
	return s.query(ctx, "recent", q, args...)
}

// Since implements ConversationStore.
func (s *SQLiteStore) Since(ctx context.Context, since time.Time, userID string) ([]domain.ConversationTurn, error) {
	q := selectTurns + " WHERE created_at >= ?"
	args := []any{since.UnixMilli()}
	if userID != "" {
		q += " AND user_id = ?"
		args = append(args, userID)
	}
	q += " ORDER BY created_at DESC, id DESC"
	return s.query(ctx, "since", q, args...)
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

const selectTurns = `SELECT id, user_id, session_id, question, response, context, metadata, created_at
FROM conversation_turns`

func (s *SQLiteStore) query(ctx context.Context, op, q string, args ...any) ([]domain.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", op, err)
	}
	defer rows.Close()

	turns := []domain.ConversationTurn{}
	for rows.Next() {
		var (
			t                 domain.ConversationTurn
			ctxJSON, metaJSON string
			ms                int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.SessionID, &t.Question, &t.Response, &ctxJSON, &metaJSON, &ms); err != nil {
			return nil, fmt.Errorf("store: %s scan: %w", op, err)
		}
		if err := json.Unmarshal([]byte(ctxJSON), &t.Context); err != nil {
			return nil, fmt.Errorf("store: %s decode context of turn %d: %w", op, t.ID, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
			return nil, fmt.Errorf("store: %s decode metadata of turn %d: %w", op, t.ID, err)
		}
		t.CreatedAt = time.UnixMilli(ms).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %s rows: %w", op, err)
	}
	return turns, nil
}
