package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    endpoint_url TEXT NOT NULL,
    payload TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    last_error TEXT,
    status_code INTEGER,
    idempotency_key TEXT NOT NULL,
    first_seen_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dead_letters_event_type ON dead_letters(event_type);
CREATE INDEX IF NOT EXISTS idx_dead_letters_first_seen_at ON dead_letters(first_seen_at);
`

// SQLiteStore keeps dead letters in an SQLite database (pure Go driver).
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewSQLiteStore opens the database at path and creates the schema.
func NewSQLiteStore(path string, retention time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dead-letter directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize dead-letter database: %w", err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		retention: retention,
		now:       time.Now,
		logger:    slog.Default().With("component", "webhook.deadletter.sqlite"),
	}
	s.logger.Info("dead-letter store initialized", "path", path, "retention", retention)
	return s, nil
}

// Append inserts one record.
func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FirstSeenAt.IsZero() {
		r.FirstSeenAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (
			id, event_id, event_type, endpoint_url, payload, attempts,
			last_error, status_code, idempotency_key, first_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventID, r.EventType, r.EndpointURL, string(r.Payload), r.Attempts,
		r.LastError, r.StatusCode, r.IdempotencyKey, r.FirstSeenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

// List prunes expired records, then returns matches oldest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	if s.retention > 0 {
		if _, err := s.Prune(ctx, s.now().Add(-s.retention)); err != nil {
			return nil, err
		}
	}

	q := `SELECT id, event_id, event_type, endpoint_url, payload, attempts,
		COALESCE(last_error, ''), COALESCE(status_code, 0), idempotency_key, first_seen_at
		FROM dead_letters`
	var args []any
	if len(f.EventTypes) > 0 {
		q += " WHERE event_type IN (?" + strings.Repeat(", ?", len(f.EventTypes)-1) + ")"
		for _, t := range f.EventTypes {
			args = append(args, t)
		}
	}
	q += " ORDER BY first_seen_at ASC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			payload string
			seen    int64
		)
		if err := rows.Scan(&r.ID, &r.EventID, &r.EventType, &r.EndpointURL, &payload, &r.Attempts,
			&r.LastError, &r.StatusCode, &r.IdempotencyKey, &seen); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		r.FirstSeenAt = time.Unix(0, seen).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune removes records first seen before the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE first_seen_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes records by id.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dead_letters WHERE id IN (?`+strings.Repeat(", ?", len(ids)-1)+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete dead letters: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
