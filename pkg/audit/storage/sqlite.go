package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/saturn/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite audit sink.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/audit/events.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteSink stores audit events in an append-only SQLite table. Update and
// delete are refused by triggers.
type SQLiteSink struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteSink opens the database and creates the schema.
func NewSQLiteSink(config *SQLiteConfig) (*SQLiteSink, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	// One writer; the audit Writer serializes appends anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite audit sink initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteSink) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec("PRAGMA synchronous=FULL;"); err != nil {
		return audit.NewStorageError("sqlite", "set_synchronous", err)
	}
	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return audit.NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Append inserts one event.
func (s *SQLiteSink) Append(ctx context.Context, ev audit.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			event_id, request_id, tenant_id, outcome, created_at, prev_hash, payload_hash, body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.RequestID, ev.TenantID, string(ev.Outcome), ev.CreatedAt,
		ev.PrevHash, ev.PayloadHash, string(body),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "append", err)
	}
	return nil
}

// Last returns the event with the highest sequence number.
func (s *SQLiteSink) Last(ctx context.Context) (*audit.Event, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM audit_events ORDER BY seq DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "last", err)
	}
	var ev audit.Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return nil, audit.NewStorageError("sqlite", "decode", err)
	}
	return &ev, nil
}

// ReadAll returns every event in sequence order.
func (s *SQLiteSink) ReadAll(ctx context.Context) ([]audit.Event, error) {
	return s.query(ctx, "read", `SELECT body FROM audit_events ORDER BY seq ASC`)
}

// FindByRequestID returns a request's events in sequence order.
func (s *SQLiteSink) FindByRequestID(ctx context.Context, requestID string) ([]audit.Event, error) {
	return s.query(ctx, "find", `SELECT body FROM audit_events WHERE request_id = ? ORDER BY seq ASC`, requestID)
}

func (s *SQLiteSink) query(ctx context.Context, op, q string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", op, err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, audit.NewStorageError("sqlite", op, err)
		}
		var ev audit.Event
		if err := json.Unmarshal([]byte(body), &ev); err != nil {
			return nil, audit.NewStorageError("sqlite", "decode", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", op, err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
