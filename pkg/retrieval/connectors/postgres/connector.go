// Package postgres implements a retrieval connector over a PostgreSQL chunk
// table using full-text search.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mercator-hq/saturn/pkg/retrieval"
)

// DefaultTable is the chunk table name.
const DefaultTable = "rag_chunks"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Connector searches a chunk table with ts_rank full-text scoring.
type Connector struct {
	name  string
	table string
	pool  *pgxpool.Pool
}

// New connects to the database and verifies it is reachable.
func New(ctx context.Context, name, dsn, table string) (*Connector, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	slog.Info("postgres retrieval connector initialized", "connector", name, "table", table)
	return &Connector{name: name, table: table, pool: pool}, nil
}

// EnsureSchema creates the chunk table and its text search index.
func (c *Connector) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id        BIGSERIAL PRIMARY KEY,
			source_id TEXT NOT NULL,
			uri       TEXT NOT NULL,
			chunk_id  TEXT NOT NULL UNIQUE,
			text      TEXT NOT NULL,
			metadata  JSONB NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_source ON %[1]s (source_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_fts ON %[1]s USING GIN (to_tsvector('english', text));
	`, c.table)

	_, err := c.pool.Exec(ctx, ddl)
	return err
}

// Search implements retrieval.Connector.
func (c *Connector) Search(ctx context.Context, query string, filters map[string]string, k int) ([]retrieval.Chunk, error) {
	if k < 1 {
		return nil, nil
	}
	sql, args := searchQuery(c.table, query, filters, k)

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres search: %w", err)
	}
	defer rows.Close()

	var chunks []retrieval.Chunk
	for rows.Next() {
		ch := retrieval.Chunk{ConnectorID: c.name}
		var metadata map[string]string
		if err := rows.Scan(&ch.SourceID, &ch.URI, &ch.ChunkID, &ch.Text, &metadata, &ch.Score); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		if len(metadata) > 0 {
			ch.Metadata = metadata
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// Fetch implements retrieval.Connector.
func (c *Connector) Fetch(ctx context.Context, sourceID string) (*retrieval.Document, error) {
	sql := fmt.Sprintf(`SELECT uri, text, metadata FROM %s WHERE source_id = $1 ORDER BY chunk_id`, c.table)
	rows, err := c.pool.Query(ctx, sql, sourceID)
	if err != nil {
		return nil, fmt.Errorf("postgres fetch: %w", err)
	}
	defer rows.Close()

	var doc *retrieval.Document
	var parts []string
	for rows.Next() {
		var uri, text string
		var metadata map[string]string
		if err := rows.Scan(&uri, &text, &metadata); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		if doc == nil {
			doc = &retrieval.Document{SourceID: sourceID, URI: uri, Metadata: metadata}
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if doc != nil {
		doc.Text = strings.Join(parts, "\n")
	}
	return doc, nil
}

// Close releases the connection pool.
func (c *Connector) Close() error {
	c.pool.Close()
	return nil
}

// searchQuery builds the ranked full-text query. Filter keys are applied in
// sorted order so the statement text is stable.
func searchQuery(table, query string, filters map[string]string, k int) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT source_id, uri, chunk_id, text, metadata,
		ts_rank(to_tsvector('english', text), plainto_tsquery('english', $1))::float8 AS score
		FROM %s
		WHERE to_tsvector('english', text) @@ plainto_tsquery('english', $1)`, table)

	args := []any{query}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " AND metadata ->> $%d = $%d", len(args)+1, len(args)+2)
		args = append(args, key, filters[key])
	}

	fmt.Fprintf(&b, " ORDER BY score DESC, source_id, chunk_id LIMIT $%d", len(args)+1)
	args = append(args, k)
	return b.String(), args
}
