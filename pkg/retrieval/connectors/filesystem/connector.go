// Package filesystem implements a retrieval connector over a local JSONL
// chunk index.
//
// Each index line is an object with source_id, uri, chunk_id, text and an
// optional metadata object. Chunks are scored by the fraction of distinct
// query tokens they contain.
package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"mercator-hq/saturn/pkg/retrieval"
)

var tokenSplit = regexp.MustCompile(`\W+`)

type record struct {
	SourceID string         `json:"source_id"`
	URI      string         `json:"uri"`
	ChunkID  string         `json:"chunk_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Connector searches a JSONL index. The index is read on every call so
// re-ingestion takes effect without a restart.
type Connector struct {
	name string
	path string
}

// New creates a filesystem connector registered under name.
func New(name, indexPath string) *Connector {
	return &Connector{name: name, path: indexPath}
}

// Search implements retrieval.Connector.
func (c *Connector) Search(ctx context.Context, query string, filters map[string]string, k int) ([]retrieval.Chunk, error) {
	if k < 1 {
		return nil, nil
	}
	records, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	queryTokens := tokens(query)
	var ranked []retrieval.Chunk
	for _, rec := range records {
		metadata := stringify(rec.Metadata)
		if !matches(metadata, filters) {
			continue
		}
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}

		var score float64
		if len(queryTokens) > 0 {
			overlap := 0
			chunkTokens := tokens(text)
			for t := range queryTokens {
				if _, ok := chunkTokens[t]; ok {
					overlap++
				}
			}
			score = math.Round(float64(overlap)/float64(len(queryTokens))*1e6) / 1e6
		}

		ranked = append(ranked, retrieval.Chunk{
			ConnectorID: c.name,
			SourceID:    rec.SourceID,
			URI:         rec.URI,
			ChunkID:     rec.ChunkID,
			Text:        text,
			Score:       score,
			Metadata:    metadata,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// Fetch implements retrieval.Connector. The document text joins every chunk
// of the source in index order.
func (c *Connector) Fetch(ctx context.Context, sourceID string) (*retrieval.Document, error) {
	records, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	var doc *retrieval.Document
	var parts []string
	for _, rec := range records {
		if rec.SourceID != sourceID {
			continue
		}
		if doc == nil {
			doc = &retrieval.Document{SourceID: sourceID, URI: rec.URI, Metadata: stringify(rec.Metadata)}
		}
		if rec.Text != "" {
			parts = append(parts, rec.Text)
		}
	}
	if doc != nil {
		doc.Text = strings.Join(parts, "\n")
	}
	return doc, nil
}

func (c *Connector) load(ctx context.Context) ([]record, error) {
	f, err := os.Open(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var records []record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b := strings.TrimSpace(scanner.Text())
		if b == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(b), &rec); err != nil {
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return records, ctx.Err()
}

func tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokenSplit.Split(strings.ToLower(text), -1) {
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

func stringify(raw map[string]any) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func matches(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if got, ok := metadata[k]; !ok || got != want {
			return false
		}
	}
	return true
}
