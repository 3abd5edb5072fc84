package deadletter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JSONLStore keeps dead letters in a JSON-lines file. Prune and Delete
// rewrite the file through a temp file and rename.
type JSONLStore struct {
	path      string
	retention time.Duration
	now       func() time.Time
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewJSONLStore creates a store at path, creating parent directories.
func NewJSONLStore(path string, retention time.Duration) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dead-letter directory: %w", err)
	}
	return &JSONLStore{
		path:      path,
		retention: retention,
		now:       time.Now,
		logger:    slog.Default().With("component", "webhook.deadletter.jsonl"),
	}, nil
}

// Append writes one record and fsyncs.
func (s *JSONLStore) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FirstSeenAt.IsZero() {
		r.FirstSeenAt = s.now().UTC()
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

// List prunes expired records, then returns matches oldest first.
func (s *JSONLStore) List(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retention > 0 {
		if _, err := s.rewriteLocked(func(r Record) bool {
			return !r.FirstSeenAt.Before(s.now().Add(-s.retention))
		}); err != nil {
			return nil, err
		}
	}

	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if !f.matches(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Prune removes records first seen before the cutoff.
func (s *JSONLStore) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewriteLocked(func(r Record) bool { return !r.FirstSeenAt.Before(before) })
}

// Delete removes records by id.
func (s *JSONLStore) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewriteLocked(func(r Record) bool { return !slices.Contains(ids, r.ID) })
}

// Close is a no-op; the file is opened per operation.
func (s *JSONLStore) Close() error {
	return nil
}

func (s *JSONLStore) readLocked() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("dead-letter line %d: %w", line, err)
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}

// rewriteLocked keeps records for which keep returns true and reports how
// many were removed. The file is untouched when nothing is removed.
func (s *JSONLStore) rewriteLocked(keep func(Record) bool) (int, error) {
	records, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	kept := records[:0:0]
	for _, r := range records {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".dead_letter-*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, r := range kept {
		line, err := json.Marshal(r)
		if err != nil {
			tmp.Close()
			return 0, err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return 0, err
	}

	s.logger.Debug("dead-letter file rewritten", "removed", removed, "kept", len(kept))
	return removed, nil
}
