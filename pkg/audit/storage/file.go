package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mercator-hq/saturn/pkg/audit"
)

// maxLineSize bounds a single JSONL event when reading.
const maxLineSize = 16 * 1024 * 1024

// FileSink is an append-only JSONL audit log. Every append is fsynced
// before it returns.
type FileSink struct {
	path   string
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewFileSink opens (or creates) the log at path.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, audit.NewStorageError("file", "open", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, audit.NewStorageError("file", "open", err)
	}
	s := &FileSink{
		path:   path,
		file:   f,
		logger: slog.Default().With("component", "audit.storage.file"),
	}
	s.logger.Info("audit file sink opened", "path", path)
	return s, nil
}

// Append writes ev as one JSON line and fsyncs.
func (s *FileSink) Append(ctx context.Context, ev audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return os.ErrClosed
	}
	if _, err := s.file.Write(line); err != nil {
		return err
	}
	return s.file.Sync()
}

// Last returns the final event in the log.
func (s *FileSink) Last(ctx context.Context) (*audit.Event, error) {
	var last *audit.Event
	err := s.scan(ctx, func(ev audit.Event) bool {
		last = &ev
		return true
	})
	return last, err
}

// ReadAll returns every event in file order.
func (s *FileSink) ReadAll(ctx context.Context) ([]audit.Event, error) {
	var events []audit.Event
	err := s.scan(ctx, func(ev audit.Event) bool {
		events = append(events, ev)
		return true
	})
	return events, err
}

// FindByRequestID scans the log for a request's events.
func (s *FileSink) FindByRequestID(ctx context.Context, requestID string) ([]audit.Event, error) {
	var events []audit.Event
	err := s.scan(ctx, func(ev audit.Event) bool {
		if ev.RequestID == requestID {
			events = append(events, ev)
		}
		return true
	})
	return events, err
}

// Close closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *FileSink) scan(ctx context.Context, fn func(audit.Event) bool) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return audit.NewStorageError("file", "read", err)
	}
	defer f.Close()

	return decodeLines(ctx, f, fn)
}

func decodeLines(ctx context.Context, r io.Reader, fn func(audit.Event) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev audit.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return audit.NewStorageError("file", "decode", fmt.Errorf("line %d: %w", line, err))
		}
		if !fn(ev) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return audit.NewStorageError("file", "read", err)
	}
	return nil
}
