package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/redaction"
)

func newEngine(t *testing.T) *redaction.Engine {
	t.Helper()
	e, err := redaction.NewEngine(redaction.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return m
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		engine  bool
		wantErr bool
	}{
		{name: "defaults", cfg: config.LoggingConfig{}},
		{name: "text debug", cfg: config.LoggingConfig{Level: "DEBUG", Format: "text"}},
		{name: "console", cfg: config.LoggingConfig{Format: "console"}},
		{name: "bad level", cfg: config.LoggingConfig{Level: "trace"}, wantErr: true},
		{name: "bad format", cfg: config.LoggingConfig{Format: "xml"}, wantErr: true},
		{name: "redaction without engine", cfg: config.LoggingConfig{RedactPII: true}, wantErr: true},
		{name: "redaction with engine", cfg: config.LoggingConfig{RedactPII: true}, engine: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Writer: &bytes.Buffer{}}
			if tt.engine {
				opts.Redactor = newEngine(t)
			}
			_, err := New(tt.cfg, opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn"}, Options{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn, got %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn should be written, got %q", buf.String())
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{}, Options{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithUserID(WithTenantID(WithRequestID(context.Background(), "req-1"), "acme"), "u-7")
	logger.InfoContext(ctx, "request completed", "outcome", "success")

	m := decode(t, &buf)
	for key, want := range map[string]string{"request_id": "req-1", "tenant_id": "acme", "user_id": "u-7", "outcome": "success"} {
		if m[key] != want {
			t.Errorf("%s = %v, want %q", key, m[key], want)
		}
	}

	if GetRequestID(context.Background()) != "" || GetTenantID(ctx) != "acme" || GetUserID(ctx) != "u-7" {
		t.Error("context accessors returned unexpected values")
	}
}

func TestRedactingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{RedactPII: true}, Options{Writer: &buf, Redactor: newEngine(t)})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("api_key", "sk-live-123").Info("upstream call",
		"note", "contact jane@example.com",
		"attempts", 2,
		slog.Group("caller", slog.String("email", "bob@example.com")),
	)

	m := decode(t, &buf)
	if m["api_key"] != secretMask {
		t.Errorf("api_key = %v", m["api_key"])
	}
	if m["note"] != "contact [EMAIL_REDACTED]" {
		t.Errorf("note = %v", m["note"])
	}
	if m["attempts"] != float64(2) {
		t.Errorf("attempts = %v", m["attempts"])
	}
	caller, _ := m["caller"].(map[string]any)
	if caller["email"] != "[EMAIL_REDACTED]" {
		t.Errorf("caller.email = %v", caller["email"])
	}
	if strings.Contains(buf.String(), "jane@example.com") {
		t.Error("raw email leaked into log output")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	if FromContext(context.Background(), base) != base {
		t.Error("empty context should return base unchanged")
	}

	FromContext(WithTenantID(context.Background(), "acme"), base).Info("hello")
	if m := decode(t, &buf); m["tenant_id"] != "acme" {
		t.Errorf("tenant_id = %v", m["tenant_id"])
	}
}
