package logging

import (
	"context"
	"log/slog"
	"strings"

	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/redaction"
)

// secretKeys are attribute keys whose values are never logged.
var secretKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"password":      true,
	"secret":        true,
	"token":         true,
}

const secretMask = "[REDACTED]"

// RedactingHandler passes string attribute values through the redaction
// rule set before they reach the wrapped handler. Values under secret keys
// are masked outright. The log message itself is not scanned.
type RedactingHandler struct {
	next   slog.Handler
	engine *redaction.Engine
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, engine *redaction.Engine) *RedactingHandler {
	return &RedactingHandler{next: next, engine: engine}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), engine: h.engine}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), engine: h.engine}
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, secretMask)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.engine.ScanForced(v.String(), governance.ClassificationPII).Text)
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = h.redact(ga)
		}
		return slog.Group(a.Key, redacted...)
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
