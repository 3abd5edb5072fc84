package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/saturn/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
		enabled bool
	}{
		{name: "nil config", wantErr: true},
		{name: "disabled", config: &config.TracingConfig{}},
		{
			name:    "enabled with always sampler",
			config:  &config.TracingConfig{Enabled: true, Sampler: SamplerAlways, Endpoint: "localhost:4317", Insecure: true},
			enabled: true,
		},
		{
			name:    "missing endpoint",
			config:  &config.TracingConfig{Enabled: true, Sampler: SamplerAlways},
			wantErr: true,
		},
		{
			name:    "bad sampler",
			config:  &config.TracingConfig{Enabled: true, Sampler: "sometimes", Endpoint: "localhost:4317"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := otel.GetTracerProvider()
			t.Cleanup(func() { otel.SetTracerProvider(prev) })

			tr, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tr.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tr.Enabled(), tt.enabled)
			}
			_, span := tr.Start(context.Background(), SpanRequest)
			span.End()
			if err := tr.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown: %v", err)
			}
		})
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{"", 0.1, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"weighted", 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v", tt.strategy, tt.ratio, err)
			}
			if err == nil && s == nil {
				t.Error("expected a sampler")
			}
		})
	}
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartAndEnd(t *testing.T) {
	rec := installRecorder(t)

	ctx, span := Start(context.Background(), SpanPolicy, RequestAttributes("req-1", "acme", "u1", "/v1/chat/completions", "pii")...)
	if TraceID(ctx) == "" {
		t.Error("expected a trace id in the span context")
	}
	End(span, errors.New("decision service down"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	s := ended[0]
	if s.Name() != SpanPolicy {
		t.Errorf("name = %q", s.Name())
	}
	if s.Status().Description != "decision service down" {
		t.Errorf("status = %+v", s.Status())
	}
	found := false
	for _, kv := range s.Attributes() {
		if string(kv.Key) == AttrTenantID && kv.Value.AsString() == "acme" {
			found = true
		}
	}
	if !found {
		t.Error("tenant attribute missing")
	}
}

func TestTraceID_NoSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() = %q, want empty", got)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var seen string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id in handler = %q", seen)
	}
	if rr.Header().Get("X-Trace-ID") != seen {
		t.Errorf("X-Trace-ID = %q", rr.Header().Get("X-Trace-ID"))
	}

	headers := http.Header{}
	Inject(Extract(context.Background(), req.Header), headers)
	if headers.Get("traceparent") == "" {
		t.Error("Inject should write traceparent")
	}
}
