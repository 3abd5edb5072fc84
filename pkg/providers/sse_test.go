package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func decodeAll(t *testing.T, body string) []SSEEvent {
	t.Helper()
	d := NewSSEDecoder("test-provider", io.NopCloser(strings.NewReader(body)))
	defer d.Close()

	var events []SSEEvent
	for {
		ev, err := d.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, ev)
	}
}

func TestSSEDecoder_Framing(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []SSEEvent
	}{
		{
			name: "data only",
			body: "data: {\"a\":1}\n\ndata: [DONE]\n\n",
			want: []SSEEvent{{Data: `{"a":1}`}, {Data: "[DONE]"}},
		},
		{
			name: "named event",
			body: "event: ping\ndata: {\"type\":\"ping\"}\n\n",
			want: []SSEEvent{{Name: "ping", Data: `{"type":"ping"}`}},
		},
		{
			name: "multi-line data",
			body: "data: first\ndata: second\n\n",
			want: []SSEEvent{{Data: "first\nsecond"}},
		},
		{
			name: "comments and blank runs skipped",
			body: ": keep-alive\n\n\n\ndata: x\n\n",
			want: []SSEEvent{{Data: "x"}},
		},
		{
			name: "crlf line endings",
			body: "event: message_stop\r\ndata: {}\r\n\r\n",
			want: []SSEEvent{{Name: "message_stop", Data: "{}"}},
		},
		{
			name: "unterminated final frame",
			body: "data: tail",
			want: []SSEEvent{{Data: "tail"}},
		},
		{
			name: "unknown fields ignored",
			body: "id: 7\nretry: 100\ndata: y\n\n",
			want: []SSEEvent{{Data: "y"}},
		},
		{
			name: "no space after colon",
			body: "data:z\n\n",
			want: []SSEEvent{{Data: "z"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeAll(t, tt.body)
			if len(got) != len(tt.want) {
				t.Fatalf("events = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSSEDecoder_ClosedAndCancelled(t *testing.T) {
	d := NewSSEDecoder("test-provider", io.NopCloser(strings.NewReader("data: a\n\n")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Next err = %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := d.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next after Close err = %v, want EOF", err)
	}
}

func TestSSEDecoder_LineTooLong(t *testing.T) {
	body := "data: " + strings.Repeat("x", sseMaxLine+1) + "\n\n"
	d := NewSSEDecoder("test-provider", io.NopCloser(strings.NewReader(body)))
	defer d.Close()

	_, err := d.Next(context.Background())
	var se *StreamError
	if !errors.As(err, &se) || se.Provider != "test-provider" {
		t.Fatalf("err = %v, want *StreamError", err)
	}
}

func TestHTTPProvider_OpenSSE(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: hello\n\n")
	}))
	defer server.Close()

	p := testProvider(server.URL, 5*time.Second)
	d, err := p.OpenSSE(context.Background(), server.URL, map[string]bool{"stream": true}, nil)
	if err != nil {
		t.Fatalf("OpenSSE: %v", err)
	}
	defer d.Close()

	ev, err := d.Next(context.Background())
	if err != nil || ev.Data != "hello" {
		t.Fatalf("Next = %+v, %v", ev, err)
	}
	if _, err := d.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestHTTPProvider_OpenSSEStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := testProvider(server.URL, 5*time.Second)
	_, err := p.OpenSSE(context.Background(), server.URL, struct{}{}, nil)
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503", err)
	}
}
