package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	sseInitialBuffer = 64 * 1024
	sseMaxLine       = 1024 * 1024
)

// SSEEvent is one dispatched text/event-stream frame. Data joins multiple
// data lines with "\n".
type SSEEvent struct {
	Name string
	Data string
}

// SSEDecoder splits a streaming response body into events. Comment lines
// and unknown fields are ignored. A frame without a name or data is never
// returned.
type SSEDecoder struct {
	provider string
	body     io.ReadCloser
	lines    *bufio.Scanner
	closed   bool
}

// NewSSEDecoder wraps body. provider names the upstream in read errors.
func NewSSEDecoder(provider string, body io.ReadCloser) *SSEDecoder {
	lines := bufio.NewScanner(body)
	lines.Buffer(make([]byte, 0, sseInitialBuffer), sseMaxLine)
	return &SSEDecoder{provider: provider, body: body, lines: lines}
}

// OpenSSE posts payload as JSON and returns a decoder over the response.
// Failures before the first byte carry the same typed errors as DoRequest.
func (p *HTTPProvider) OpenSSE(ctx context.Context, url string, payload any, headers map[string]string) (*SSEDecoder, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := p.DoRequest(ctx, "POST", url, body, headers)
	if err != nil {
		return nil, err
	}
	return NewSSEDecoder(p.config.Name, resp.Body), nil
}

// Next returns the next event, or io.EOF once the body is exhausted. A final
// frame without a trailing blank line is still returned.
func (d *SSEDecoder) Next(ctx context.Context) (SSEEvent, error) {
	if d.closed {
		return SSEEvent{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return SSEEvent{}, err
	}

	var (
		ev   SSEEvent
		data []string
		seen bool
	)
	emit := func() SSEEvent {
		ev.Data = strings.Join(data, "\n")
		return ev
	}

	for d.lines.Scan() {
		line := strings.TrimSuffix(d.lines.Text(), "\r")
		if line == "" {
			if seen {
				return emit(), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}

	if err := d.lines.Err(); err != nil {
		return SSEEvent{}, &StreamError{Provider: d.provider, Message: "failed to read stream", Cause: err}
	}
	if seen {
		return emit(), nil
	}
	return SSEEvent{}, io.EOF
}

// Close releases the response body. It is safe to call more than once.
func (d *SSEDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.body.Close()
}
