package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mercator-hq/saturn/pkg/providers"
)

// messageStream adapts the Messages API event stream. Only text deltas and
// the final stop reason become chunks; ping, message_start and block
// boundaries update state or are skipped.
type messageStream struct {
	provider string
	events   *providers.SSEDecoder
	state    streamState
}

func openMessageStream(ctx context.Context, p *providers.HTTPProvider, url string, req *AnthropicRequest, headers map[string]string) (*messageStream, error) {
	events, err := p.OpenSSE(ctx, url, req, headers)
	if err != nil {
		return nil, err
	}
	return &messageStream{provider: p.Name(), events: events}, nil
}

// Read implements providers.StreamReader. message_stop ends the stream.
func (s *messageStream) Read(ctx context.Context) (*providers.StreamChunk, error) {
	for {
		ev, err := s.events.Next(ctx)
		if err != nil {
			return nil, err
		}

		msg, err := s.parse(ev)
		if err != nil {
			return nil, err
		}
		if msg.Type == "message_stop" {
			return nil, io.EOF
		}

		chunk, err := transformStreamChunk(msg, &s.state)
		if err != nil {
			return nil, &providers.StreamError{Provider: s.provider, Message: "upstream stream event", Cause: err}
		}
		if chunk != nil {
			return chunk, nil
		}
	}
}

// parse decodes the data payload. The payload's own type wins over the
// SSE event name.
func (s *messageStream) parse(ev providers.SSEEvent) (*AnthropicStreamEvent, error) {
	var msg AnthropicStreamEvent
	if ev.Data != "" {
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.provider,
				RawResponse: ev.Data,
				Cause:       fmt.Errorf("failed to parse stream event: %w", err),
			}
		}
	}
	if msg.Type == "" {
		msg.Type = ev.Name
	}
	return &msg, nil
}

// Close implements providers.StreamReader.
func (s *messageStream) Close() error {
	return s.events.Close()
}
