package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"mercator-hq/saturn/pkg/providers"
)

const doneSentinel = "[DONE]"

// chatStream adapts a chat.completion.chunk event stream. With
// stream_options.include_usage the API sends usage in a separate chunk after
// the one carrying finish_reason; chatStream holds the finishing chunk back
// until that trailer arrives so callers see a single terminal chunk.
type chatStream struct {
	provider string
	events   *providers.SSEDecoder
	held     *providers.StreamChunk
	ended    bool
}

func openChatStream(ctx context.Context, p *providers.HTTPProvider, url string, req *OpenAIRequest, headers map[string]string) (*chatStream, error) {
	events, err := p.OpenSSE(ctx, url, req, headers)
	if err != nil {
		return nil, err
	}
	return &chatStream{provider: p.Name(), events: events}, nil
}

// Read implements providers.StreamReader.
func (s *chatStream) Read(ctx context.Context) (*providers.StreamChunk, error) {
	for !s.ended {
		chunk, err := s.decode(ctx)
		switch {
		case errors.Is(err, io.EOF):
			s.ended = true
		case err != nil:
			return nil, err
		case s.held != nil:
			if chunk.Usage != nil {
				s.held.Usage = chunk.Usage
			}
			s.ended = true
		case chunk.FinishReason != "" && chunk.Usage == nil:
			s.held = chunk
		default:
			return chunk, nil
		}
	}

	if s.held != nil {
		last := s.held
		s.held = nil
		return last, nil
	}
	return nil, io.EOF
}

// decode returns the next data-bearing chunk. The [DONE] sentinel ends the
// stream with io.EOF.
func (s *chatStream) decode(ctx context.Context) (*providers.StreamChunk, error) {
	for {
		ev, err := s.events.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch ev.Data {
		case "":
			continue
		case doneSentinel:
			return nil, io.EOF
		}

		var wire OpenAIStreamResponse
		if err := json.Unmarshal([]byte(ev.Data), &wire); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.provider,
				RawResponse: ev.Data,
				Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
			}
		}
		chunk, err := transformStreamChunk(&wire)
		if err != nil {
			return nil, &providers.ParseError{Provider: s.provider, Cause: err}
		}
		return chunk, nil
	}
}

// Close implements providers.StreamReader.
func (s *chatStream) Close() error {
	return s.events.Close()
}
