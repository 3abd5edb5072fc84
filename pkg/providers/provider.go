package providers

import (
	"context"
	"errors"
	"io"
)

// Provider is the interface every LLM provider adapter implements.
//
// Each method performs exactly one upstream attempt. Fallback across providers
// is the router's job, so adapters never retry internally.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must return promptly once the context is done.
type Provider interface {
	// Name returns the provider's configured name (e.g., "openai", "anthropic").
	Name() string

	// Chat sends a non-streaming chat completion request.
	Chat(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Stream opens a streaming chat completion.
	//
	// The caller must read the channel until it closes. A failure after the
	// stream opened is delivered as a final chunk with Error set.
	//
	//  chunks, err := provider.Stream(ctx, req)
	//  if err != nil {
	//      return err
	//  }
	//  for chunk := range chunks {
	//      if chunk.Error != nil {
	//          return chunk.Error
	//      }
	//      fmt.Print(chunk.Delta)
	//  }
	Stream(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// Embeddings computes embedding vectors for the request inputs.
	Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// Close releases pooled connections. The provider must not be used afterwards.
	Close() error
}

// HealthReporter is implemented by providers that track passive health from
// the outcome of real requests.
type HealthReporter interface {
	Health() ProviderHealth
}

// StreamReader abstracts the SSE framing used by a provider's streaming API.
type StreamReader interface {
	// Read returns the next chunk, or nil and io.EOF when the stream ends normally.
	Read(ctx context.Context) (*StreamChunk, error)

	// Close closes the stream and releases resources.
	Close() error
}

// PumpStream reads from a StreamReader into a buffered channel on its own
// goroutine. Read errors other than io.EOF are delivered as a terminal chunk.
func PumpStream(ctx context.Context, stream StreamReader) <-chan *StreamChunk {
	chunks := make(chan *StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			chunk, err := stream.Read(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				select {
				case chunks <- &StreamChunk{Error: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}

			if chunk.FinishReason != "" {
				return
			}
		}
	}()

	return chunks
}
