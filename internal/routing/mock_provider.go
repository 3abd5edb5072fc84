package routing

import (
	"context"
	"fmt"
	"sync"

	"mercator-hq/saturn/pkg/providers"
)

// Step scripts one call to a MockProvider. A nil Err means success.
type Step struct {
	Err error

	// Content is returned for chat and streamed as a single delta.
	Content string

	// Chunks overrides Content for streams. An empty, non-nil slice closes
	// the stream before the first chunk.
	Chunks []*providers.StreamChunk
}

// MockProvider is a scripted provider for router and pipeline tests. Each
// call consumes the next Step; the last step repeats once the script is
// exhausted.
type MockProvider struct {
	name string

	mu       sync.Mutex
	steps    []Step
	calls    int
	requests []*providers.CompletionRequest
	closed   bool
}

// NewMockProvider creates a mock provider that succeeds with "mock response"
// unless scripted otherwise.
func NewMockProvider(name string, steps ...Step) *MockProvider {
	if len(steps) == 0 {
		steps = []Step{{Content: "mock response"}}
	}
	return &MockProvider{name: name, steps: steps}
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return m.name
}

// Calls returns how many calls the provider received.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent completion request, or nil.
func (m *MockProvider) LastRequest() *providers.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockProvider) next(req *providers.CompletionRequest) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	m.calls++
	if req != nil {
		m.requests = append(m.requests, req.Clone())
	}
	return m.steps[i]
}

// Chat returns the scripted response.
func (m *MockProvider) Chat(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	step := m.next(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &providers.CompletionResponse{
		ID:           fmt.Sprintf("%s-%d", m.name, m.Calls()),
		Model:        req.Model,
		Content:      step.Content,
		FinishReason: providers.FinishReasonStop,
		Usage: providers.TokenUsage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	}, nil
}

// Stream returns the scripted chunks. A step error fails the open.
func (m *MockProvider) Stream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	step := m.next(req)
	if step.Err != nil {
		return nil, step.Err
	}

	chunks := step.Chunks
	if chunks == nil {
		chunks = []*providers.StreamChunk{
			{Model: req.Model, Delta: step.Content},
			{Model: req.Model, FinishReason: providers.FinishReasonStop},
		}
	}

	out := make(chan *providers.StreamChunk)
	go func() {
		defer close(out)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Embeddings returns one zero vector per input.
func (m *MockProvider) Embeddings(ctx context.Context, req *providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	step := m.next(nil)
	if step.Err != nil {
		return nil, step.Err
	}
	resp := &providers.EmbeddingResponse{Model: req.Model}
	for i := range req.Input {
		resp.Data = append(resp.Data, providers.Embedding{Index: i, Vector: []float64{0, 0, 0}})
	}
	resp.Usage = providers.TokenUsage{PromptTokens: len(req.Input), TotalTokens: len(req.Input)}
	return resp, nil
}

// Close marks the provider closed.
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Status is a shorthand for a scripted upstream status failure.
func Status(provider string, code int) error {
	if code == 429 {
		return &providers.RateLimitError{Provider: provider}
	}
	return &providers.ProviderError{Provider: provider, StatusCode: code, Message: fmt.Sprintf("status %d", code)}
}
