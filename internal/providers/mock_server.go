package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockServer is a mock HTTP server for testing provider adapters.
// It serves canned responses per path, including SSE streams.
type MockServer struct {
	server       *httptest.Server
	responses    map[string]MockResponse
	requestCount int
	lastBody     []byte
	lastHeaders  http.Header
	mu           sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Delay      time.Duration
	Headers    map[string]string

	// StreamEvents are written verbatim, each followed by a blank line.
	StreamEvents []string
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{responses: make(map[string]MockResponse)}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets a mock response for a specific path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// RequestCount returns the number of requests received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.requestCount
}

// LastRequest returns the body and headers of the most recent request.
func (ms *MockServer) LastRequest() ([]byte, http.Header) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastBody, ms.lastHeaders
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.requestCount++
	ms.lastBody = body
	ms.lastHeaders = r.Header.Clone()
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamEvents) > 0 {
		ms.handleStream(w, response)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (ms *MockServer) handleStream(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	if response.StatusCode != 0 {
		w.WriteHeader(response.StatusCode)
	}

	flusher, _ := w.(http.Flusher)
	for _, event := range response.StreamEvents {
		fmt.Fprintf(w, "%s\n\n", event)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// MockOpenAIResponse creates an OpenAI chat completion body.
func MockOpenAIResponse(content string, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// MockOpenAIStreamEvent creates an OpenAI SSE data line.
func MockOpenAIStreamEvent(delta string, finishReason string) string {
	choice := map[string]interface{}{
		"index": 0,
		"delta": map[string]interface{}{"content": delta},
	}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	}
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{choice},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b)
}

// MockOpenAIUsageEvent creates the trailing usage-only SSE data line.
func MockOpenAIUsageEvent(prompt, completion int) string {
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []interface{}{},
		"usage": map[string]int{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b)
}

// MockOpenAIEmbeddingResponse creates an embeddings body with one vector per input.
func MockOpenAIEmbeddingResponse(model string, inputs int) map[string]interface{} {
	data := make([]map[string]interface{}, inputs)
	for i := range data {
		data[i] = map[string]interface{}{"object": "embedding", "index": i, "embedding": []float64{0.1, 0.2, 0.3}}
	}
	return map[string]interface{}{
		"object": "list",
		"model":  model,
		"data":   data,
		"usage":  map[string]int{"prompt_tokens": 4 * inputs, "total_tokens": 4 * inputs},
	}
}

// MockAnthropicResponse creates an Anthropic messages body.
func MockAnthropicResponse(content string, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":          "msg_123",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]interface{}{{"type": "text", "text": content}},
		"model":       model,
		"stop_reason": "end_turn",
		"usage":       map[string]interface{}{"input_tokens": 10, "output_tokens": 20},
	}
}

// MockAnthropicStreamEvent creates an Anthropic SSE event with a JSON payload.
func MockAnthropicStreamEvent(eventType string, data interface{}) string {
	b, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s", eventType, b)
}

// MockErrorResponse creates an error response.
func MockErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]interface{}{
			"error": map[string]interface{}{"message": message, "code": statusCode},
		},
	}
}
