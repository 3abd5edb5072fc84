package routing

import (
	"context"
	"errors"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	mockrouting "mercator-hq/saturn/internal/routing"
	"mercator-hq/saturn/pkg/providers"
)

func mockEntry(name string, priority int, p *mockrouting.MockProvider) Entry {
	return Entry{
		Descriptor: providers.Descriptor{
			Name:     name,
			Priority: priority,
			Capabilities: []providers.Capability{
				providers.CapabilityChat,
				providers.CapabilityStream,
				providers.CapabilityEmbeddings,
			},
		},
		Provider: p,
	}
}

func chatRequest() *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	}
}

func outcomes(attempts []Attempt) []Outcome {
	out := make([]Outcome, len(attempts))
	for i, a := range attempts {
		out[i] = a.Outcome
	}
	return out
}

func TestRouter_Chat(t *testing.T) {
	timeout := &providers.TimeoutError{Provider: "a", Timeout: time.Second}
	dial := &providers.ConnectionError{Provider: "a", Cause: &net.OpError{Op: "dial"}}

	tests := []struct {
		name         string
		primary      []mockrouting.Step
		secondary    []mockrouting.Step
		retryable    []int
		wantProvider string
		wantErr      error
		wantOutcomes []Outcome
		wantCalls    [2]int
	}{
		{
			name:         "first provider answers",
			primary:      []mockrouting.Step{{Content: "one"}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			wantProvider: "primary",
			wantOutcomes: []Outcome{OutcomeSuccess},
			wantCalls:    [2]int{1, 0},
		},
		{
			name:         "rate limit falls back",
			primary:      []mockrouting.Step{{Err: mockrouting.Status("primary", 429)}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			wantProvider: "secondary",
			wantOutcomes: []Outcome{OutcomeRetryableError, OutcomeSuccess},
			wantCalls:    [2]int{1, 1},
		},
		{
			name:         "timeout falls back as 503",
			primary:      []mockrouting.Step{{Err: timeout}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			wantProvider: "secondary",
			wantOutcomes: []Outcome{OutcomeTimeout, OutcomeSuccess},
			wantCalls:    [2]int{1, 1},
		},
		{
			name:         "connection error falls back as 502",
			primary:      []mockrouting.Step{{Err: dial}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			wantProvider: "secondary",
			wantOutcomes: []Outcome{OutcomeRetryableError, OutcomeSuccess},
			wantCalls:    [2]int{1, 1},
		},
		{
			name:         "bad request is terminal",
			primary:      []mockrouting.Step{{Err: mockrouting.Status("primary", 400)}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			wantErr:      ErrTerminalProviderError,
			wantOutcomes: []Outcome{OutcomeTerminalError},
			wantCalls:    [2]int{1, 0},
		},
		{
			name:         "error without status is terminal",
			primary:      []mockrouting.Step{{Err: errors.New("boom")}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			wantErr:      ErrTerminalProviderError,
			wantOutcomes: []Outcome{OutcomeTerminalError},
			wantCalls:    [2]int{1, 0},
		},
		{
			name:         "all retryable exhausts",
			primary:      []mockrouting.Step{{Err: mockrouting.Status("primary", 503)}},
			secondary:    []mockrouting.Step{{Err: mockrouting.Status("secondary", 502)}},
			wantErr:      ErrAllProvidersFailed,
			wantOutcomes: []Outcome{OutcomeRetryableError, OutcomeRetryableError},
			wantCalls:    [2]int{1, 1},
		},
		{
			name:         "configured statuses replace defaults",
			primary:      []mockrouting.Step{{Err: mockrouting.Status("primary", 500)}},
			secondary:    []mockrouting.Step{{Content: "two"}},
			retryable:    []int{500},
			wantProvider: "secondary",
			wantOutcomes: []Outcome{OutcomeRetryableError, OutcomeSuccess},
			wantCalls:    [2]int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := mockrouting.NewMockProvider("primary", tt.primary...)
			secondary := mockrouting.NewMockProvider("secondary", tt.secondary...)
			router := NewRouter([]Entry{
				mockEntry("secondary", 2, secondary),
				mockEntry("primary", 1, primary),
			}, Options{RetryableStatuses: tt.retryable})

			res, err := router.Chat(context.Background(), Criteria{}, chatRequest())

			var attempts []Attempt
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Chat() error = %v, want %v", err, tt.wantErr)
				}
				attempts = AttemptsOf(err)
				if got, want := ChainOf(err), attemptedNames(attempts); !slices.Equal(got, want) {
					t.Errorf("ChainOf() = %v, want %v", got, want)
				}
			} else {
				if err != nil {
					t.Fatalf("Chat() unexpected error = %v", err)
				}
				if res.Provider != tt.wantProvider {
					t.Errorf("Provider = %q, want %q", res.Provider, tt.wantProvider)
				}
				if res.Response == nil {
					t.Fatal("Response is nil")
				}
				attempts = res.Attempts
				if want := attemptedNames(attempts); !slices.Equal(res.Chain, want) {
					t.Errorf("Chain = %v, want %v", res.Chain, want)
				}
			}

			got := outcomes(attempts)
			if len(got) != len(tt.wantOutcomes) {
				t.Fatalf("outcomes = %v, want %v", got, tt.wantOutcomes)
			}
			for i := range got {
				if got[i] != tt.wantOutcomes[i] {
					t.Errorf("outcome[%d] = %q, want %q", i, got[i], tt.wantOutcomes[i])
				}
			}
			if primary.Calls() != tt.wantCalls[0] || secondary.Calls() != tt.wantCalls[1] {
				t.Errorf("calls = [%d %d], want %v", primary.Calls(), secondary.Calls(), tt.wantCalls)
			}
		})
	}
}

func TestRouter_Chat_AttemptDetails(t *testing.T) {
	primary := mockrouting.NewMockProvider("primary", mockrouting.Step{Err: mockrouting.Status("primary", 502)})
	secondary := mockrouting.NewMockProvider("secondary")

	var mu sync.Mutex
	var observed []Attempt
	router := NewRouter([]Entry{mockEntry("primary", 1, primary), mockEntry("secondary", 2, secondary)}, Options{
		OnAttempt: func(a Attempt) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, a)
		},
	})

	res, err := router.Chat(context.Background(), Criteria{}, chatRequest())
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Fallbacks() != 1 {
		t.Errorf("Fallbacks() = %d, want 1", res.Fallbacks())
	}
	if a := res.Attempts[0]; a.StatusCode != 502 || a.Error == "" || a.Provider != "primary" {
		t.Errorf("first attempt = %+v", a)
	}
	if len(observed) != 2 {
		t.Errorf("observed %d attempts, want 2", len(observed))
	}

	stats := router.Stats()
	if stats.TotalRequests != 1 || stats.Fallbacks != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Providers["primary"].RetryableErrors != 1 || stats.Providers["secondary"].Successes != 1 {
		t.Errorf("provider stats = %+v", stats.Providers)
	}
}

func TestRouter_NoEligibleProvider(t *testing.T) {
	router := NewRouter([]Entry{mockEntry("primary", 1, mockrouting.NewMockProvider("primary"))}, Options{})

	_, err := router.Chat(context.Background(), Criteria{AllowedProviders: []string{"other"}}, chatRequest())
	var noEligible *NoEligibleProviderError
	if !errors.As(err, &noEligible) {
		t.Fatalf("error = %v, want NoEligibleProviderError", err)
	}
	if !errors.Is(err, ErrNoEligibleProvider) {
		t.Error("errors.Is(ErrNoEligibleProvider) should match")
	}
	if !strings.Contains(err.Error(), "chat") {
		t.Errorf("error message %q should name the capability", err)
	}
}

func TestRouter_Chat_CallerCancelled(t *testing.T) {
	primary := mockrouting.NewMockProvider("primary", mockrouting.Step{Err: mockrouting.Status("primary", 503)})
	secondary := mockrouting.NewMockProvider("secondary")
	router := NewRouter([]Entry{mockEntry("primary", 1, primary), mockEntry("secondary", 2, secondary)}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Chat(ctx, Criteria{}, chatRequest())
	if !errors.Is(err, ErrTerminalProviderError) {
		t.Fatalf("error = %v, want terminal", err)
	}
	if secondary.Calls() != 0 {
		t.Error("no fallback should happen after the caller cancelled")
	}
}

func collect(t *testing.T, ch <-chan *providers.StreamChunk) string {
	t.Helper()
	var b strings.Builder
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return b.String()
			}
			if chunk.Error != nil {
				t.Fatalf("chunk error: %v", chunk.Error)
			}
			b.WriteString(chunk.Delta)
		case <-timeout:
			t.Fatal("timed out reading stream")
		}
	}
}

func TestRouter_Stream(t *testing.T) {
	tests := []struct {
		name         string
		primary      mockrouting.Step
		wantProvider string
		wantOutcome  Outcome
		wantText     string
	}{
		{
			name:         "first chunk commits provider",
			primary:      mockrouting.Step{Chunks: []*providers.StreamChunk{{Delta: "hel"}, {Delta: "lo"}, {FinishReason: "stop"}}},
			wantProvider: "primary",
			wantOutcome:  OutcomeSuccess,
			wantText:     "hello",
		},
		{
			name:         "open error falls back",
			primary:      mockrouting.Step{Err: mockrouting.Status("primary", 429)},
			wantProvider: "secondary",
			wantOutcome:  OutcomeRetryableError,
			wantText:     "backup",
		},
		{
			name:         "first chunk error falls back",
			primary:      mockrouting.Step{Chunks: []*providers.StreamChunk{{Error: mockrouting.Status("primary", 503)}}},
			wantProvider: "secondary",
			wantOutcome:  OutcomeRetryableError,
			wantText:     "backup",
		},
		{
			name:         "immediate close falls back",
			primary:      mockrouting.Step{Chunks: []*providers.StreamChunk{}},
			wantProvider: "secondary",
			wantOutcome:  OutcomeRetryableError,
			wantText:     "backup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := mockrouting.NewMockProvider("primary", tt.primary)
			secondary := mockrouting.NewMockProvider("secondary", mockrouting.Step{Content: "backup"})
			router := NewRouter([]Entry{mockEntry("primary", 1, primary), mockEntry("secondary", 2, secondary)}, Options{})

			res, err := router.Stream(context.Background(), Criteria{}, chatRequest())
			if err != nil {
				t.Fatalf("Stream() error = %v", err)
			}
			if res.Provider != tt.wantProvider {
				t.Errorf("Provider = %q, want %q", res.Provider, tt.wantProvider)
			}
			if res.Attempts[0].Outcome != tt.wantOutcome {
				t.Errorf("first outcome = %q, want %q", res.Attempts[0].Outcome, tt.wantOutcome)
			}
			if got := collect(t, res.Chunks); got != tt.wantText {
				t.Errorf("stream text = %q, want %q", got, tt.wantText)
			}
			if !primary.LastRequest().Stream {
				t.Error("stream request should carry stream=true")
			}
		})
	}
}

func TestRouter_Stream_TerminalFirstChunk(t *testing.T) {
	primary := mockrouting.NewMockProvider("primary", mockrouting.Step{
		Chunks: []*providers.StreamChunk{{Error: mockrouting.Status("primary", 401)}},
	})
	secondary := mockrouting.NewMockProvider("secondary")
	router := NewRouter([]Entry{mockEntry("primary", 1, primary), mockEntry("secondary", 2, secondary)}, Options{})

	_, err := router.Stream(context.Background(), Criteria{}, chatRequest())
	var terminal *TerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("error = %v, want TerminalError", err)
	}
	if terminal.Provider != "primary" || secondary.Calls() != 0 {
		t.Errorf("terminal = %+v, secondary calls = %d", terminal, secondary.Calls())
	}
}

func TestRouter_Embeddings(t *testing.T) {
	primary := mockrouting.NewMockProvider("primary", mockrouting.Step{Err: mockrouting.Status("primary", 503)})
	secondary := mockrouting.NewMockProvider("secondary")
	chatOnly := Entry{
		Descriptor: providers.Descriptor{Name: "chat-only", Priority: 0, Capabilities: []providers.Capability{providers.CapabilityChat}},
		Provider:   mockrouting.NewMockProvider("chat-only"),
	}
	router := NewRouter([]Entry{chatOnly, mockEntry("primary", 1, primary), mockEntry("secondary", 2, secondary)}, Options{})

	res, err := router.Embeddings(context.Background(), Criteria{}, &providers.EmbeddingRequest{Model: "e", Input: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Embeddings() error = %v", err)
	}
	if res.Provider != "secondary" || len(res.Response.Data) != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Chain) != 2 {
		t.Errorf("chain = %v, chat-only provider must be excluded", res.Chain)
	}
}

func attemptedNames(attempts []Attempt) []string {
	names := make([]string, 0, len(attempts))
	for _, a := range attempts {
		names = append(names, a.Provider)
	}
	return names
}

func TestRouter_Chat_ChainListsOnlyAttempted(t *testing.T) {
	primary := mockrouting.NewMockProvider("primary", mockrouting.Step{Content: "one"})
	secondary := mockrouting.NewMockProvider("secondary")
	router := NewRouter([]Entry{mockEntry("primary", 1, primary), mockEntry("secondary", 2, secondary)}, Options{})

	res, err := router.Chat(context.Background(), Criteria{}, chatRequest())
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !slices.Equal(res.Chain, []string{"primary"}) {
		t.Errorf("Chain = %v, want [primary]", res.Chain)
	}
	if secondary.Calls() != 0 {
		t.Errorf("secondary calls = %d, want 0", secondary.Calls())
	}
}
