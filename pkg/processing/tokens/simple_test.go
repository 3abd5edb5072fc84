package tokens

import (
	"testing"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
)

func TestSimpleEstimator_EstimateText(t *testing.T) {
	estimator := NewSimpleEstimator(config.TokensConfig{
		CharsPerToken: 4.0,
		Models: map[string]float64{
			"claude":   2.0,
			"claude-3": 3.0,
		},
	})

	tests := []struct {
		name  string
		text  string
		model string
		want  int
	}{
		{name: "empty text", text: "", model: "gpt-4", want: 0},
		{name: "single char", text: "a", model: "gpt-4", want: 1},
		{name: "default ratio rounds up", text: "Hello, world!", model: "gpt-4", want: 4},
		{name: "exact model", text: "abcdef", model: "claude", want: 3},
		{name: "longest prefix wins", text: "abcdef", model: "claude-3-opus", want: 2},
		{name: "unknown model uses default", text: "abcdefgh", model: "mistral", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimator.EstimateText(tt.text, tt.model); got != tt.want {
				t.Errorf("EstimateText(%q, %q) = %d, want %d", tt.text, tt.model, got, tt.want)
			}
		})
	}
}

func TestSimpleEstimator_EstimateRequest(t *testing.T) {
	estimator := NewSimpleEstimator(config.TokensConfig{CharsPerToken: 4})

	req := &providers.CompletionRequest{
		Model: "gpt-4",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "12345678"},
			{Role: providers.RoleUser, Content: "1234"},
		},
	}

	tests := []struct {
		name           string
		maxTokens      int
		wantCompletion int
	}{
		{name: "default completion", maxTokens: 0, wantCompletion: 512},
		{name: "max tokens", maxTokens: 64, wantCompletion: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := req.Clone()
			r.MaxTokens = tt.maxTokens
			est := estimator.EstimateRequest(r, 512)

			if est.SystemPromptTokens != perMessageOverhead+2 {
				t.Errorf("SystemPromptTokens = %d", est.SystemPromptTokens)
			}
			if est.MessageTokens != perMessageOverhead+1 {
				t.Errorf("MessageTokens = %d", est.MessageTokens)
			}
			wantPrompt := est.SystemPromptTokens + est.MessageTokens + requestOverhead
			if est.PromptTokens != wantPrompt {
				t.Errorf("PromptTokens = %d, want %d", est.PromptTokens, wantPrompt)
			}
			if est.EstimatedCompletionTokens != tt.wantCompletion {
				t.Errorf("EstimatedCompletionTokens = %d, want %d", est.EstimatedCompletionTokens, tt.wantCompletion)
			}
			if est.TotalTokens != est.PromptTokens+est.EstimatedCompletionTokens {
				t.Errorf("TotalTokens = %d", est.TotalTokens)
			}
		})
	}
}

func TestSimpleEstimator_EstimateEmbeddings(t *testing.T) {
	estimator := NewSimpleEstimator(config.TokensConfig{})
	got := estimator.EstimateEmbeddings(&providers.EmbeddingRequest{Model: "e", Input: []string{"abcd", "abcdefgh", ""}})
	if got != 3 {
		t.Errorf("EstimateEmbeddings = %d, want 3", got)
	}
	if estimator.EstimateEmbeddings(nil) != 0 {
		t.Error("nil request should estimate zero")
	}
}

func TestSimpleEstimator_Update(t *testing.T) {
	estimator := NewSimpleEstimator(config.TokensConfig{CharsPerToken: 4})
	estimator.Update(config.TokensConfig{CharsPerToken: 1})
	if got := estimator.EstimateText("abc", "any"); got != 3 {
		t.Errorf("after Update EstimateText = %d, want 3", got)
	}
}
