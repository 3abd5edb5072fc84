package costs

import (
	"math"
	"testing"

	"mercator-hq/saturn/pkg/providers"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculator_CalculateRequestCost(t *testing.T) {
	calculator := NewCalculator([]providers.Descriptor{
		{Name: "openai", CostPer1KIn: 0.03, CostPer1KOut: 0.06},
		{Name: "local", CostPer1KIn: 0, CostPer1KOut: 0},
	})

	tests := []struct {
		name       string
		provider   string
		prompt     int
		completion int
		want       float64
	}{
		{name: "priced provider", provider: "openai", prompt: 1000, completion: 500, want: 0.06},
		{name: "free provider", provider: "local", prompt: 1000, completion: 1000, want: 0},
		{name: "unknown provider", provider: "other", prompt: 1000, completion: 1000, want: 0},
		{name: "negative tokens", provider: "openai", prompt: -5, completion: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculator.CalculateRequestCost(tt.provider, tt.prompt, tt.completion)
			if !almostEqual(got.TotalCost, tt.want) {
				t.Errorf("TotalCost = %v, want %v", got.TotalCost, tt.want)
			}
			if got.Currency != "USD" {
				t.Errorf("Currency = %q", got.Currency)
			}
			if !almostEqual(got.TotalCost, got.PromptCost+got.CompletionCost) {
				t.Error("TotalCost must equal prompt plus completion cost")
			}
		})
	}
}

func TestCalculator_CalculateResponseCost(t *testing.T) {
	calculator := NewCalculator([]providers.Descriptor{{Name: "anthropic", CostPer1KIn: 0.015, CostPer1KOut: 0.075}})

	got := calculator.CalculateResponseCost("anthropic", providers.TokenUsage{PromptTokens: 2000, CompletionTokens: 1000})
	if !almostEqual(got.PromptCost, 0.03) || !almostEqual(got.CompletionCost, 0.075) {
		t.Errorf("got %+v", got)
	}
}

func TestCalculator_UpdatePricing(t *testing.T) {
	calculator := NewCalculator([]providers.Descriptor{{Name: "openai", CostPer1KIn: 1}})
	calculator.UpdatePricing([]providers.Descriptor{{Name: "openai", CostPer1KIn: 2}})

	if got := calculator.Pricing("openai").PromptPer1K; got != 2 {
		t.Errorf("PromptPer1K after update = %v, want 2", got)
	}
}
