package costs

import (
	"sync"

	"mercator-hq/saturn/pkg/providers"
)

// Calculator prices token counts per provider. It is thread-safe and supports
// replacing the price list while in use.
type Calculator struct {
	mu      sync.RWMutex
	pricing map[string]Pricing
}

// NewCalculator creates a calculator from provider descriptors.
func NewCalculator(descriptors []providers.Descriptor) *Calculator {
	c := &Calculator{}
	c.UpdatePricing(descriptors)
	return c
}

// UpdatePricing replaces the price list.
func (c *Calculator) UpdatePricing(descriptors []providers.Descriptor) {
	pricing := make(map[string]Pricing, len(descriptors))
	for _, d := range descriptors {
		pricing[d.Name] = PricingOf(d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing = pricing
}

// Pricing returns the price list entry for a provider. Unknown providers are
// free.
func (c *Calculator) Pricing(provider string) Pricing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pricing[provider]
}

// CalculateRequestCost prices an estimate before the call.
func (c *Calculator) CalculateRequestCost(provider string, promptTokens, completionTokens int) CostEstimate {
	return Calculate(provider, c.Pricing(provider), promptTokens, completionTokens)
}

// CalculateResponseCost prices the usage a provider reported.
func (c *Calculator) CalculateResponseCost(provider string, usage providers.TokenUsage) CostEstimate {
	return Calculate(provider, c.Pricing(provider), usage.PromptTokens, usage.CompletionTokens)
}

// PricingOf extracts the price from a routing descriptor.
func PricingOf(d providers.Descriptor) Pricing {
	return Pricing{PromptPer1K: d.CostPer1KIn, CompletionPer1K: d.CostPer1KOut}
}

// Calculate prices token counts.
func Calculate(provider string, p Pricing, promptTokens, completionTokens int) CostEstimate {
	est := CostEstimate{
		Provider:       provider,
		Currency:       "USD",
		PromptCost:     calculateTokenCost(promptTokens, p.PromptPer1K),
		CompletionCost: calculateTokenCost(completionTokens, p.CompletionPer1K),
	}
	est.TotalCost = est.PromptCost + est.CompletionCost
	return est
}

// calculateTokenCost calculates the cost for a given number of tokens.
// costPer1K is the cost per 1000 tokens in USD.
func calculateTokenCost(tokens int, costPer1K float64) float64 {
	if tokens <= 0 {
		return 0.0
	}

	return (float64(tokens) / 1000.0) * costPer1K
}
