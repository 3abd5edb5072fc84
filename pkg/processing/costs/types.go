package costs

// CostEstimate contains cost calculations in USD.
type CostEstimate struct {
	// PromptCost is the cost for prompt tokens in USD.
	PromptCost float64

	// CompletionCost is the cost for completion tokens in USD.
	CompletionCost float64

	// TotalCost is the total cost in USD.
	TotalCost float64

	// Provider is the provider the price was taken from.
	Provider string

	// Currency is the currency code (always "USD").
	Currency string
}

// Pricing is the USD price of a provider per 1000 tokens.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}
