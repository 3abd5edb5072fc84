package tokens

import "mercator-hq/saturn/pkg/providers"

// Estimator estimates token counts for text and messages.
// Implementations may use different algorithms (character-based, BPE, tiktoken, etc.).
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string, model string) int

	// EstimateMessages estimates tokens for a list of messages.
	// Returns total prompt tokens including per-message overhead.
	EstimateMessages(messages []providers.Message, model string) int

	// EstimateRequest estimates prompt and completion tokens for a request.
	// defaultCompletion is used when the request does not set max_tokens.
	EstimateRequest(req *providers.CompletionRequest, defaultCompletion int) Estimate

	// EstimateEmbeddings estimates input tokens for an embeddings request.
	EstimateEmbeddings(req *providers.EmbeddingRequest) int
}

// Estimate contains detailed token estimation results.
type Estimate struct {
	// PromptTokens is the estimated number of tokens in the prompt.
	PromptTokens int

	// EstimatedCompletionTokens is max_tokens when set, otherwise the
	// configured default.
	EstimatedCompletionTokens int

	// TotalTokens is PromptTokens plus EstimatedCompletionTokens.
	TotalTokens int

	// SystemPromptTokens is the token count for system prompts.
	SystemPromptTokens int

	// MessageTokens is the token count for user/assistant messages.
	MessageTokens int

	// OverheadTokens are additional tokens for formatting and special tokens.
	OverheadTokens int

	// Model is the model used for estimation.
	Model string
}
