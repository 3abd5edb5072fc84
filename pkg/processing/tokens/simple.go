package tokens

import (
	"math"
	"strings"
	"sync"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/providers"
)

const (
	// perMessageOverhead covers the role marker and message boundaries.
	perMessageOverhead = 4

	// requestOverhead covers the reply primer.
	requestOverhead = 3
)

// SimpleEstimator implements character-based token estimation.
// It uses model-specific characters-per-token ratios to estimate token counts.
type SimpleEstimator struct {
	mu       sync.RWMutex
	defRatio float64
	models   map[string]float64
}

// NewSimpleEstimator creates a new simple character-based token estimator.
func NewSimpleEstimator(cfg config.TokensConfig) *SimpleEstimator {
	e := &SimpleEstimator{}
	e.Update(cfg)
	return e
}

// Update replaces the ratios. It is safe to call while the estimator is in use.
func (e *SimpleEstimator) Update(cfg config.TokensConfig) {
	ratio := cfg.CharsPerToken
	if ratio <= 0 {
		ratio = config.DefaultCharsPerToken
	}
	models := make(map[string]float64, len(cfg.Models))
	for k, v := range cfg.Models {
		if v > 0 {
			models[k] = v
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.defRatio = ratio
	e.models = models
}

// EstimateText estimates tokens for a single text string.
// Non-empty text is at least one token.
func (e *SimpleEstimator) EstimateText(text string, model string) int {
	if text == "" {
		return 0
	}
	n := int(math.Ceil(float64(len(text)) / e.charsPerToken(model)))
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateMessages estimates tokens for a list of messages.
func (e *SimpleEstimator) EstimateMessages(messages []providers.Message, model string) int {
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		total += e.EstimateText(msg.Content, model)
		if msg.Name != "" {
			total += e.EstimateText(msg.Name, model)
		}
	}
	return total
}

// EstimateRequest estimates all tokens for a complete request.
func (e *SimpleEstimator) EstimateRequest(req *providers.CompletionRequest, defaultCompletion int) Estimate {
	if req == nil {
		return Estimate{}
	}

	est := Estimate{Model: req.Model, OverheadTokens: requestOverhead}
	for _, msg := range req.Messages {
		n := e.EstimateMessages([]providers.Message{msg}, req.Model)
		if msg.Role == providers.RoleSystem {
			est.SystemPromptTokens += n
		} else {
			est.MessageTokens += n
		}
	}
	est.PromptTokens = est.SystemPromptTokens + est.MessageTokens + est.OverheadTokens

	est.EstimatedCompletionTokens = defaultCompletion
	if req.MaxTokens > 0 {
		est.EstimatedCompletionTokens = req.MaxTokens
	}
	est.TotalTokens = est.PromptTokens + est.EstimatedCompletionTokens
	return est
}

// EstimateEmbeddings estimates input tokens for an embeddings request.
func (e *SimpleEstimator) EstimateEmbeddings(req *providers.EmbeddingRequest) int {
	if req == nil {
		return 0
	}
	total := 0
	for _, in := range req.Input {
		total += e.EstimateText(in, req.Model)
	}
	return total
}

// charsPerToken returns the ratio for a model: exact match, then the longest
// configured prefix, then the default.
func (e *SimpleEstimator) charsPerToken(model string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ratio, ok := e.models[model]; ok {
		return ratio
	}
	best, bestLen := e.defRatio, 0
	for pattern, ratio := range e.models {
		if len(pattern) > bestLen && strings.HasPrefix(model, pattern) {
			best, bestLen = ratio, len(pattern)
		}
	}
	return best
}
