// Package stub provides a deterministic in-process provider for local runs
// and tests. It never leaves the process.
//
// Models named "error-429..." or "error-502..." fail with the matching
// status, which makes fallback behavior observable without a network.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/providers"
)

const (
	// DefaultEmbeddingDim is the vector size of stub embeddings.
	DefaultEmbeddingDim = 16

	answerPrefix  = "Stub response: "
	maxEcho       = 120
	streamPieceSz = 32
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Provider is the stub adapter.
type Provider struct {
	name         string
	embeddingDim int
	now          func() time.Time
}

// NewProvider creates a stub provider.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{Provider: "stub", Field: "name", Message: "provider name is required"}
	}
	return &Provider{name: config.Name, embeddingDim: DefaultEmbeddingDim, now: time.Now}, nil
}

// Name returns the configured name.
func (p *Provider) Name() string {
	return p.name
}

// Chat echoes the last user message.
func (p *Provider) Chat(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.failFor(req.Model); err != nil {
		return nil, err
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == providers.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if len(last) > maxEcho {
		last = last[:maxEcho]
	}
	answer := answerPrefix + last

	prompt := 0
	for _, m := range req.Messages {
		prompt += len(strings.Fields(m.Content))
	}
	prompt = max(prompt, 1)
	completion := max(len(strings.Fields(answer)), 1)

	return &providers.CompletionResponse{
		ID:           "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Model:        req.Model,
		Content:      answer,
		FinishReason: providers.FinishReasonStop,
		Usage: providers.TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
		Created: p.now().Unix(),
	}, nil
}

// Stream replays the Chat answer in fixed-size pieces followed by a
// finishing chunk that carries usage.
func (p *Provider) Stream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	var pieces []string
	for i := 0; i < len(resp.Content); i += streamPieceSz {
		pieces = append(pieces, resp.Content[i:min(i+streamPieceSz, len(resp.Content))])
	}

	chunks := make(chan *providers.StreamChunk, len(pieces)+1)
	go func() {
		defer close(chunks)
		for _, piece := range pieces {
			select {
			case chunks <- &providers.StreamChunk{ID: resp.ID, Model: resp.Model, Delta: piece, Created: resp.Created}:
			case <-ctx.Done():
				return
			}
		}
		usage := resp.Usage
		select {
		case chunks <- &providers.StreamChunk{ID: resp.ID, Model: resp.Model, FinishReason: providers.FinishReasonStop, Usage: &usage, Created: resp.Created}:
		case <-ctx.Done():
		}
	}()
	return chunks, nil
}

// Embeddings returns normalized feature-hashing vectors.
func (p *Provider) Embeddings(ctx context.Context, req *providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.failFor(req.Model); err != nil {
		return nil, err
	}

	out := &providers.EmbeddingResponse{Model: req.Model, Data: make([]providers.Embedding, len(req.Input))}
	for i, text := range req.Input {
		out.Data[i] = providers.Embedding{Index: i, Vector: HashEmbedding(text, p.embeddingDim)}
		out.Usage.PromptTokens += max(len(strings.Fields(text)), 1)
	}
	out.Usage.TotalTokens = out.Usage.PromptTokens
	return out, nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) failFor(model string) error {
	switch {
	case strings.HasPrefix(model, "error-429"):
		return &providers.RateLimitError{Provider: p.name, Message: "stub rate limit"}
	case strings.HasPrefix(model, "error-502"):
		return &providers.ProviderError{Provider: p.name, StatusCode: 502, Message: "stub bad gateway"}
	case strings.HasPrefix(model, "error-400"):
		return &providers.ProviderError{Provider: p.name, StatusCode: 400, Message: "stub bad request"}
	}
	return nil
}

// HashEmbedding maps lower-cased alphanumeric tokens into dim buckets with a
// sign bit, then L2-normalizes. Equal text always yields an equal vector.
func HashEmbedding(text string, dim int) []float64 {
	if dim < 1 {
		panic(fmt.Sprintf("stub: embedding dim %d < 1", dim))
	}
	vec := make([]float64, dim)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		digest := sha256.Sum256([]byte(tok))
		idx := int(binary.BigEndian.Uint16(digest[:2])) % dim
		if digest[2]%2 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = math.Round(v/norm*1e6) / 1e6
	}
	return vec
}
