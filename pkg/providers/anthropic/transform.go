package anthropic

import (
	"fmt"
	"strings"

	"mercator-hq/saturn/pkg/providers"
)

// AnthropicRequest represents an Anthropic messages request.
type AnthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []AnthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          float64            `json:"top_p,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

// AnthropicMessage represents a message in Anthropic format.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContentBlock represents a content block in Anthropic format.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicResponse represents an Anthropic messages response.
type AnthropicResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      AnthropicUsage `json:"usage"`
}

// AnthropicUsage represents token usage in Anthropic format.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicStreamEvent represents an event in Anthropic's SSE stream.
// The delta payload differs by event type, so it is decoded into a union.
type AnthropicStreamEvent struct {
	Type    string             `json:"type"`
	Message *AnthropicResponse `json:"message,omitempty"`
	Index   int                `json:"index,omitempty"`
	Delta   *StreamDelta       `json:"delta,omitempty"`
	Usage   *AnthropicUsage    `json:"usage,omitempty"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StreamDelta is the union of content_block_delta and message_delta payloads.
type StreamDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// transformRequest transforms a provider-agnostic request to Anthropic format.
// System messages are lifted into the top-level system field; the remaining
// messages must start with a user turn and alternate.
func transformRequest(req *providers.CompletionRequest) (*AnthropicRequest, error) {
	anthropicReq := &AnthropicRequest{
		Model:         req.Model,
		Messages:      make([]AnthropicMessage, 0, len(req.Messages)),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        req.Stream,
		StopSequences: req.Stop,
	}
	if anthropicReq.MaxTokens == 0 {
		anthropicReq.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		if msg.Role == providers.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		anthropicReq.Messages = append(anthropicReq.Messages, AnthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	anthropicReq.System = strings.Join(system, "\n\n")

	if err := validateMessageSequence(anthropicReq.Messages); err != nil {
		return nil, err
	}
	return anthropicReq, nil
}

// validateMessageSequence validates that messages alternate between user and assistant.
func validateMessageSequence(messages []AnthropicMessage) error {
	if len(messages) == 0 {
		return &providers.ValidationError{
			Field:   "messages",
			Message: "at least one non-system message is required",
		}
	}
	if messages[0].Role != providers.RoleUser {
		return &providers.ValidationError{
			Field:   "messages",
			Message: "first message must be from user",
		}
	}
	for i := 1; i < len(messages); i++ {
		if messages[i-1].Role == messages[i].Role {
			return &providers.ValidationError{
				Field:   "messages",
				Message: fmt.Sprintf("messages must alternate between user and assistant, found consecutive %s messages at index %d", messages[i].Role, i),
			}
		}
	}
	return nil
}

// transformResponse transforms an Anthropic response to provider-agnostic format.
func transformResponse(resp *AnthropicResponse) *providers.CompletionResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &providers.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      content.String(),
		FinishReason: normalizeStopReason(resp.StopReason),
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// streamState tracks state across stream events.
type streamState struct {
	id          string
	model       string
	inputTokens int
}

// transformStreamChunk turns an event into a chunk. Events that carry no
// content return nil.
func transformStreamChunk(event *AnthropicStreamEvent, state *streamState) (*providers.StreamChunk, error) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			state.id = event.Message.ID
			state.model = event.Message.Model
			state.inputTokens = event.Message.Usage.InputTokens
		}
		return nil, nil

	case "content_block_delta":
		if event.Delta != nil && event.Delta.Text != "" {
			return &providers.StreamChunk{ID: state.id, Model: state.model, Delta: event.Delta.Text}, nil
		}
		return nil, nil

	case "message_delta":
		chunk := &providers.StreamChunk{ID: state.id, Model: state.model}
		if event.Delta != nil {
			chunk.FinishReason = normalizeStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &providers.TokenUsage{
				PromptTokens:     state.inputTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      state.inputTokens + event.Usage.OutputTokens,
			}
		}
		return chunk, nil

	case "error":
		msg := "stream error"
		if event.Error != nil {
			msg = event.Error.Type + ": " + event.Error.Message
		}
		return nil, fmt.Errorf("%s", msg)

	case "content_block_start", "content_block_stop", "message_stop", "ping":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown stream event type: %s", event.Type)
	}
}

// normalizeStopReason normalizes Anthropic stop reasons to provider-agnostic values.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishReasonStop
	case "max_tokens":
		return providers.FinishReasonLength
	default:
		return reason
	}
}
