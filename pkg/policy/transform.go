package policy

import (
	"encoding/json"
	"fmt"
	"math"

	"mercator-hq/saturn/pkg/providers"
)

// Transform operations.
const (
	OpSet           = "set"
	OpCap           = "cap"
	OpPrependSystem = "prepend_system"
	OpAppendSystem  = "append_system"
	OpRedact        = "redact"
)

// Transform fields.
const (
	FieldModel       = "model"
	FieldMaxTokens   = "max_tokens"
	FieldTemperature = "temperature"
	FieldMessages    = "messages"
)

// Transform is one mandated change to the outbound request.
type Transform struct {
	Field     string `json:"field"`
	Operation string `json:"op"`
	Value     any    `json:"value,omitempty"`
}

// String returns "op:field".
func (t Transform) String() string {
	return t.Operation + ":" + t.Field
}

// UnmarshalJSON accepts both {field, op, value} and the older
// {type, args} form. Older type names are normalized; unrecognized ones
// are kept as the operation so that applying them fails.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var wire struct {
		Field     string         `json:"field"`
		Operation string         `json:"op"`
		Value     any            `json:"value"`
		Type      string         `json:"type"`
		Args      map[string]any `json:"args"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	if wire.Type == "" {
		*t = Transform{Field: wire.Field, Operation: wire.Operation, Value: wire.Value}
		return nil
	}

	switch wire.Type {
	case "set_max_tokens":
		*t = Transform{Field: FieldMaxTokens, Operation: OpSet, Value: wire.Args["value"]}
	case "override_model":
		*t = Transform{Field: FieldModel, Operation: OpSet, Value: wire.Args["model"]}
	case "prepend_system_guardrail":
		*t = Transform{Field: FieldMessages, Operation: OpPrependSystem, Value: wire.Args["text"]}
	case "redact":
		*t = Transform{Field: FieldMessages, Operation: OpRedact}
	default:
		*t = Transform{Operation: wire.Type, Value: wire.Args}
	}
	return nil
}

// Applied reports what ApplyTransforms did, for the audit event.
type Applied struct {
	// Count is the number of transforms applied.
	Count int

	// Operations lists "op:field" per applied transform, in order.
	Operations []string

	// ForceRedact is set by a redact transform.
	ForceRedact bool
}

// ApplyTransforms applies transforms in order to a copy of req. The input is
// never modified. The first transform that cannot be applied aborts with a
// *TransformError and no partial result.
func ApplyTransforms(req *providers.CompletionRequest, transforms []Transform) (*providers.CompletionRequest, Applied, error) {
	out := req.Clone()
	var applied Applied

	for i, t := range transforms {
		if err := applyOne(out, t); err != nil {
			err.Index = i
			return nil, Applied{}, err
		}
		if t.Operation == OpRedact {
			applied.ForceRedact = true
		}
		applied.Count++
		applied.Operations = append(applied.Operations, t.String())
	}
	return out, applied, nil
}

// ApplyEmbeddingTransforms applies transforms to an embeddings request.
// Model overrides and redact apply; transforms on chat-only fields are
// valid but have nothing to act on and are skipped.
func ApplyEmbeddingTransforms(req *providers.EmbeddingRequest, transforms []Transform) (*providers.EmbeddingRequest, Applied, error) {
	out := req.Clone()
	var applied Applied

	for i, t := range transforms {
		probe := &providers.CompletionRequest{Model: out.Model}
		if err := applyOne(probe, t); err != nil {
			err.Index = i
			return nil, Applied{}, err
		}
		switch {
		case t.Field == FieldModel:
			out.Model = probe.Model
		case t.Operation == OpRedact:
			applied.ForceRedact = true
		default:
			continue
		}
		applied.Count++
		applied.Operations = append(applied.Operations, t.String())
	}
	return out, applied, nil
}

func applyOne(req *providers.CompletionRequest, t Transform) *TransformError {
	fail := func(format string, args ...any) *TransformError {
		return &TransformError{Field: t.Field, Operation: t.Operation, Message: fmt.Sprintf(format, args...)}
	}

	switch t.Operation {
	case OpSet:
		switch t.Field {
		case FieldModel:
			model, ok := t.Value.(string)
			if !ok || model == "" {
				return fail("model must be a non-empty string")
			}
			req.Model = model
		case FieldMaxTokens:
			n, ok := positiveInt(t.Value)
			if !ok {
				return fail("max_tokens must be a positive integer")
			}
			req.MaxTokens = n
		case FieldTemperature:
			v, ok := number(t.Value)
			if !ok || v < 0 || v > 2 {
				return fail("temperature must be a number between 0 and 2")
			}
			req.Temperature = &v
		default:
			return fail("field cannot be set")
		}

	case OpCap:
		if t.Field != FieldMaxTokens {
			return fail("only max_tokens can be capped")
		}
		n, ok := positiveInt(t.Value)
		if !ok {
			return fail("cap must be a positive integer")
		}
		if req.MaxTokens == 0 || req.MaxTokens > n {
			req.MaxTokens = n
		}

	case OpPrependSystem, OpAppendSystem:
		if t.Field != FieldMessages {
			return fail("system text applies to messages only")
		}
		text, ok := t.Value.(string)
		if !ok || text == "" {
			return fail("system text must be a non-empty string")
		}
		msg := providers.Message{Role: providers.RoleSystem, Content: text}
		if t.Operation == OpPrependSystem {
			req.Messages = append([]providers.Message{msg}, req.Messages...)
		} else {
			req.Messages = append(req.Messages, msg)
		}

	case OpRedact:
		if t.Field != FieldMessages {
			return fail("redact applies to messages only")
		}

	default:
		return fail("unknown operation")
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func positiveInt(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
