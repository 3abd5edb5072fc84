package policy

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode controls whether a deny decision blocks the request.
type Mode string

const (
	// ModeEnforce blocks denied requests.
	ModeEnforce Mode = "enforce"

	// ModeObserve records denied requests and lets them through.
	ModeObserve Mode = "observe"
)

// ParseMode parses a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeEnforce, ModeObserve:
		return m, nil
	case "":
		return ModeEnforce, nil
	default:
		return "", fmt.Errorf("unknown policy mode %q", s)
	}
}

// Reason codes carried by decisions and denials.
const (
	ReasonPolicyUnavailable    = "policy_unavailable"
	ReasonModelNotAllowed      = "model_not_allowed"
	ReasonUnsupportedTransform = "unsupported_transform"
	ReasonPolicyDenied         = "policy_denied"
)

// Decision labels used in audit events and metrics.
const (
	LabelAllow     = "allow"
	LabelDeny      = "deny"
	LabelTransform = "transform"
	LabelObserve   = "observe"
)

// ConnectorConstraints bound the retrieval sources of a request.
type ConnectorConstraints struct {
	AllowedConnectors     []string `json:"allowed_connectors,omitempty"`
	AllowedSourcePrefixes []string `json:"allowed_source_prefixes,omitempty"`
}

// ProviderConstraints bound the providers and models of a request.
type ProviderConstraints struct {
	AllowedProviders []string `json:"allowed_providers,omitempty"`
	AllowedModels    []string `json:"allowed_models,omitempty"`
}

// Decision is the gate's verdict for one request. It is produced once and
// never modified afterwards.
type Decision struct {
	DecisionID string `json:"decision_id"`

	Allow bool `json:"allow"`

	// Mode is the configured mode stamped on the decision.
	Mode Mode `json:"mode"`

	DenyReason string `json:"deny_reason,omitempty"`

	// PolicyHash identifies the evaluated policy version.
	PolicyHash string `json:"policy_hash"`

	EvaluatedAt time.Time `json:"evaluated_at"`

	// Transforms are applied to the outbound request in order.
	Transforms []Transform `json:"transforms,omitempty"`

	ConnectorConstraints *ConnectorConstraints `json:"connector_constraints,omitempty"`

	ProviderConstraints *ProviderConstraints `json:"provider_constraints,omitempty"`

	// Unavailable marks a fail-closed decision produced without a usable
	// answer from the decision service.
	Unavailable bool `json:"unavailable,omitempty"`

	// Fault is the cause of an unavailable decision. A timeout satisfies
	// errors.Is(Fault, context.DeadlineExceeded).
	Fault error `json:"-"`
}

// Blocks reports whether the decision stops the request.
func (d Decision) Blocks() bool {
	return !d.Allow && d.Mode != ModeObserve
}

// Label summarizes the decision for audit and metrics.
func (d Decision) Label() string {
	switch {
	case !d.Allow && d.Mode == ModeObserve:
		return LabelObserve
	case !d.Allow:
		return LabelDeny
	case len(d.Transforms) > 0:
		return LabelTransform
	default:
		return LabelAllow
	}
}

// Reason returns the deny reason, defaulting to a generic code for denials
// that carry none.
func (d Decision) Reason() string {
	if d.DenyReason != "" {
		return d.DenyReason
	}
	if !d.Allow {
		return ReasonPolicyDenied
	}
	return ""
}

// AllowedProviders returns the provider constraint, or nil when unconstrained.
func (d Decision) AllowedProviders() []string {
	if d.ProviderConstraints == nil {
		return nil
	}
	return d.ProviderConstraints.AllowedProviders
}

// AllowedConnectors returns the connector constraint and whether the
// decision carries one.
func (d Decision) AllowedConnectors() ([]string, bool) {
	if d.ConnectorConstraints == nil || d.ConnectorConstraints.AllowedConnectors == nil {
		return nil, false
	}
	return d.ConnectorConstraints.AllowedConnectors, true
}

// AllowedSourcePrefixes returns the source prefix constraint, or nil.
func (d Decision) AllowedSourcePrefixes() []string {
	if d.ConnectorConstraints == nil {
		return nil
	}
	return d.ConnectorConstraints.AllowedSourcePrefixes
}

// CheckModel verifies the model against the decision's model constraint.
// An entry ending in "*" matches by prefix.
func (d Decision) CheckModel(model string) error {
	if d.ProviderConstraints == nil || len(d.ProviderConstraints.AllowedModels) == 0 {
		return nil
	}
	for _, allowed := range d.ProviderConstraints.AllowedModels {
		if prefix, ok := strings.CutSuffix(allowed, "*"); ok && strings.HasPrefix(model, prefix) {
			return nil
		}
		if allowed == model {
			return nil
		}
	}
	return &ConstraintError{
		Reason:  ReasonModelNotAllowed,
		Message: fmt.Sprintf("model %q is not in the allowed set %v", model, d.ProviderConstraints.AllowedModels),
	}
}

// ConnectorAllowed reports whether a connector passes the constraint.
func (d Decision) ConnectorAllowed(name string) bool {
	allowed, ok := d.AllowedConnectors()
	return !ok || slices.Contains(allowed, name)
}
