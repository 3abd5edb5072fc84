package policy

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonschema"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/governance"
)

//go:embed decision.schema.json
var decisionSchema []byte

// DefaultTimeout bounds a decision call when Options.Timeout is zero.
const DefaultTimeout = 150 * time.Millisecond

// UnavailableHash is the policy hash stamped on fail-closed decisions
// before any decision has been received.
var UnavailableHash = func() string {
	sum := sha256.Sum256([]byte(ReasonPolicyUnavailable))
	return hex.EncodeToString(sum[:])
}()

// Options configure a Client.
type Options struct {
	Mode    Mode
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is the policy decision gate. Every Evaluate returns a complete
// Decision; faults of any kind produce a fail-closed deny.
type Client struct {
	source  Source
	schema  *jsonschema.Schema
	mode    Mode
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	lastHash string
}

// NewClient creates a decision gate over a source.
func NewClient(source Source, opts Options) (*Client, error) {
	if source == nil {
		return nil, errors.New("policy source is required")
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(decisionSchema)
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeEnforce
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		source:  source,
		schema:  schema,
		mode:    mode,
		timeout: timeout,
		logger:  logger.With("component", "policy"),
		now:     time.Now,
	}, nil
}

// NewClientFromConfig creates a gate from configuration. An empty URL
// selects the local source.
func NewClientFromConfig(cfg config.PolicyConfig) (*Client, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	var source Source
	if cfg.URL != "" {
		source = NewHTTPSource(cfg.URL, cfg.Headers)
	} else {
		slog.Warn("no policy url configured, using the local decision source")
		source, err = NewLocalSource(cfg.Local)
		if err != nil {
			return nil, err
		}
	}
	return NewClient(source, Options{Mode: mode, Timeout: cfg.Timeout})
}

// Mode returns the configured mode.
func (c *Client) Mode() Mode {
	return c.mode
}

// LastPolicyHash returns the hash of the most recent valid decision.
func (c *Client) LastPolicyHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHash
}

// Evaluate asks the decision source for a verdict. It makes exactly one
// attempt bounded by the configured timeout and never returns an error:
// failures surface as an unavailable deny with the cause in Fault.
func (c *Client) Evaluate(ctx context.Context, rc governance.RequestContext, estimatedTokens int) Decision {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.source.Decide(callCtx, NewInput(rc, estimatedTokens))
	if err != nil {
		if callCtx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", callCtx.Err(), err)
		}
		return c.unavailable(rc, err, time.Since(start))
	}

	decision, err := c.decode(raw)
	if err != nil {
		return c.unavailable(rc, err, time.Since(start))
	}

	c.mu.Lock()
	c.lastHash = decision.PolicyHash
	c.mu.Unlock()

	c.logger.Debug("policy decision",
		"request_id", rc.RequestID,
		"decision_id", decision.DecisionID,
		"allow", decision.Allow,
		"transforms", len(decision.Transforms),
		"duration", time.Since(start),
	)
	return decision
}

type wireDecision struct {
	DecisionID           string                `json:"decision_id"`
	Allow                bool                  `json:"allow"`
	DenyReason           *string               `json:"deny_reason"`
	Reason               *string               `json:"reason"`
	PolicyHash           string                `json:"policy_hash"`
	EvaluatedAt          string                `json:"evaluated_at"`
	Transforms           []Transform           `json:"transforms"`
	ConnectorConstraints *ConnectorConstraints `json:"connector_constraints"`
	ProviderConstraints  *ProviderConstraints  `json:"provider_constraints"`
	MaxTokensOverride    *int                  `json:"max_tokens_override"`
}

func (c *Client) decode(raw []byte) (Decision, error) {
	if !json.Valid(raw) {
		return Decision{}, &ContractError{Message: "response is not valid JSON"}
	}
	result := c.schema.ValidateJSON(raw)
	if !result.IsValid() {
		return Decision{}, &ContractError{Message: fmt.Sprintf("schema validation failed: %v", result.Errors)}
	}

	var w wireDecision
	if err := json.Unmarshal(raw, &w); err != nil {
		return Decision{}, &ContractError{Message: "decode", Cause: err}
	}

	d := Decision{
		DecisionID:           w.DecisionID,
		Allow:                w.Allow,
		Mode:                 c.mode,
		PolicyHash:           w.PolicyHash,
		Transforms:           w.Transforms,
		ConnectorConstraints: w.ConnectorConstraints,
		ProviderConstraints:  w.ProviderConstraints,
	}
	switch {
	case w.DenyReason != nil:
		d.DenyReason = *w.DenyReason
	case w.Reason != nil && !w.Allow:
		d.DenyReason = *w.Reason
	}
	if d.DecisionID == "" {
		d.DecisionID = uuid.NewString()
	}
	if w.EvaluatedAt == "" {
		d.EvaluatedAt = c.now().UTC()
	} else {
		t, err := time.Parse(time.RFC3339Nano, w.EvaluatedAt)
		if err != nil {
			return Decision{}, &ContractError{Message: "evaluated_at is not RFC 3339", Cause: err}
		}
		d.EvaluatedAt = t.UTC()
	}
	if w.MaxTokensOverride != nil {
		d.Transforms = append(d.Transforms, Transform{Field: FieldMaxTokens, Operation: OpCap, Value: *w.MaxTokensOverride})
	}
	return d, nil
}

func (c *Client) unavailable(rc governance.RequestContext, cause error, elapsed time.Duration) Decision {
	hash := c.LastPolicyHash()
	if hash == "" {
		hash = UnavailableHash
	}

	c.logger.Warn("policy decision unavailable, failing closed",
		"request_id", rc.RequestID,
		"tenant_id", rc.TenantID,
		"mode", c.mode,
		"duration", elapsed,
		"error", cause,
	)

	return Decision{
		DecisionID:  uuid.NewString(),
		Allow:       false,
		Mode:        c.mode,
		DenyReason:  ReasonPolicyUnavailable,
		PolicyHash:  hash,
		EvaluatedAt: c.now().UTC(),
		Unavailable: true,
		Fault:       cause,
	}
}
