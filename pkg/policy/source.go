package policy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/governance"
)

// maxDecisionBody bounds how much of a decision response is read.
const maxDecisionBody = 1 << 20

// Input is the document sent to the decision service.
type Input struct {
	RequestID        string   `json:"request_id"`
	TenantID         string   `json:"tenant_id"`
	UserID           string   `json:"user_id"`
	Classification   string   `json:"classification"`
	RequestedModel   string   `json:"requested_model"`
	Endpoint         string   `json:"endpoint"`
	ConnectorTargets []string `json:"connector_targets"`
	EstimatedTokens  int      `json:"estimated_tokens"`
}

// NewInput builds the decision input for a request.
func NewInput(rc governance.RequestContext, estimatedTokens int) Input {
	in := Input{
		RequestID:        rc.RequestID,
		TenantID:         rc.TenantID,
		UserID:           rc.UserID,
		Classification:   string(rc.Classification),
		RequestedModel:   rc.Model,
		Endpoint:         rc.Endpoint,
		ConnectorTargets: []string{},
		EstimatedTokens:  estimatedTokens,
	}
	if rc.Retrieval != nil {
		in.ConnectorTargets = append(in.ConnectorTargets, rc.Retrieval.Connectors...)
	}
	return in
}

// Source returns the raw decision document for an input. The gate validates
// and decodes it; a Source only transports it.
type Source interface {
	Decide(ctx context.Context, in Input) ([]byte, error)
}

// HTTPSource posts the input to a remote decision service.
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPSource creates an HTTP decision source. The client has no timeout
// of its own; the gate bounds each call through the context.
func NewHTTPSource(url string, headers map[string]string) *HTTPSource {
	return &HTTPSource{
		url:     url,
		headers: headers,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Decide performs exactly one POST.
func (s *HTTPSource) Decide(ctx context.Context, in Input) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decision input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create decision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDecisionBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read decision response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
	}
	return data, nil
}

// LocalSource decides in-process from static rules. It stands in for the
// decision service in development:
//   - models matching a denied prefix are denied with model_not_allowed
//   - pii and phi requests get a guardrail system message and a max_tokens cap
//   - configured connectors become the connector constraint
//
// The policy hash is the SHA-256 of the canonical JSON of the rules.
type LocalSource struct {
	rules config.LocalPolicyConfig
	hash  string
	now   func() time.Time
}

// NewLocalSource creates a local decision source.
func NewLocalSource(rules config.LocalPolicyConfig) (*LocalSource, error) {
	raw, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode local policy: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize local policy: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return &LocalSource{rules: rules, hash: hex.EncodeToString(sum[:]), now: time.Now}, nil
}

// PolicyHash returns the content hash of the local rules.
func (s *LocalSource) PolicyHash() string {
	return s.hash
}

// Decide evaluates the local rules.
func (s *LocalSource) Decide(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := map[string]any{
		"decision_id":  uuid.NewString(),
		"allow":        true,
		"policy_hash":  s.hash,
		"evaluated_at": s.now().UTC().Format(time.RFC3339Nano),
		"transforms":   []any{},
	}

	for _, prefix := range s.rules.DeniedModelPrefixes {
		if prefix != "" && strings.HasPrefix(in.RequestedModel, prefix) {
			doc["allow"] = false
			doc["deny_reason"] = ReasonModelNotAllowed
			return json.Marshal(doc)
		}
	}

	sensitive := in.Classification == string(governance.ClassificationPII) ||
		in.Classification == string(governance.ClassificationPHI)
	if sensitive {
		var transforms []any
		if s.rules.Guardrail != "" {
			transforms = append(transforms, map[string]any{"field": FieldMessages, "op": OpPrependSystem, "value": s.rules.Guardrail})
		}
		if s.rules.SensitiveMaxTokens > 0 {
			transforms = append(transforms, map[string]any{"field": FieldMaxTokens, "op": OpCap, "value": s.rules.SensitiveMaxTokens})
		}
		if transforms != nil {
			doc["transforms"] = transforms
		}
	}

	if s.rules.AllowedConnectors != nil {
		doc["connector_constraints"] = map[string]any{"allowed_connectors": s.rules.AllowedConnectors}
	}
	return json.Marshal(doc)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
