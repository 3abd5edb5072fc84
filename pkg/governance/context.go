package governance

import (
	"fmt"
	"strings"
)

// Classification is the data classification attached to a request at ingress.
type Classification string

const (
	// ClassificationPublic marks content that may leave the trust boundary as-is.
	ClassificationPublic Classification = "public"
	// ClassificationInternal marks organisation-internal content.
	ClassificationInternal Classification = "internal"
	// ClassificationPII marks content that may carry personal data.
	ClassificationPII Classification = "pii"
	// ClassificationPHI marks content that may carry protected health information.
	ClassificationPHI Classification = "phi"
)

// ParseClassification parses a classification label. Matching is
// case-insensitive; an empty string is rejected.
func ParseClassification(s string) (Classification, error) {
	switch c := Classification(strings.ToLower(strings.TrimSpace(s))); c {
	case ClassificationPublic, ClassificationInternal, ClassificationPII, ClassificationPHI:
		return c, nil
	default:
		return "", fmt.Errorf("unknown classification %q (want public, internal, pii or phi)", s)
	}
}

// RetrievalOptions describes a caller's request for retrieval-augmented context.
type RetrievalOptions struct {
	// Connectors are the connector names the caller asked for.
	Connectors []string `json:"connectors"`

	// TopK bounds the number of chunks returned. Zero means the configured default.
	TopK int `json:"top_k,omitempty"`

	// Filters are passed through to connectors as metadata equality filters.
	Filters map[string]string `json:"filters,omitempty"`
}

// RequestContext is the immutable per-request ingress context.
// Build it with NewRequestContext so slices and maps are not shared with the caller.
type RequestContext struct {
	RequestID      string
	TenantID       string
	UserID         string
	Classification Classification
	Model          string
	Endpoint       string
	Retrieval      *RetrievalOptions
}

// NewRequestContext copies the supplied values into a new RequestContext.
func NewRequestContext(requestID, tenantID, userID string, classification Classification, model, endpoint string, retrieval *RetrievalOptions) RequestContext {
	rc := RequestContext{
		RequestID:      requestID,
		TenantID:       tenantID,
		UserID:         userID,
		Classification: classification,
		Model:          model,
		Endpoint:       endpoint,
	}
	if retrieval != nil {
		opts := &RetrievalOptions{
			Connectors: append([]string(nil), retrieval.Connectors...),
			TopK:       retrieval.TopK,
		}
		if len(retrieval.Filters) > 0 {
			opts.Filters = make(map[string]string, len(retrieval.Filters))
			for k, v := range retrieval.Filters {
				opts.Filters[k] = v
			}
		}
		rc.Retrieval = opts
	}
	return rc
}

// RetrievalRequested reports whether the caller asked for retrieval.
func (rc RequestContext) RetrievalRequested() bool {
	return rc.Retrieval != nil && len(rc.Retrieval.Connectors) > 0
}

// Validate checks the fields every stage relies on.
func (rc RequestContext) Validate() error {
	switch {
	case rc.RequestID == "":
		return fmt.Errorf("request_id is required")
	case rc.TenantID == "":
		return fmt.Errorf("tenant_id is required")
	case rc.Model == "":
		return fmt.Errorf("model is required")
	}
	if _, err := ParseClassification(string(rc.Classification)); err != nil {
		return err
	}
	return nil
}
