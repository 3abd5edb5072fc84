package governance

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		in      string
		want    Classification
		wantErr bool
	}{
		{"public", ClassificationPublic, false},
		{"  PHI ", ClassificationPHI, false},
		{"Pii", ClassificationPII, false},
		{"internal", ClassificationInternal, false},
		{"", "", true},
		{"secret", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClassification(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClassification(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClassification(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewRequestContext_CopiesRetrieval(t *testing.T) {
	opts := &RetrievalOptions{Connectors: []string{"kb"}, TopK: 3, Filters: map[string]string{"team": "a"}}
	rc := NewRequestContext("req-1", "tenant-a", "user-1", ClassificationPII, "gpt-4o", "chat", opts)

	opts.Connectors[0] = "changed"
	opts.Filters["team"] = "b"

	if rc.Retrieval.Connectors[0] != "kb" {
		t.Errorf("connectors shared with caller: %v", rc.Retrieval.Connectors)
	}
	if rc.Retrieval.Filters["team"] != "a" {
		t.Errorf("filters shared with caller: %v", rc.Retrieval.Filters)
	}
	if !rc.RetrievalRequested() {
		t.Error("RetrievalRequested() = false")
	}
}

func TestRequestContext_Validate(t *testing.T) {
	valid := NewRequestContext("req-1", "tenant-a", "", ClassificationInternal, "gpt-4o", "chat", nil)
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if valid.RetrievalRequested() {
		t.Error("RetrievalRequested() = true without options")
	}

	tests := []struct {
		name   string
		mutate func(*RequestContext)
	}{
		{"missing request id", func(rc *RequestContext) { rc.RequestID = "" }},
		{"missing tenant", func(rc *RequestContext) { rc.TenantID = "" }},
		{"missing model", func(rc *RequestContext) { rc.Model = "" }},
		{"bad classification", func(rc *RequestContext) { rc.Classification = "secret" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := valid
			tt.mutate(&rc)
			if err := rc.Validate(); err == nil {
				t.Error("Validate() error = nil")
			}
		})
	}
}

func TestError_IsAndStatus(t *testing.T) {
	cause := errors.New("decision service timed out")
	err := fmt.Errorf("pipeline: %w", NewError(KindPolicyUnavailable, "timeout", "abc", cause))

	if !errors.Is(err, ErrPolicyUnavailable) {
		t.Error("errors.Is(err, ErrPolicyUnavailable) = false")
	}
	if errors.Is(err, ErrPolicyDenied) {
		t.Error("errors.Is(err, ErrPolicyDenied) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !errors.Is(err, &Error{Kind: KindPolicyUnavailable}) {
		t.Error("kind-only *Error target did not match")
	}
	if errors.Is(err, &Error{Kind: KindPolicyUnavailable, Reason: "other"}) {
		t.Error("mismatched reason matched")
	}

	ge, ok := AsError(err)
	if !ok {
		t.Fatal("AsError() ok = false")
	}
	if ge.PolicyHash != "abc" {
		t.Errorf("PolicyHash = %q", ge.PolicyHash)
	}

	statuses := map[Kind]int{
		KindPolicyDenied:             http.StatusForbidden,
		KindPolicyUnavailable:        http.StatusServiceUnavailable,
		KindBudgetExceeded:           http.StatusTooManyRequests,
		KindProviderExhausted:        http.StatusBadGateway,
		KindAuditWriteFailure:        http.StatusInternalServerError,
		KindInvalidRequest:           http.StatusUnprocessableEntity,
		KindRetrievalUnauthorized:    http.StatusForbidden,
		KindBudgetBackendUnavailable: http.StatusServiceUnavailable,
	}
	for kind, want := range statuses {
		if got := NewError(kind, "r", "", nil).HTTPStatus(); got != want {
			t.Errorf("%s HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}
