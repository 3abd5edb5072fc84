package pipeline_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	mockrouting "mercator-hq/saturn/internal/routing"
	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/audit/storage"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/pipeline"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/processing/tokens"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/redaction"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/webhook"
)

const allowAll = `{"decision_id": "d-1", "allow": true, "policy_hash": "h1"}`

// staticSource answers every decision call with the same body.
type staticSource struct {
	body string
	err  error
}

func (s staticSource) Decide(ctx context.Context, in policy.Input) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

const receiverURL = "https://hooks.example.test/saturn"

// recordingNotifier subscribes to every event type and queues each event for
// a single receiver.
type recordingNotifier struct {
	mu     sync.Mutex
	events []webhook.EventType
}

func (n *recordingNotifier) ShouldFire(webhook.EventType) bool { return true }

func (n *recordingNotifier) Dispatch(t webhook.EventType, payload any) []webhook.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, t)
	return []webhook.Outcome{{EventType: t, EndpointURL: receiverURL, Status: webhook.StatusQueued}}
}

func (n *recordingNotifier) fired(t webhook.EventType) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Contains(n.events, t)
}

// dispatched returns the audit record of the first delivery of t.
func dispatched(ev audit.Event, t webhook.EventType) (audit.WebhookDispatch, bool) {
	for _, d := range ev.WebhookEvents {
		if d.EventType == string(t) {
			return d, true
		}
	}
	return audit.WebhookDispatch{}, false
}

type brokenSink struct {
	*storage.MemorySink
}

func (brokenSink) Append(ctx context.Context, ev audit.Event) error {
	return errors.New("disk full")
}

type docsConnector struct {
	chunks []retrieval.Chunk
}

func (d docsConnector) Search(ctx context.Context, query string, filters map[string]string, k int) ([]retrieval.Chunk, error) {
	return d.chunks, nil
}

func (d docsConnector) Fetch(ctx context.Context, sourceID string) (*retrieval.Document, error) {
	return nil, nil
}

type setup struct {
	decision  string
	sourceErr error
	mode      policy.Mode
	providers []*mockrouting.MockProvider
	ceiling   int64
	sink      audit.Sink
	docs      []retrieval.Chunk
	every     int
	notifier  pipeline.Notifier
}

type harness struct {
	p        *pipeline.Pipeline
	sink     audit.Sink
	notifier *recordingNotifier
	tracker  *budget.Tracker
	provs    []*mockrouting.MockProvider
}

func newHarness(t *testing.T, s setup) *harness {
	t.Helper()

	if s.decision == "" {
		s.decision = allowAll
	}
	gate, err := policy.NewClient(staticSource{body: s.decision, err: s.sourceErr}, policy.Options{Mode: s.mode})
	if err != nil {
		t.Fatalf("policy client: %v", err)
	}
	redactor, err := redaction.NewEngine(redaction.Options{})
	if err != nil {
		t.Fatalf("redaction engine: %v", err)
	}

	if len(s.providers) == 0 {
		s.providers = []*mockrouting.MockProvider{mockrouting.NewMockProvider("alpha", mockrouting.Step{Content: "hello"})}
	}
	var entries []routing.Entry
	for i, mp := range s.providers {
		entries = append(entries, routing.Entry{
			Descriptor: providers.Descriptor{
				Name:     mp.Name(),
				Priority: (i + 1) * 10,
				Capabilities: []providers.Capability{
					providers.CapabilityChat,
					providers.CapabilityStream,
					providers.CapabilityEmbeddings,
				},
			},
			Provider: mp,
		})
	}
	router := routing.NewRouter(entries, routing.Options{RetryableStatuses: []int{429, 502, 503}})

	sink := s.sink
	if sink == nil {
		sink = storage.NewMemorySink()
	}
	writer, err := audit.NewWriter(context.Background(), sink, audit.Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("audit writer: %v", err)
	}
	t.Cleanup(func() { _ = writer.Close() })

	ceiling := s.ceiling
	if ceiling == 0 {
		ceiling = 100000
	}
	tracker := budget.NewTracker(budget.NewMemoryBackend(), budget.Options{DefaultCeiling: ceiling})

	registry := retrieval.NewRegistry()
	registry.Register("docs", 10, docsConnector{chunks: s.docs})

	notifier := &recordingNotifier{}
	var n pipeline.Notifier = notifier
	if s.notifier != nil {
		n = s.notifier
	}
	p, err := pipeline.New(pipeline.Deps{
		Gate:      gate,
		Redactor:  redactor,
		Router:    router,
		Audit:     writer,
		Retriever: retrieval.NewRetriever(registry, retrieval.Options{}),
		Budget:    tracker,
		Estimator: tokens.NewSimpleEstimator(config.TokensConfig{}),
		Notifier:  n,
	}, pipeline.Options{StreamCheckEvery: s.every})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return &harness{p: p, sink: sink, notifier: notifier, tracker: tracker, provs: s.providers}
}

func (h *harness) events(t *testing.T) []audit.Event {
	t.Helper()
	events, err := h.sink.ReadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func (h *harness) only(t *testing.T) audit.Event {
	t.Helper()
	events := h.events(t)
	if len(events) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(events))
	}
	return events[0]
}

func requestContext(c governance.Classification) governance.RequestContext {
	return governance.NewRequestContext("req-1", "acme", "u-1", c, "", "", nil)
}

func chatRequest(content string) *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: content}},
	}
}

func TestNew_RequiresStages(t *testing.T) {
	if _, err := pipeline.New(pipeline.Deps{}, pipeline.Options{}); err == nil {
		t.Fatal("expected error for missing stages")
	}
}

func TestPipeline_Chat_Success(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha", mockrouting.Step{Content: "write to carol@example.com"})
	h := newHarness(t, setup{providers: []*mockrouting.MockProvider{provider}})

	res, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationPII), chatRequest("I am alice@example.com"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got := res.Response.Content; got != "write to [EMAIL_REDACTED]" {
		t.Errorf("response content = %q", got)
	}
	if got := provider.LastRequest().Messages[0].Content; got != "I am [EMAIL_REDACTED]" {
		t.Errorf("provider saw %q", got)
	}
	if res.Provider != "alpha" || res.PolicyHash != "h1" {
		t.Errorf("result = %+v", res)
	}

	ev := h.only(t)
	if ev.Outcome != audit.OutcomeSuccess || ev.ReasonCode != "" {
		t.Errorf("outcome = %q/%q", ev.Outcome, ev.ReasonCode)
	}
	if ev.PolicyHash != "h1" || ev.PolicyDecision != policy.LabelAllow || ev.PolicyDecisionID != "d-1" {
		t.Errorf("policy fields = %q %q %q", ev.PolicyHash, ev.PolicyDecision, ev.PolicyDecisionID)
	}
	if ev.InputRedactionCount != 1 || ev.OutputRedactionCount != 1 {
		t.Errorf("redaction counts = %d/%d", ev.InputRedactionCount, ev.OutputRedactionCount)
	}
	if ev.TokensIn != 10 || ev.TokensOut != 5 {
		t.Errorf("tokens = %d/%d, want 10/5", ev.TokensIn, ev.TokensOut)
	}
	if ev.Budget == nil || ev.Budget.Used != 15 {
		t.Errorf("budget snapshot = %+v", ev.Budget)
	}
	if ev.RequestPayloadHash == "" || ev.ProviderRequestHash == "" || ev.ProviderResponseHash == "" {
		t.Error("payload hashes must be recorded")
	}
	if ev.RequestPayloadHash == ev.ProviderRequestHash {
		t.Error("redacted provider request should hash differently from the original")
	}
	want := audit.WebhookDispatch{EventType: string(webhook.EventRedactionHit), Endpoint: receiverURL, Status: webhook.StatusQueued}
	if got, ok := dispatched(ev, webhook.EventRedactionHit); !ok || got != want {
		t.Errorf("redaction_hit dispatch = %+v, want %+v (all: %+v)", got, want, ev.WebhookEvents)
	}
	if ev.EventID != res.Event.EventID {
		t.Error("result must carry the persisted event")
	}
}

func TestPipeline_Chat_InternalNotRedacted(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{providers: []*mockrouting.MockProvider{provider}})

	if _, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), chatRequest("mail alice@example.com")); err != nil {
		t.Fatal(err)
	}
	if got := provider.LastRequest().Messages[0].Content; got != "mail alice@example.com" {
		t.Errorf("internal content should pass through, got %q", got)
	}
	if h.notifier.fired(webhook.EventRedactionHit) {
		t.Error("no redaction_hit expected")
	}
}

func TestPipeline_Chat_Denials(t *testing.T) {
	tests := []struct {
		name      string
		decision  string
		sourceErr error
		req       *providers.CompletionRequest
		wantKind  error
		wantCode  string
		wantHash  string
		wantHook  webhook.EventType
	}{
		{
			name:     "policy deny",
			decision: `{"allow": false, "deny_reason": "tenant_suspended", "policy_hash": "h2"}`,
			wantKind: governance.ErrPolicyDenied,
			wantCode: "tenant_suspended",
			wantHash: "h2",
			wantHook: webhook.EventPolicyDenied,
		},
		{
			name:      "decision service down",
			sourceErr: errors.New("connection refused"),
			wantKind:  governance.ErrPolicyUnavailable,
			wantCode:  policy.ReasonPolicyUnavailable,
			wantHash:  policy.UnavailableHash,
			wantHook:  webhook.EventPolicyDenied,
		},
		{
			name:     "unsupported transform",
			decision: `{"allow": true, "policy_hash": "h3", "transforms": [{"field": "messages", "op": "translate", "value": "fr"}]}`,
			wantKind: governance.ErrPolicyDenied,
			wantCode: policy.ReasonUnsupportedTransform,
			wantHash: "h3",
			wantHook: webhook.EventPolicyDenied,
		},
		{
			name:     "model not allowed",
			decision: `{"allow": true, "policy_hash": "h4", "provider_constraints": {"allowed_models": ["claude-*"]}}`,
			wantKind: governance.ErrPolicyDenied,
			wantCode: policy.ReasonModelNotAllowed,
			wantHash: "h4",
			wantHook: webhook.EventPolicyDenied,
		},
		{
			name:     "invalid request",
			req:      &providers.CompletionRequest{Model: "gpt-4o"},
			wantKind: governance.ErrInvalidRequest,
			wantCode: pipeline.ReasonInvalidRequest,
			wantHash: policy.UnavailableHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mockrouting.NewMockProvider("alpha")
			h := newHarness(t, setup{decision: tt.decision, sourceErr: tt.sourceErr, providers: []*mockrouting.MockProvider{provider}})

			req := tt.req
			if req == nil {
				req = chatRequest("hello")
			}
			res, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), req)
			if res != nil {
				t.Fatal("denied request must not return a result")
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("error = %v, want %v", err, tt.wantKind)
			}
			gerr, ok := governance.AsError(err)
			if !ok {
				t.Fatalf("expected *governance.Error, got %T", err)
			}
			if gerr.Reason != tt.wantCode || gerr.PolicyHash != tt.wantHash {
				t.Errorf("reason/hash = %q/%q, want %q/%q", gerr.Reason, gerr.PolicyHash, tt.wantCode, tt.wantHash)
			}
			if provider.Calls() != 0 {
				t.Errorf("provider called %d times", provider.Calls())
			}

			ev := h.only(t)
			if ev.ReasonCode != tt.wantCode || ev.PolicyHash != tt.wantHash {
				t.Errorf("event reason/hash = %q/%q", ev.ReasonCode, ev.PolicyHash)
			}
			if ev.Outcome == audit.OutcomeSuccess {
				t.Error("outcome must not be success")
			}
			if tt.wantHook != "" && !h.notifier.fired(tt.wantHook) {
				t.Errorf("expected %s webhook, got %v", tt.wantHook, h.notifier.events)
			}
		})
	}
}

func TestPipeline_Chat_ObserveMode(t *testing.T) {
	h := newHarness(t, setup{
		decision: `{"allow": false, "deny_reason": "would_block", "policy_hash": "h5"}`,
		mode:     policy.ModeObserve,
	})

	if _, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), chatRequest("hi")); err != nil {
		t.Fatalf("observe mode must not block: %v", err)
	}
	ev := h.only(t)
	if ev.Outcome != audit.OutcomeSuccess || ev.PolicyDecision != policy.LabelObserve || ev.PolicyMode != string(policy.ModeObserve) {
		t.Errorf("event = %q %q %q", ev.Outcome, ev.PolicyDecision, ev.PolicyMode)
	}
}

func TestPipeline_Chat_Transforms(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{
		decision: `{"allow": true, "policy_hash": "h6", "transforms": [
			{"field": "max_tokens", "op": "cap", "value": 64},
			{"field": "messages", "op": "prepend_system", "value": "be careful"},
			{"field": "messages", "op": "redact"}
		]}`,
		providers: []*mockrouting.MockProvider{provider},
	})

	req := chatRequest("my email is alice@example.com")
	req.MaxTokens = 1000
	if _, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), req); err != nil {
		t.Fatal(err)
	}

	sent := provider.LastRequest()
	if sent.MaxTokens != 64 {
		t.Errorf("max_tokens = %d, want 64", sent.MaxTokens)
	}
	if len(sent.Messages) != 2 || sent.Messages[0].Role != providers.RoleSystem {
		t.Fatalf("messages = %+v", sent.Messages)
	}
	if !strings.Contains(sent.Messages[1].Content, "[EMAIL_REDACTED]") {
		t.Errorf("redact transform should force redaction of internal content: %q", sent.Messages[1].Content)
	}
	if req.MaxTokens != 1000 || len(req.Messages) != 1 {
		t.Error("caller's request must not be modified")
	}

	ev := h.only(t)
	if ev.PolicyDecision != policy.LabelTransform || len(ev.TransformsApplied) != 3 {
		t.Errorf("decision %q transforms %v", ev.PolicyDecision, ev.TransformsApplied)
	}
}

func TestPipeline_Chat_Retrieval(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{
		decision: `{"allow": true, "policy_hash": "h7", "connector_constraints": {"allowed_connectors": ["docs"]}}`,
		docs: []retrieval.Chunk{
			{ConnectorID: "docs", SourceID: "kb/1", ChunkID: "c1", Text: "escalate to bob@example.com", Score: 0.9},
		},
		providers: []*mockrouting.MockProvider{provider},
	})

	rc := governance.NewRequestContext("req-1", "acme", "u-1", governance.ClassificationPII, "", "",
		&governance.RetrievalOptions{Connectors: []string{"docs"}})
	res, err := h.p.Chat(context.Background(), rc, chatRequest("who handles refunds?"))
	if err != nil {
		t.Fatal(err)
	}

	sent := provider.LastRequest().Messages
	if len(sent) != 2 {
		t.Fatalf("expected context message appended, got %d messages", len(sent))
	}
	ctxMsg := sent[1].Content
	if !strings.HasPrefix(ctxMsg, retrieval.ContextHeader) || !strings.Contains(ctxMsg, "[EMAIL_REDACTED]") {
		t.Errorf("context message = %q", ctxMsg)
	}
	if len(res.Citations) != 1 || res.Citations[0].ChunkID != "c1" {
		t.Errorf("citations = %+v", res.Citations)
	}
	ev := h.only(t)
	if len(ev.RetrievalCitations) != 1 || ev.InputRedactionCount != 1 {
		t.Errorf("citations %v input redactions %d", ev.RetrievalCitations, ev.InputRedactionCount)
	}
}

func TestPipeline_Chat_RetrievalUnauthorized(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{providers: []*mockrouting.MockProvider{provider}})

	rc := governance.NewRequestContext("req-1", "acme", "u-1", governance.ClassificationInternal, "", "",
		&governance.RetrievalOptions{Connectors: []string{"docs"}})
	_, err := h.p.Chat(context.Background(), rc, chatRequest("hi"))
	if !errors.Is(err, governance.ErrRetrievalUnauthorized) {
		t.Fatalf("error = %v", err)
	}
	if provider.Calls() != 0 {
		t.Error("provider must not be called")
	}
	if ev := h.only(t); ev.Outcome != audit.OutcomeDenied || ev.ReasonCode != retrieval.ReasonConnectorNotAllowed {
		t.Errorf("event = %q/%q", ev.Outcome, ev.ReasonCode)
	}
}

func TestPipeline_Chat_BudgetExceeded(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{ceiling: 10, providers: []*mockrouting.MockProvider{provider}})

	_, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), chatRequest("hi"))
	if !errors.Is(err, governance.ErrBudgetExceeded) {
		t.Fatalf("error = %v", err)
	}
	if gerr, _ := governance.AsError(err); gerr.HTTPStatus() != 429 {
		t.Errorf("status = %d", gerr.HTTPStatus())
	}
	if provider.Calls() != 0 {
		t.Error("provider must not be called")
	}
	ev := h.only(t)
	if ev.Outcome != audit.OutcomeDenied || ev.ReasonCode != budget.ReasonBudgetExceeded || ev.Budget == nil {
		t.Errorf("event = %q/%q budget %+v", ev.Outcome, ev.ReasonCode, ev.Budget)
	}
	if !h.notifier.fired(webhook.EventBudgetExceeded) {
		t.Error("expected budget_exceeded webhook")
	}
}

func TestPipeline_Chat_Fallback(t *testing.T) {
	first := mockrouting.NewMockProvider("alpha", mockrouting.Step{Err: mockrouting.Status("alpha", 503)})
	second := mockrouting.NewMockProvider("beta", mockrouting.Step{Content: "ok"})
	h := newHarness(t, setup{providers: []*mockrouting.MockProvider{first, second}})

	res, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), chatRequest("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "beta" {
		t.Errorf("provider = %q", res.Provider)
	}
	ev := h.only(t)
	if ev.ProviderAttempts != 2 || !slices.Equal(ev.FallbackChain, []string{"alpha", "beta"}) {
		t.Errorf("attempts %d chain %v", ev.ProviderAttempts, ev.FallbackChain)
	}
	if _, ok := dispatched(ev, webhook.EventProviderFallback); !ok {
		t.Errorf("webhook events = %+v", ev.WebhookEvents)
	}
}

func TestPipeline_Chat_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		steps    []error
		wantKind error
		wantCode string
	}{
		{"exhausted", []error{mockrouting.Status("alpha", 503), mockrouting.Status("beta", 502)}, governance.ErrProviderExhausted, pipeline.ReasonProviderExhausted},
		{"terminal", []error{mockrouting.Status("alpha", 400), nil}, governance.ErrProviderFailed, pipeline.ReasonProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alpha := mockrouting.NewMockProvider("alpha", mockrouting.Step{Err: tt.steps[0]})
			beta := mockrouting.NewMockProvider("beta", mockrouting.Step{Err: tt.steps[1]})
			h := newHarness(t, setup{providers: []*mockrouting.MockProvider{alpha, beta}})

			_, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), chatRequest("hi"))
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("error = %v, want %v", err, tt.wantKind)
			}
			ev := h.only(t)
			if ev.Outcome != audit.OutcomeFailed || ev.ReasonCode != tt.wantCode {
				t.Errorf("event = %q/%q", ev.Outcome, ev.ReasonCode)
			}
			if ev.ProviderAttempts == 0 {
				t.Error("attempts must be recorded on failure")
			}
			if !h.notifier.fired(webhook.EventProviderError) {
				t.Error("expected provider_error webhook")
			}

			snap, err := h.tracker.Summary(context.Background(), "acme")
			if err != nil {
				t.Fatal(err)
			}
			if snap.Used != 0 {
				t.Errorf("reservation should be released, used = %d", snap.Used)
			}
		})
	}
}

func TestPipeline_Chat_AuditFailure(t *testing.T) {
	h := newHarness(t, setup{sink: brokenSink{storage.NewMemorySink()}})

	res, err := h.p.Chat(context.Background(), requestContext(governance.ClassificationInternal), chatRequest("hi"))
	if res != nil {
		t.Fatal("response must be withheld when the audit write fails")
	}
	if !errors.Is(err, governance.ErrAuditWriteFailure) {
		t.Fatalf("error = %v", err)
	}
	if !h.notifier.fired(webhook.EventAuditFailure) {
		t.Error("expected audit_failure webhook")
	}
}

func TestPipeline_Chat_AuditChain(t *testing.T) {
	h := newHarness(t, setup{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.p.Chat(ctx, requestContext(governance.ClassificationInternal), chatRequest("hi")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := audit.VerifySink(ctx, h.sink); err != nil {
		t.Errorf("chain should verify: %v", err)
	}
}

func TestPipeline_Embeddings(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{
		decision:  `{"allow": true, "policy_hash": "h8", "transforms": [{"field": "model", "op": "set", "value": "text-embedding-3-small"}]}`,
		providers: []*mockrouting.MockProvider{provider},
	})

	res, err := h.p.Embeddings(context.Background(), requestContext(governance.ClassificationPII), &providers.EmbeddingRequest{
		Model: "text-embedding-3-large",
		Input: []string{"alice@example.com", "plain"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Response.Data) != 2 {
		t.Errorf("data = %d vectors", len(res.Response.Data))
	}

	ev := h.only(t)
	if ev.Endpoint != pipeline.EndpointEmbeddings || ev.SelectedModel != "text-embedding-3-small" {
		t.Errorf("endpoint %q model %q", ev.Endpoint, ev.SelectedModel)
	}
	if ev.InputRedactionCount != 1 || ev.TokensIn != 2 {
		t.Errorf("redactions %d tokens %d", ev.InputRedactionCount, ev.TokensIn)
	}
}

func TestPipeline_Embeddings_Denied(t *testing.T) {
	provider := mockrouting.NewMockProvider("alpha")
	h := newHarness(t, setup{decision: `{"allow": false, "policy_hash": "h9"}`, providers: []*mockrouting.MockProvider{provider}})

	_, err := h.p.Embeddings(context.Background(), requestContext(governance.ClassificationInternal), &providers.EmbeddingRequest{
		Model: "text-embedding-3-small",
		Input: []string{"x"},
	})
	if !errors.Is(err, governance.ErrPolicyDenied) {
		t.Fatalf("error = %v", err)
	}
	if provider.Calls() != 0 {
		t.Error("provider must not be called")
	}
	if ev := h.only(t); ev.ReasonCode != policy.ReasonPolicyDenied {
		t.Errorf("reason = %q", ev.ReasonCode)
	}
}
