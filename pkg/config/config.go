package config

import "time"

// Config is the root configuration structure for Mercator Saturn.
// It contains every section the governance pipeline and its ingress read
// at construction time.
type Config struct {
	// Server contains HTTP ingress configuration including listen address,
	// timeouts, and request limits.
	Server ServerConfig `yaml:"server"`

	// Policy contains configuration for the remote policy decision service.
	Policy PolicyConfig `yaml:"policy"`

	// Redaction contains configuration for the redaction engine's rule set.
	Redaction RedactionConfig `yaml:"redaction"`

	// Retrieval contains configuration for retrieval connectors and the
	// authorization defaults applied when a decision carries no constraints.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Providers contains configuration for all upstream LLM providers.
	// Keys are provider names (e.g., "openai", "anthropic", "stub").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Routing contains configuration for the provider router.
	Routing RoutingConfig `yaml:"routing"`

	// Budget contains configuration for per-tenant token budgets.
	Budget BudgetConfig `yaml:"budget"`

	// Audit contains configuration for the hash-chained audit log.
	Audit AuditConfig `yaml:"audit"`

	// Webhooks contains configuration for webhook delivery and dead-letter storage.
	Webhooks WebhooksConfig `yaml:"webhooks"`

	// Processing contains token estimation configuration.
	Processing ProcessingConfig `yaml:"processing"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP ingress.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming responses are bounded by this as well.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size.
	// Default: 4194304 (4MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// DefaultClassification applies when a request carries no
	// X-Data-Classification header.
	// Options: "public", "internal", "pii", "phi"
	// Default: "internal"
	DefaultClassification string `yaml:"default_classification"`
}

// PolicyConfig contains configuration for the policy decision gate.
type PolicyConfig struct {
	// URL is the decision endpoint. When empty, the built-in local decision
	// source is used; it is intended for development only.
	// Example: "http://opa:8181/v1/data/saturn/decision"
	URL string `yaml:"url"`

	// Timeout bounds the single decision call.
	// Default: 150ms
	Timeout time.Duration `yaml:"timeout"`

	// Mode controls whether a deny blocks the request.
	// Options: "enforce", "observe"
	// Default: "enforce"
	Mode string `yaml:"mode"`

	// Headers are added to every decision request (e.g., an authorization token).
	Headers map[string]string `yaml:"headers"`

	// Local configures the built-in decision source.
	Local LocalPolicyConfig `yaml:"local"`
}

// LocalPolicyConfig configures the built-in decision source.
type LocalPolicyConfig struct {
	// DeniedModelPrefixes are model name prefixes that are always denied.
	// Default: ["forbidden"]
	DeniedModelPrefixes []string `yaml:"denied_model_prefixes"`

	// Guardrail is prepended as a system message for pii and phi requests.
	// Default: "Do not expose sensitive identifiers. Use masked placeholders."
	Guardrail string `yaml:"guardrail"`

	// SensitiveMaxTokens caps max_tokens for pii and phi requests.
	// Default: 256
	SensitiveMaxTokens int `yaml:"sensitive_max_tokens"`

	// AllowedConnectors is returned as the connector constraint. Empty means
	// the decision carries no connector constraint.
	AllowedConnectors []string `yaml:"allowed_connectors"`
}

// RedactionConfig contains redaction engine configuration.
type RedactionConfig struct {
	// Disabled turns redaction into a pass-through. Intended for tests only.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// Classifications that activate scanning. Public is never allowed.
	// Default: ["pii", "phi"]
	Classifications []string `yaml:"classifications"`

	// Categories keeps only rules of these categories. Empty keeps all.
	// Options: "phi", "pii", "financial"
	Categories []string `yaml:"categories"`

	// Overlap selects how contested spans are resolved.
	// Options: "rule_order", "leftmost"
	// Default: "rule_order"
	Overlap string `yaml:"overlap"`

	// Rules are appended after the built-in rules, in order.
	Rules []RedactionRuleConfig `yaml:"rules"`
}

// RedactionRuleConfig defines an additional redaction rule.
type RedactionRuleConfig struct {
	// ID identifies the rule in audit events. Must be unique.
	ID string `yaml:"id"`

	// Pattern is a Go regular expression.
	Pattern string `yaml:"pattern"`

	// Replacement replaces each match.
	// Default: "[REDACTED]"
	Replacement string `yaml:"replacement"`

	// Category groups the rule for filtering.
	// Default: "pii"
	Category string `yaml:"category"`
}

// RetrievalConfig contains retrieval configuration.
type RetrievalConfig struct {
	// Enabled controls whether retrieval requests are honored.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// DefaultTopK bounds retrieved chunks when the caller does not.
	// Default: 3
	DefaultTopK int `yaml:"default_top_k"`

	// MaxTopK caps caller-supplied top_k.
	// Default: 20
	MaxTopK int `yaml:"max_top_k"`

	// AllowedConnectors is the authorized set used when a decision
	// carries no connector constraints.
	// Default: ["filesystem"]
	AllowedConnectors []string `yaml:"allowed_connectors"`

	// AllowedSourcePrefixes restricts citation source ids. Empty disables
	// the prefix check; connector membership is always verified.
	AllowedSourcePrefixes []string `yaml:"allowed_source_prefixes"`

	// ConnectorTimeout bounds each connector search.
	// Default: 2s
	ConnectorTimeout time.Duration `yaml:"connector_timeout"`

	// Connectors configures connector instances by name.
	Connectors map[string]ConnectorConfig `yaml:"connectors"`
}

// ConnectorConfig configures one retrieval connector.
type ConnectorConfig struct {
	// Type selects the implementation.
	// Options: "filesystem", "postgres"
	Type string `yaml:"type"`

	// Priority breaks ranking ties; lower ranks first.
	// Default: 100
	Priority int `yaml:"priority"`

	// IndexPath is the JSONL index for the filesystem connector.
	IndexPath string `yaml:"index_path"`

	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`

	// Table is the postgres chunk table.
	// Default: "rag_chunks"
	Table string `yaml:"table"`
}

// ProviderConfig contains configuration for a single upstream provider.
type ProviderConfig struct {
	// Type selects the adapter. When empty it is inferred from the provider name.
	// Options: "openai", "anthropic", "generic", "stub"
	Type string `yaml:"type"`

	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the provider.
	// This should typically be loaded from an environment variable.
	APIKey string `yaml:"api_key"`

	// Timeout is the maximum duration for a single upstream call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Priority orders providers in the fallback chain; lower goes first.
	// Default: 100
	Priority int `yaml:"priority"`

	// Capabilities lists what the provider can serve.
	// Options: "chat", "stream", "embeddings"
	// Default: ["chat", "stream"]
	Capabilities []string `yaml:"capabilities"`

	// Models lists the models the provider serves. A trailing "*" matches a
	// prefix. Empty means every model.
	Models []string `yaml:"models"`

	// CostPer1KInput is the cost in USD per 1K prompt tokens.
	CostPer1KInput float64 `yaml:"cost_per_1k_input"`

	// CostPer1KOutput is the cost in USD per 1K completion tokens.
	CostPer1KOutput float64 `yaml:"cost_per_1k_output"`

	// Disabled removes the provider from every chain.
	// Default: false
	Disabled bool `yaml:"disabled"`
}

// RoutingConfig contains provider router configuration.
type RoutingConfig struct {
	// RetryableStatuses are upstream status codes that move to the next
	// provider. Timeouts count as 503 and connection failures as 502.
	// Default: [429, 502, 503]
	RetryableStatuses []int `yaml:"retryable_statuses"`

	// CostAware re-orders the chain by estimated request cost after
	// priority ordering.
	// Default: false
	CostAware bool `yaml:"cost_aware"`

	// Primary, when set, is moved to the head of every chain it is eligible for.
	Primary string `yaml:"primary"`
}

// BudgetConfig contains per-tenant budget configuration.
type BudgetConfig struct {
	// Disabled turns off budget enforcement and usage tracking.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// Backend selects the counter backend.
	// Options: "memory", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// DefaultCeiling is the token ceiling per window for tenants without an override.
	// Default: 100000
	DefaultCeiling int64 `yaml:"default_ceiling"`

	// Window is the sliding window length.
	// Default: 1h
	Window time.Duration `yaml:"window"`

	// TenantCeilings overrides the ceiling per tenant.
	TenantCeilings map[string]int64 `yaml:"tenant_ceilings"`

	// AlertThreshold is the utilization fraction that queues a budget_warning webhook.
	// Default: 0.8
	AlertThreshold float64 `yaml:"alert_threshold"`

	// StreamCheckEvery runs the mid-stream budget check every N chunks.
	// Default: 8
	StreamCheckEvery int `yaml:"stream_check_every"`

	// DefaultMaxTokens is reserved for completion output when a request
	// does not set max_tokens.
	// Default: 512
	DefaultMaxTokens int `yaml:"default_max_tokens"`

	// Redis configures the redis backend.
	Redis RedisBudgetConfig `yaml:"redis"`
}

// RedisBudgetConfig contains redis backend configuration.
type RedisBudgetConfig struct {
	// Addr is the redis address.
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password for AUTH. Prefer SATURN_BUDGET_REDIS_PASSWORD.
	Password string `yaml:"password"`

	// DB is the redis database number.
	// Default: 0
	DB int `yaml:"db"`

	// KeyPrefix namespaces budget keys.
	// Default: "saturn:budget:"
	KeyPrefix string `yaml:"key_prefix"`

	// TTL is the minimum key TTL. The effective TTL is max(TTL, 2*window).
	// Default: 2h
	TTL time.Duration `yaml:"ttl"`

	// Timeout bounds every redis call. A timeout fails closed.
	// Default: 250ms
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig contains audit log configuration.
type AuditConfig struct {
	// Backend selects the audit sink.
	// Options: "file", "sqlite", "memory"
	// Default: "file"
	Backend string `yaml:"backend"`

	// Path is the JSONL file or sqlite database path.
	// Default: "data/audit/events.jsonl"
	Path string `yaml:"path"`

	// AppendTimeout bounds a single append including persistence.
	// Default: 5s
	AppendTimeout time.Duration `yaml:"append_timeout"`
}

// WebhooksConfig contains webhook delivery configuration.
type WebhooksConfig struct {
	// Endpoints are the webhook receivers.
	Endpoints []WebhookEndpointConfig `yaml:"endpoints"`

	// Workers is the number of delivery workers.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize bounds queued deliveries; a full queue drops new events.
	// Default: 1000
	QueueSize int `yaml:"queue_size"`

	// Timeout bounds a single delivery attempt.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the first retry interval.
	// Default: 200ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the retry interval.
	// Default: 2s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// DeadLetter configures where exhausted deliveries are kept.
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
}

// WebhookEndpointConfig configures one receiver.
type WebhookEndpointConfig struct {
	// URL receives POSTed events.
	URL string `yaml:"url"`

	// Secret signs bodies with HMAC-SHA256. Empty disables signing.
	Secret string `yaml:"secret"`

	// EventTypes filters delivered events. Empty delivers every type.
	EventTypes []string `yaml:"event_types"`

	// Disabled stops deliveries to this endpoint.
	Disabled bool `yaml:"disabled"`
}

// DeadLetterConfig configures the dead-letter store.
type DeadLetterConfig struct {
	// Backend selects the store.
	// Options: "sqlite", "jsonl"
	// Default: "jsonl"
	Backend string `yaml:"backend"`

	// Path is the store location.
	// Default: "data/webhooks/dead_letter.jsonl"
	Path string `yaml:"path"`

	// RetentionDays drops records older than this. Zero keeps records forever.
	// Default: 7
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron schedule for pruning.
	// Default: "0 3 * * *" (3 AM daily)
	PruneSchedule string `yaml:"prune_schedule"`
}

// ProcessingConfig contains request processing configuration.
type ProcessingConfig struct {
	// Tokens contains token estimation configuration.
	Tokens TokensConfig `yaml:"tokens"`
}

// TokensConfig contains token estimation configuration.
type TokensConfig struct {
	// CharsPerToken is the default characters-per-token ratio.
	// Default: 4.0
	CharsPerToken float64 `yaml:"chars_per_token"`

	// Models contains model-specific characters-per-token ratios.
	Models map[string]float64 `yaml:"models"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII passes string attributes through the redaction rule set.
	// Default: false
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "saturn"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "saturn"
	ServiceName string `yaml:"service_name"`
}
