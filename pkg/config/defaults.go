package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = int64(4 << 20)
	DefaultClassification  = "internal"

	// Policy defaults
	DefaultPolicyTimeout           = 150 * time.Millisecond
	DefaultPolicyMode              = "enforce"
	DefaultLocalGuardrail          = "Do not expose sensitive identifiers. Use masked placeholders."
	DefaultLocalSensitiveMaxTokens = 256
	DefaultLocalDeniedModelPrefix  = "forbidden"

	// Redaction defaults
	DefaultRedactionOverlap     = "rule_order"
	DefaultRedactionReplacement = "[REDACTED]"
	DefaultRedactionCategory    = "pii"

	// Retrieval defaults
	DefaultRetrievalTopK      = 3
	DefaultRetrievalMaxTopK   = 20
	DefaultConnectorTimeout   = 2 * time.Second
	DefaultConnectorPriority  = 100
	DefaultPostgresTable      = "rag_chunks"
	DefaultRetrievalConnector = "filesystem"

	// Provider defaults
	DefaultProviderTimeout  = 60 * time.Second
	DefaultProviderPriority = 100

	// Budget defaults
	DefaultBudgetBackend        = "memory"
	DefaultBudgetCeiling        = int64(100000)
	DefaultBudgetWindow         = time.Hour
	DefaultBudgetAlertThreshold = 0.8
	DefaultStreamCheckEvery     = 8
	DefaultBudgetMaxTokens      = 512
	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisKeyPrefix       = "saturn:budget:"
	DefaultRedisTTL             = 2 * time.Hour
	DefaultRedisTimeout         = 250 * time.Millisecond

	// Audit defaults
	DefaultAuditBackend       = "file"
	DefaultAuditPath          = "data/audit/events.jsonl"
	DefaultAuditAppendTimeout = 5 * time.Second

	// Webhook defaults
	DefaultWebhookWorkers        = 4
	DefaultWebhookQueueSize      = 1000
	DefaultWebhookTimeout        = 5 * time.Second
	DefaultWebhookMaxRetries     = 3
	DefaultWebhookInitialBackoff = 200 * time.Millisecond
	DefaultWebhookMaxBackoff     = 2 * time.Second
	DefaultDeadLetterBackend     = "jsonl"
	DefaultDeadLetterPath        = "data/webhooks/dead_letter.jsonl"
	DefaultDeadLetterRetention   = 7
	DefaultDeadLetterSchedule    = "0 3 * * *"

	// Processing defaults
	DefaultCharsPerToken = 4.0

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "saturn"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "saturn"
)

// DefaultRetryableStatuses returns the router's default retryable status set.
func DefaultRetryableStatuses() []int {
	return []int{429, 502, 503}
}

// DefaultProviderCapabilities returns the capabilities assumed when a
// provider lists none.
func DefaultProviderCapabilities() []string {
	return []string{"chat", "stream"}
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.DefaultClassification == "" {
		cfg.Server.DefaultClassification = DefaultClassification
	}

	// Policy defaults
	if cfg.Policy.Timeout == 0 {
		cfg.Policy.Timeout = DefaultPolicyTimeout
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = DefaultPolicyMode
	}
	if cfg.Policy.Local.DeniedModelPrefixes == nil {
		cfg.Policy.Local.DeniedModelPrefixes = []string{DefaultLocalDeniedModelPrefix}
	}
	if cfg.Policy.Local.Guardrail == "" {
		cfg.Policy.Local.Guardrail = DefaultLocalGuardrail
	}
	if cfg.Policy.Local.SensitiveMaxTokens == 0 {
		cfg.Policy.Local.SensitiveMaxTokens = DefaultLocalSensitiveMaxTokens
	}

	// Redaction defaults
	if cfg.Redaction.Overlap == "" {
		cfg.Redaction.Overlap = DefaultRedactionOverlap
	}
	for i := range cfg.Redaction.Rules {
		if cfg.Redaction.Rules[i].Replacement == "" {
			cfg.Redaction.Rules[i].Replacement = DefaultRedactionReplacement
		}
		if cfg.Redaction.Rules[i].Category == "" {
			cfg.Redaction.Rules[i].Category = DefaultRedactionCategory
		}
	}

	// Retrieval defaults
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = DefaultRetrievalTopK
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = DefaultRetrievalMaxTopK
	}
	if cfg.Retrieval.AllowedConnectors == nil {
		cfg.Retrieval.AllowedConnectors = []string{DefaultRetrievalConnector}
	}
	if cfg.Retrieval.ConnectorTimeout == 0 {
		cfg.Retrieval.ConnectorTimeout = DefaultConnectorTimeout
	}
	for name, conn := range cfg.Retrieval.Connectors {
		if conn.Type == "" {
			conn.Type = name
		}
		if conn.Priority == 0 {
			conn.Priority = DefaultConnectorPriority
		}
		if conn.Type == "postgres" && conn.Table == "" {
			conn.Table = DefaultPostgresTable
		}
		cfg.Retrieval.Connectors[name] = conn
	}

	// Provider defaults - applied to each provider
	for name, provider := range cfg.Providers {
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderTimeout
		}
		if provider.Priority == 0 {
			provider.Priority = DefaultProviderPriority
		}
		if len(provider.Capabilities) == 0 {
			provider.Capabilities = DefaultProviderCapabilities()
		}
		cfg.Providers[name] = provider
	}

	// Routing defaults
	if len(cfg.Routing.RetryableStatuses) == 0 {
		cfg.Routing.RetryableStatuses = DefaultRetryableStatuses()
	}

	// Budget defaults
	if cfg.Budget.Backend == "" {
		cfg.Budget.Backend = DefaultBudgetBackend
	}
	if cfg.Budget.DefaultCeiling == 0 {
		cfg.Budget.DefaultCeiling = DefaultBudgetCeiling
	}
	if cfg.Budget.Window == 0 {
		cfg.Budget.Window = DefaultBudgetWindow
	}
	if cfg.Budget.AlertThreshold == 0 {
		cfg.Budget.AlertThreshold = DefaultBudgetAlertThreshold
	}
	if cfg.Budget.StreamCheckEvery == 0 {
		cfg.Budget.StreamCheckEvery = DefaultStreamCheckEvery
	}
	if cfg.Budget.DefaultMaxTokens == 0 {
		cfg.Budget.DefaultMaxTokens = DefaultBudgetMaxTokens
	}
	if cfg.Budget.Redis.Addr == "" {
		cfg.Budget.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Budget.Redis.KeyPrefix == "" {
		cfg.Budget.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Budget.Redis.TTL == 0 {
		cfg.Budget.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Budget.Redis.Timeout == 0 {
		cfg.Budget.Redis.Timeout = DefaultRedisTimeout
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" && cfg.Audit.Backend != "memory" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.AppendTimeout == 0 {
		cfg.Audit.AppendTimeout = DefaultAuditAppendTimeout
	}

	// Webhook defaults
	if cfg.Webhooks.Workers == 0 {
		cfg.Webhooks.Workers = DefaultWebhookWorkers
	}
	if cfg.Webhooks.QueueSize == 0 {
		cfg.Webhooks.QueueSize = DefaultWebhookQueueSize
	}
	if cfg.Webhooks.Timeout == 0 {
		cfg.Webhooks.Timeout = DefaultWebhookTimeout
	}
	if cfg.Webhooks.MaxRetries == 0 {
		cfg.Webhooks.MaxRetries = DefaultWebhookMaxRetries
	}
	if cfg.Webhooks.InitialBackoff == 0 {
		cfg.Webhooks.InitialBackoff = DefaultWebhookInitialBackoff
	}
	if cfg.Webhooks.MaxBackoff == 0 {
		cfg.Webhooks.MaxBackoff = DefaultWebhookMaxBackoff
	}
	if cfg.Webhooks.DeadLetter.Backend == "" {
		cfg.Webhooks.DeadLetter.Backend = DefaultDeadLetterBackend
	}
	if cfg.Webhooks.DeadLetter.Path == "" {
		cfg.Webhooks.DeadLetter.Path = DefaultDeadLetterPath
	}
	if cfg.Webhooks.DeadLetter.RetentionDays == 0 {
		cfg.Webhooks.DeadLetter.RetentionDays = DefaultDeadLetterRetention
	}
	if cfg.Webhooks.DeadLetter.PruneSchedule == "" {
		cfg.Webhooks.DeadLetter.PruneSchedule = DefaultDeadLetterSchedule
	}

	// Processing defaults
	if cfg.Processing.Tokens.CharsPerToken == 0 {
		cfg.Processing.Tokens.CharsPerToken = DefaultCharsPerToken
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}

// NewDefault returns a Config with every default applied and a single stub
// provider, suitable for local runs and tests.
func NewDefault() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"stub": {Type: "stub", Capabilities: []string{"chat", "stream", "embeddings"}},
		},
		Audit: AuditConfig{Backend: "memory"},
	}
	ApplyDefaults(cfg)
	return cfg
}
