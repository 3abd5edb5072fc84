package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error refers to the given field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateRedaction(&cfg.Redaction)...)
	errs = append(errs, validateRetrieval(&cfg.Retrieval)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateRouting(&cfg.Routing, cfg.Providers)...)
	errs = append(errs, validateBudget(&cfg.Budget)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateWebhooks(&cfg.Webhooks)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be non-negative"})
	}
	if !oneOf(cfg.DefaultClassification, "public", "internal", "pii", "phi") {
		errs = append(errs, FieldError{
			Field:   "server.default_classification",
			Message: fmt.Sprintf("invalid classification %q (must be public, internal, pii, or phi)", cfg.DefaultClassification),
		})
	}

	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.URL != "" {
		if err := validateHTTPURL(cfg.URL); err != nil {
			errs = append(errs, FieldError{Field: "policy.url", Message: err.Error()})
		}
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "policy.timeout", Message: "timeout must be positive"})
	}
	if !oneOf(cfg.Mode, "enforce", "observe") {
		errs = append(errs, FieldError{
			Field:   "policy.mode",
			Message: fmt.Sprintf("invalid mode %q (must be enforce or observe)", cfg.Mode),
		})
	}
	if cfg.Local.SensitiveMaxTokens < 0 {
		errs = append(errs, FieldError{Field: "policy.local.sensitive_max_tokens", Message: "must be non-negative"})
	}

	return errs
}

func validateRedaction(cfg *RedactionConfig) []FieldError {
	var errs []FieldError

	for _, c := range cfg.Classifications {
		switch c {
		case "internal", "pii", "phi":
		case "public":
			errs = append(errs, FieldError{Field: "redaction.classifications", Message: "public content is never scanned"})
		default:
			errs = append(errs, FieldError{Field: "redaction.classifications", Message: fmt.Sprintf("unknown classification %q", c)})
		}
	}
	for _, c := range cfg.Categories {
		if !oneOf(c, "phi", "pii", "financial") {
			errs = append(errs, FieldError{Field: "redaction.categories", Message: fmt.Sprintf("unknown category %q", c)})
		}
	}
	if !oneOf(cfg.Overlap, "rule_order", "leftmost") {
		errs = append(errs, FieldError{
			Field:   "redaction.overlap",
			Message: fmt.Sprintf("invalid overlap policy %q (must be rule_order or leftmost)", cfg.Overlap),
		})
	}

	seen := make(map[string]bool)
	for i, rule := range cfg.Rules {
		prefix := fmt.Sprintf("redaction.rules[%d]", i)
		if rule.ID == "" {
			errs = append(errs, FieldError{Field: prefix + ".id", Message: "id is required"})
		} else if seen[rule.ID] {
			errs = append(errs, FieldError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate rule id %q", rule.ID)})
		}
		seen[rule.ID] = true
		if rule.Pattern == "" {
			errs = append(errs, FieldError{Field: prefix + ".pattern", Message: "pattern is required"})
		} else if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, FieldError{Field: prefix + ".pattern", Message: fmt.Sprintf("invalid pattern: %v", err)})
		}
	}

	return errs
}

func validateRetrieval(cfg *RetrievalConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultTopK < 1 {
		errs = append(errs, FieldError{Field: "retrieval.default_top_k", Message: "must be at least 1"})
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		errs = append(errs, FieldError{Field: "retrieval.max_top_k", Message: "must be at least default_top_k"})
	}
	if cfg.ConnectorTimeout <= 0 {
		errs = append(errs, FieldError{Field: "retrieval.connector_timeout", Message: "must be positive"})
	}

	for name, conn := range cfg.Connectors {
		prefix := "retrieval.connectors." + name
		switch conn.Type {
		case "filesystem":
			if conn.IndexPath == "" {
				errs = append(errs, FieldError{Field: prefix + ".index_path", Message: "index path is required for filesystem connectors"})
			}
		case "postgres":
			if conn.DSN == "" {
				errs = append(errs, FieldError{Field: prefix + ".dsn", Message: "dsn is required for postgres connectors"})
			}
			if !validIdentifier(conn.Table) {
				errs = append(errs, FieldError{Field: prefix + ".table", Message: fmt.Sprintf("invalid table name %q", conn.Table)})
			}
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unknown connector type %q (must be filesystem or postgres)", conn.Type),
			})
		}
	}

	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	enabled := 0
	for name, provider := range providers {
		prefix := "providers." + name
		if !provider.Disabled {
			enabled++
		}

		typ := provider.ResolvedType(name)
		if !oneOf(typ, "openai", "anthropic", "generic", "stub") {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("cannot determine provider type for %q (set type to openai, anthropic, generic, or stub)", name),
			})
		}
		if typ == "generic" && provider.BaseURL == "" {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "base URL is required for generic providers"})
		}
		if provider.BaseURL != "" {
			if err := validateHTTPURL(provider.BaseURL); err != nil {
				errs = append(errs, FieldError{Field: prefix + ".base_url", Message: err.Error()})
			}
		}
		if provider.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must be positive"})
		}
		if provider.Priority < 0 {
			errs = append(errs, FieldError{Field: prefix + ".priority", Message: "priority must be non-negative"})
		}
		if provider.CostPer1KInput < 0 || provider.CostPer1KOutput < 0 {
			errs = append(errs, FieldError{Field: prefix + ".cost_per_1k_input", Message: "costs must be non-negative"})
		}
		for _, c := range provider.Capabilities {
			if !oneOf(c, "chat", "stream", "embeddings") {
				errs = append(errs, FieldError{Field: prefix + ".capabilities", Message: fmt.Sprintf("unknown capability %q", c)})
			}
		}
	}

	if enabled == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one enabled provider must be configured",
		})
	}

	return errs
}

// ResolvedType returns the adapter type for the provider, inferring it from
// the provider name when Type is empty. It returns "" when nothing matches.
func (p ProviderConfig) ResolvedType(name string) string {
	if p.Type != "" {
		return strings.ToLower(p.Type)
	}
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "openai"), strings.Contains(lower, "gpt"):
		return "openai"
	case strings.Contains(lower, "anthropic"), strings.Contains(lower, "claude"):
		return "anthropic"
	case strings.Contains(lower, "stub"):
		return "stub"
	default:
		return ""
	}
}

func validateRouting(cfg *RoutingConfig, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for _, code := range cfg.RetryableStatuses {
		if code < 400 || code > 599 {
			errs = append(errs, FieldError{
				Field:   "routing.retryable_statuses",
				Message: fmt.Sprintf("status %d is not an error status", code),
			})
		}
	}
	if cfg.Primary != "" {
		if _, ok := providers[cfg.Primary]; !ok {
			errs = append(errs, FieldError{
				Field:   "routing.primary",
				Message: fmt.Sprintf("primary provider %q is not configured", cfg.Primary),
			})
		}
	}

	return errs
}

func validateBudget(cfg *BudgetConfig) []FieldError {
	var errs []FieldError

	if !oneOf(cfg.Backend, "memory", "redis") {
		errs = append(errs, FieldError{
			Field:   "budget.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or redis)", cfg.Backend),
		})
	}
	if cfg.DefaultCeiling < 0 {
		errs = append(errs, FieldError{Field: "budget.default_ceiling", Message: "ceiling must be non-negative"})
	}
	if cfg.Window <= 0 {
		errs = append(errs, FieldError{Field: "budget.window", Message: "window must be positive"})
	}
	for tenant, ceiling := range cfg.TenantCeilings {
		if ceiling < 0 {
			errs = append(errs, FieldError{Field: "budget.tenant_ceilings." + tenant, Message: "ceiling must be non-negative"})
		}
	}
	if cfg.AlertThreshold <= 0 || cfg.AlertThreshold > 1 {
		errs = append(errs, FieldError{Field: "budget.alert_threshold", Message: "alert threshold must be between 0 and 1"})
	}
	if cfg.StreamCheckEvery < 1 {
		errs = append(errs, FieldError{Field: "budget.stream_check_every", Message: "must be at least 1"})
	}
	if cfg.Backend == "redis" {
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{Field: "budget.redis.addr", Message: "address is required for the redis backend"})
		}
		if cfg.Redis.Timeout <= 0 {
			errs = append(errs, FieldError{Field: "budget.redis.timeout", Message: "timeout must be positive"})
		}
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if !oneOf(cfg.Backend, "file", "sqlite", "memory") {
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q (must be file, sqlite, or memory)", cfg.Backend),
		})
	} else if cfg.Backend != "memory" && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "audit.path", Message: "path is required for persistent audit backends"})
	}
	if cfg.AppendTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.append_timeout", Message: "append timeout must be positive"})
	}

	return errs
}

func validateWebhooks(cfg *WebhooksConfig) []FieldError {
	var errs []FieldError

	for i, ep := range cfg.Endpoints {
		prefix := fmt.Sprintf("webhooks.endpoints[%d]", i)
		if err := validateHTTPURL(ep.URL); err != nil {
			errs = append(errs, FieldError{Field: prefix + ".url", Message: err.Error()})
		}
		for _, typ := range ep.EventTypes {
			if !oneOf(typ, webhookEventTypes...) {
				errs = append(errs, FieldError{Field: prefix + ".event_types", Message: fmt.Sprintf("unknown event type %q", typ)})
			}
		}
	}
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "webhooks.workers", Message: "must be at least 1"})
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{Field: "webhooks.queue_size", Message: "must be at least 1"})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "webhooks.max_retries", Message: "must be non-negative"})
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		errs = append(errs, FieldError{Field: "webhooks.max_backoff", Message: "must be at least initial_backoff"})
	}

	dl := cfg.DeadLetter
	if !oneOf(dl.Backend, "sqlite", "jsonl") {
		errs = append(errs, FieldError{
			Field:   "webhooks.dead_letter.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite or jsonl)", dl.Backend),
		})
	}
	if dl.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "webhooks.dead_letter.retention_days", Message: "must be non-negative"})
	}
	if _, err := cron.ParseStandard(dl.PruneSchedule); err != nil {
		errs = append(errs, FieldError{Field: "webhooks.dead_letter.prune_schedule", Message: fmt.Sprintf("invalid cron schedule: %v", err)})
	}

	return errs
}

// webhookEventTypes mirrors the event types the dispatcher emits.
var webhookEventTypes = []string{
	"policy_denied", "budget_exceeded", "budget_warning", "provider_fallback",
	"provider_error", "redaction_hit", "stream_truncated", "audit_failure",
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !oneOf(cfg.Logging.Level, "debug", "info", "warn", "error") {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	if !oneOf(cfg.Logging.Format, "json", "text", "console") {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		if !oneOf(cfg.Tracing.Sampler, "always", "never", "ratio") {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("invalid sampler %q", cfg.Tracing.Sampler)})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}

	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
