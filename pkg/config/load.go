package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for every environment variable override.
const EnvPrefix = "SATURN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SATURN_SECTION_FIELD (e.g., SATURN_BUDGET_BACKEND).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)
	// Overrides may introduce providers that still need defaults.
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envString("SERVER_DEFAULT_CLASSIFICATION", &cfg.Server.DefaultClassification)

	// Policy overrides
	envString("POLICY_URL", &cfg.Policy.URL)
	envString("POLICY_MODE", &cfg.Policy.Mode)
	envDuration("POLICY_TIMEOUT", &cfg.Policy.Timeout)

	// Redaction overrides
	envBool("REDACTION_DISABLED", &cfg.Redaction.Disabled)
	envString("REDACTION_OVERLAP", &cfg.Redaction.Overlap)

	// Retrieval overrides
	envBool("RETRIEVAL_ENABLED", &cfg.Retrieval.Enabled)
	envInt("RETRIEVAL_DEFAULT_TOP_K", &cfg.Retrieval.DefaultTopK)
	envList("RETRIEVAL_ALLOWED_CONNECTORS", &cfg.Retrieval.AllowedConnectors)

	// Provider overrides for configured providers plus the well-known names.
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	names := []string{"openai", "anthropic"}
	for name := range cfg.Providers {
		names = append(names, name)
	}
	for _, name := range names {
		applyProviderEnvOverrides(cfg, name)
	}

	// Routing overrides
	envBool("ROUTING_COST_AWARE", &cfg.Routing.CostAware)
	envString("ROUTING_PRIMARY", &cfg.Routing.Primary)

	// Budget overrides
	envBool("BUDGET_DISABLED", &cfg.Budget.Disabled)
	envString("BUDGET_BACKEND", &cfg.Budget.Backend)
	envInt64("BUDGET_DEFAULT_CEILING", &cfg.Budget.DefaultCeiling)
	envDuration("BUDGET_WINDOW", &cfg.Budget.Window)
	envString("BUDGET_REDIS_ADDR", &cfg.Budget.Redis.Addr)
	envString("BUDGET_REDIS_PASSWORD", &cfg.Budget.Redis.Password)
	envString("BUDGET_REDIS_KEY_PREFIX", &cfg.Budget.Redis.KeyPrefix)

	// Audit overrides
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("AUDIT_PATH", &cfg.Audit.Path)

	// Webhook overrides
	envString("WEBHOOKS_DEAD_LETTER_BACKEND", &cfg.Webhooks.DeadLetter.Backend)
	envString("WEBHOOKS_DEAD_LETTER_PATH", &cfg.Webhooks.DeadLetter.Path)
	envInt("WEBHOOKS_DEAD_LETTER_RETENTION_DAYS", &cfg.Webhooks.DeadLetter.RetentionDays)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

// applyProviderEnvOverrides applies environment variable overrides for a specific provider.
// Provider environment variables follow the format SATURN_PROVIDERS_<NAME>_<FIELD>
// where NAME is the uppercase provider name with dashes replaced by underscores.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider, exists := cfg.Providers[providerName]

	key := strings.ToUpper(strings.ReplaceAll(providerName, "-", "_"))
	prefix := "PROVIDERS_" + key + "_"

	modified := false
	modified = envString(prefix+"BASE_URL", &provider.BaseURL) || modified
	modified = envString(prefix+"API_KEY", &provider.APIKey) || modified
	modified = envDuration(prefix+"TIMEOUT", &provider.Timeout) || modified
	modified = envInt(prefix+"PRIORITY", &provider.Priority) || modified
	modified = envBool(prefix+"DISABLED", &provider.Disabled) || modified

	// Only update the map if we found at least one override
	if modified || exists {
		cfg.Providers[providerName] = provider
	}
}

func envString(name string, dst *string) bool {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
		return true
	}
	return false
}

func envList(name string, dst *[]string) bool {
	val := os.Getenv(EnvPrefix + name)
	if val == "" {
		return false
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
	return true
}

func envBool(name string, dst *bool) bool {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
			return true
		}
	}
	return false
}

func envInt(name string, dst *int) bool {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
			return true
		}
	}
	return false
}

func envInt64(name string, dst *int64) bool {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
			return true
		}
	}
	return false
}

func envFloat(name string, dst *float64) bool {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
			return true
		}
	}
	return false
}

func envDuration(name string, dst *time.Duration) bool {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
			return true
		}
	}
	return false
}
