// Package config provides configuration management for Mercator Saturn.
//
// Configuration is read from a YAML file, completed with defaults, optionally
// overridden from the environment, and validated as a whole:
//
//	cfg, err := config.LoadConfig("saturn.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("saturn.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SATURN_SECTION_FIELD:
//
//   - SATURN_POLICY_URL overrides policy.url
//   - SATURN_BUDGET_REDIS_ADDR overrides budget.redis.addr
//   - SATURN_PROVIDERS_OPENAI_API_KEY overrides providers.openai.api_key
//
// # Validation
//
// Validate collects every FieldError into one ValidationError so an operator
// sees all problems at once.
//
// # Reloading
//
// The pipeline reads configuration once at construction. Watcher reloads the
// global configuration when the file changes and notifies callbacks; running
// components are not reconfigured.
package config
