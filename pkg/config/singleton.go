package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// globalConfig holds the singleton configuration instance.
	globalConfig atomic.Pointer[Config]

	// initMu serializes Initialize so only the first call loads.
	initMu      sync.Mutex
	initialized bool
)

// Initialize loads configuration from the specified path with environment
// variable overrides and stores it as the global configuration.
// Only the first successful call loads; later calls are ignored.
func Initialize(path string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return nil
	}

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	globalConfig.Store(cfg)
	initialized = true
	return nil
}

// GetConfig returns the global configuration instance, or nil when
// Initialize has not succeeded. Safe for concurrent use.
//
// Core components take their configuration as constructor arguments;
// this accessor exists for the command layer.
func GetConfig() *Config {
	return globalConfig.Load()
}

// SetConfig sets the global configuration instance. Intended for tests.
func SetConfig(cfg *Config) {
	globalConfig.Store(cfg)
}

// ReloadConfig reloads the configuration from the specified path. The
// global instance is replaced only when loading and validation succeed.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	globalConfig.Store(cfg)
	return nil
}

// MustGetConfig returns the global configuration instance.
// It panics if the configuration has not been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// resetForTest clears the singleton state.
func resetForTest() {
	initMu.Lock()
	defer initMu.Unlock()
	initialized = false
	globalConfig.Store(nil)
}
