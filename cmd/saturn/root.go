package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Saturn - in-path governance gateway for LLM traffic",
	Long: `Saturn sits between applications and LLM providers and enforces
governance on every request:
  - Policy decisions from an external decision service (fail-closed)
  - PII/PHI redaction of prompts, retrieved context and responses
  - Policy-authorized retrieval with verified citations
  - Per-tenant token budgets, enforced mid-stream
  - Provider fallback routing
  - A tamper-evident, hash-chained audit log
  - Governance webhooks with dead-letter replay`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. An *cli.ExitError sets the exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "saturn.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration file with SATURN_* overrides applied
// and installs it as the global configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.SetConfig(cfg)
	return cfg, nil
}
