package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration with SATURN_* overrides applied, validate it and
print what the gateway would run with.

Examples:
  # Validate the default config
  saturn validate

  # Validate a specific file and print JSON
  saturn validate --config /etc/saturn/saturn.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// configSummary is what validate reports about a loaded configuration.
type configSummary struct {
	Config         string   `json:"config"`
	ListenAddress  string   `json:"listen_address"`
	PolicySource   string   `json:"policy_source"`
	PolicyMode     string   `json:"policy_mode"`
	Providers      []string `json:"providers"`
	Retrieval      bool     `json:"retrieval"`
	Connectors     int      `json:"connectors"`
	BudgetBackend  string   `json:"budget_backend"`
	AuditBackend   string   `json:"audit_backend"`
	AuditPath      string   `json:"audit_path,omitempty"`
	Webhooks       int      `json:"webhooks"`
	DeadLetterPath string   `json:"dead_letter_path"`
}

func summarize(path string, cfg *config.Config) *configSummary {
	s := &configSummary{
		Config:         path,
		ListenAddress:  cfg.Server.ListenAddress,
		PolicySource:   "local",
		PolicyMode:     cfg.Policy.Mode,
		Retrieval:      cfg.Retrieval.Enabled,
		Connectors:     len(cfg.Retrieval.Connectors),
		BudgetBackend:  cfg.Budget.Backend,
		AuditBackend:   cfg.Audit.Backend,
		AuditPath:      cfg.Audit.Path,
		Webhooks:       len(cfg.Webhooks.Endpoints),
		DeadLetterPath: cfg.Webhooks.DeadLetter.Path,
	}
	if cfg.Policy.URL != "" {
		s.PolicySource = cfg.Policy.URL
	}
	if cfg.Budget.Disabled {
		s.BudgetBackend = "disabled"
	}
	for name, pc := range cfg.Providers {
		if !pc.Disabled {
			s.Providers = append(s.Providers, name)
		}
	}
	sort.Strings(s.Providers)
	return s
}

func (s *configSummary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Configuration valid: %s\n", s.Config)
	fmt.Fprintf(&b, "  Listen:      %s\n", s.ListenAddress)
	fmt.Fprintf(&b, "  Policy:      %s (%s)\n", s.PolicySource, s.PolicyMode)
	fmt.Fprintf(&b, "  Providers:   %s\n", strings.Join(s.Providers, ", "))
	if s.Retrieval {
		fmt.Fprintf(&b, "  Retrieval:   %d connectors\n", s.Connectors)
	} else {
		b.WriteString("  Retrieval:   disabled\n")
	}
	fmt.Fprintf(&b, "  Budget:      %s\n", s.BudgetBackend)
	fmt.Fprintf(&b, "  Audit:       %s %s\n", s.AuditBackend, s.AuditPath)
	fmt.Fprintf(&b, "  Webhooks:    %d endpoints, dead letters at %s", s.Webhooks, s.DeadLetterPath)
	return b.String()
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), summarize(cfgFile, cfg))
}
