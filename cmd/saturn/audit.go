package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/audit/export"
	"mercator-hq/saturn/pkg/audit/storage"
	"mercator-hq/saturn/pkg/cli"
)

// exitChainBroken is the exit status of "audit verify" on a broken chain.
const exitChainBroken = 2

var auditFlags struct {
	format    string
	requestID string

	exportFormat string
	tenant       string
	outcome      string
	since        string
	until        string
	output       string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
	Long: `Inspect and verify the hash-chained audit log configured under "audit".

Subcommands:
  verify - Recompute the hash chain and report the first broken link
  show   - Print the events recorded for one request
  export - Write events as CSV or JSON Lines`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain",
	Long: `Read every event from the configured audit sink, recompute each payload
hash and check it links to its predecessor.

Exits 0 when the chain is intact and 2 when it is broken.

Examples:
  # Verify the configured sink
  saturn audit verify

  # Machine-readable result
  saturn audit verify --format json`,
	RunE: verifyAudit,
}

var auditShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the audit events of a request",
	Long: `Print every audit event recorded for a request ID as JSON.

Examples:
  saturn audit show --request-id 0f8e2d1c-7a4b-4c4e-9d5e-3b1f0a6c2e77`,
	RunE: showAudit,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit events",
	Long: `Write audit events as CSV or JSON Lines, optionally filtered by tenant,
outcome and time range. Times are RFC3339; --until is exclusive.

Examples:
  # Export everything as CSV
  saturn audit export --format csv --output audit.csv

  # Denials for one tenant during March
  saturn audit export --tenant acme --outcome denied \
    --since 2026-03-01T00:00:00Z --until 2026-04-01T00:00:00Z`,
	RunE: exportAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditExportCmd)

	ef := auditExportCmd.Flags()
	ef.StringVar(&auditFlags.exportFormat, "format", "jsonl", "export format: csv, jsonl")
	ef.StringVar(&auditFlags.tenant, "tenant", "", "only events of this tenant")
	ef.StringVar(&auditFlags.outcome, "outcome", "", "only events with this outcome (success, denied, failed)")
	ef.StringVar(&auditFlags.since, "since", "", "only events created at or after this time")
	ef.StringVar(&auditFlags.until, "until", "", "only events created before this time")
	ef.StringVarP(&auditFlags.output, "output", "o", "", "write to file instead of stdout")

	auditVerifyCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
	auditShowCmd.Flags().StringVar(&auditFlags.requestID, "request-id", "", "request ID to look up")
	_ = auditShowCmd.MarkFlagRequired("request-id")
}

// verifyResult is the outcome of "audit verify".
type verifyResult struct {
	Backend string `json:"backend"`
	Events  int    `json:"events"`
	Intact  bool   `json:"intact"`

	BrokenIndex   *int   `json:"broken_index,omitempty"`
	BrokenEventID string `json:"broken_event_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (r *verifyResult) Text() string {
	if r.Intact {
		return fmt.Sprintf("✓ Audit chain intact (%s, %d events)", r.Backend, r.Events)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✗ Audit chain broken (%s, %d events)\n", r.Backend, r.Events)
	fmt.Fprintf(&b, "  Index:  %d\n", *r.BrokenIndex)
	fmt.Fprintf(&b, "  Event:  %s\n", r.BrokenEventID)
	fmt.Fprintf(&b, "  Reason: %s", r.Reason)
	return b.String()
}

func verifyAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := storage.NewSink(cfg.Audit)
	if err != nil {
		return cli.NewCommandError("audit verify", err)
	}
	defer sink.Close()

	n, verr := audit.VerifySink(cmd.Context(), sink)
	result := &verifyResult{Backend: cfg.Audit.Backend, Events: n, Intact: verr == nil}

	var chainErr *audit.ChainError
	switch {
	case verr == nil:
	case errors.As(verr, &chainErr):
		idx := chainErr.Index
		result.BrokenIndex = &idx
		result.BrokenEventID = chainErr.EventID
		result.Reason = chainErr.Reason
	default:
		return cli.NewCommandError("audit verify", verr)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Intact {
		return &cli.ExitError{Code: exitChainBroken, Err: verr}
	}
	return nil
}

func showAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := storage.NewSink(cfg.Audit)
	if err != nil {
		return cli.NewCommandError("audit show", err)
	}
	defer sink.Close()

	events, err := sink.FindByRequestID(cmd.Context(), auditFlags.requestID)
	if err != nil {
		return cli.NewCommandError("audit show", err)
	}
	if len(events) == 0 {
		return cli.NewCommandError("audit show", fmt.Errorf("no audit events for request %s", auditFlags.requestID))
	}
	return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), events)
}

func exportAudit(cmd *cobra.Command, args []string) error {
	exp, err := export.New(auditFlags.exportFormat)
	if err != nil {
		return err
	}
	filter := export.Filter{TenantID: auditFlags.tenant, Outcome: audit.Outcome(auditFlags.outcome)}
	if filter.Since, err = parseTimeFlag("since", auditFlags.since); err != nil {
		return err
	}
	if filter.Until, err = parseTimeFlag("until", auditFlags.until); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sink, err := storage.NewSink(cfg.Audit)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer sink.Close()

	events, err := sink.ReadAll(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if auditFlags.output != "" {
		f, err := os.Create(auditFlags.output)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer f.Close()
		w = f
	}

	selected := export.Apply(events, filter)
	if err := exp.Export(cmd.Context(), selected, w); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if auditFlags.output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d of %d events to %s\n", len(selected), len(events), auditFlags.output)
	}
	return nil
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}
