package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/audit"
	"mercator-hq/saturn/pkg/audit/storage"
	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
)

// writeTestConfig writes a config whose audit log and dead letters live in
// a temp dir and returns its path and the audit log path.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	body := fmt.Sprintf(`
server:
  listen_address: "127.0.0.1:0"
providers:
  stub:
    type: stub
audit:
  backend: file
  path: %q
webhooks:
  dead_letter:
    backend: jsonl
    path: %q
`, auditPath, filepath.Join(dir, "dead_letter.jsonl"))

	path := filepath.Join(dir, "saturn.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path, auditPath
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedAudit(t *testing.T, path string, n int) {
	t.Helper()
	sink, err := storage.NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := audit.NewWriter(context.Background(), sink, audit.Options{Backend: "file", AppendTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if _, err := w.Append(context.Background(), audit.Event{
			RequestID: fmt.Sprintf("req-%d", i),
			TenantID:  "acme",
			Endpoint:  "chat",
			Outcome:   audit.OutcomeSuccess,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateCommand(t *testing.T) {
	path, _ := writeTestConfig(t)

	out, err := execute(t, "validate", "--config", path, "--format", "json")
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}

	var summary configSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if summary.Config != path {
		t.Errorf("config = %q, want %q", summary.Config, path)
	}
	if len(summary.Providers) != 1 || summary.Providers[0] != "stub" {
		t.Errorf("providers = %v", summary.Providers)
	}
	if summary.AuditBackend != "file" {
		t.Errorf("audit backend = %q", summary.AuditBackend)
	}
	if summary.PolicySource != "local" {
		t.Errorf("policy source = %q", summary.PolicySource)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("policy:\n  mode: audit-only\nproviders:\n  stub:\n    type: stub\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "validate", "--config", path, "--format", "text")
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *cli.ConfigError", err)
	}
}

func TestAuditVerifyCommand(t *testing.T) {
	path, auditPath := writeTestConfig(t)
	seedAudit(t, auditPath, 3)

	out, err := execute(t, "audit", "verify", "--config", path, "--format", "text")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "intact") || !strings.Contains(out, "3 events") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestAuditVerifyCommand_Tampered(t *testing.T) {
	path, auditPath := writeTestConfig(t)
	seedAudit(t, auditPath, 3)

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"tenant_id":"acme"`, `"tenant_id":"evil"`, 1)
	if err := os.WriteFile(auditPath, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "audit", "verify", "--config", path, "--format", "json")

	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != exitChainBroken {
		t.Fatalf("err = %v, want exit status %d", err, exitChainBroken)
	}
	if !errors.Is(err, audit.ErrChainBroken) {
		t.Errorf("err = %v, want ErrChainBroken in chain", err)
	}

	var result verifyResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Intact || result.BrokenIndex == nil || *result.BrokenIndex != 1 {
		t.Errorf("result = %+v, want broken at index 1", result)
	}
}

func TestAuditShowCommand(t *testing.T) {
	path, auditPath := writeTestConfig(t)
	seedAudit(t, auditPath, 2)

	out, err := execute(t, "audit", "show", "--config", path, "--request-id", "req-1")
	if err != nil {
		t.Fatalf("show: %v\n%s", err, out)
	}
	var events []audit.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(events) != 1 || events[0].RequestID != "req-1" {
		t.Errorf("events = %+v", events)
	}

	if _, err := execute(t, "audit", "show", "--config", path, "--request-id", "missing"); err == nil {
		t.Error("expected error for unknown request id")
	}
}

func TestWebhookReplayCommand_Empty(t *testing.T) {
	path, _ := writeTestConfig(t)

	out, err := execute(t, "webhook", "replay", "--config", path, "--dry-run", "--format", "text")
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Dry run: 0 of 0") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRunCommand_DryRun(t *testing.T) {
	path, _ := writeTestConfig(t)
	defer func() { runFlags.dryRun = false }()

	out, err := execute(t, "run", "--config", path, "--dry-run")
	if err != nil {
		t.Fatalf("run --dry-run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Gateway built") {
		t.Errorf("unexpected output: %s", out)
	}
	if config.GetConfig() == nil {
		t.Error("run should install the loaded config")
	}
}

func TestAuditExportCommand(t *testing.T) {
	path, auditPath := writeTestConfig(t)
	seedAudit(t, auditPath, 3)
	defer func() { auditFlags.output, auditFlags.tenant, auditFlags.since = "", "", "" }()

	out, err := execute(t, "audit", "export", "--config", path, "--format", "csv")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "event_id,") {
		t.Errorf("want header + 3 rows, got:\n%s", out)
	}

	dest := filepath.Join(t.TempDir(), "audit.jsonl")
	out, err = execute(t, "audit", "export", "--config", path, "--format", "jsonl", "--tenant", "nobody", "--output", dest)
	if err != nil {
		t.Fatalf("export to file: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Exported 0 of 3 events") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := execute(t, "audit", "export", "--config", path, "--output", "", "--since", "yesterday"); err == nil {
		t.Error("expected error for invalid --since")
	}
}
