package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/webhook"
	"mercator-hq/saturn/pkg/webhook/deadletter"
	"mercator-hq/saturn/pkg/webhook/retention"
)

var webhookFlags struct {
	dryRun     bool
	eventTypes []string
	limit      int
	endpoint   string
	format     string
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage webhook dead letters",
	Long: `Manage webhook deliveries that exhausted their retries.

Subcommands:
  replay - Re-deliver dead-lettered events
  prune  - Drop dead letters older than the retention period`,
}

var webhookReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay dead-lettered webhook events",
	Long: `Re-deliver dead-lettered events with their original idempotency keys.
Records acknowledged with a 2xx are removed from the store; failures stay
for the next replay.

Examples:
  # Show what would be sent
  saturn webhook replay --dry-run

  # Replay budget warnings only, at most 50
  saturn webhook replay --event-type budget_warning --limit 50

  # Send everything to a different receiver
  saturn webhook replay --endpoint https://hooks.example.com/saturn`,
	RunE: replayWebhooks,
}

var webhookPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune expired dead letters",
	Long: `Delete dead-letter records older than webhooks.dead_letter.retention_days.
The gateway runs the same pruning on webhooks.dead_letter.prune_schedule.`,
	RunE: pruneWebhooks,
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookReplayCmd)
	webhookCmd.AddCommand(webhookPruneCmd)

	f := webhookReplayCmd.Flags()
	f.BoolVar(&webhookFlags.dryRun, "dry-run", false, "report what would be sent without sending")
	f.StringSliceVar(&webhookFlags.eventTypes, "event-type", nil, "replay only these event types (repeatable)")
	f.IntVar(&webhookFlags.limit, "limit", 0, "maximum records to replay (0 = all)")
	f.StringVar(&webhookFlags.endpoint, "endpoint", "", "send every record to this URL instead")
	f.StringVar(&webhookFlags.format, "format", "text", "output format: text, json")
}

// replayReport renders a replay summary as text.
type replayReport struct {
	*webhook.ReplaySummary
}

func (r replayReport) Text() string {
	var b strings.Builder
	mode := "Replayed"
	if r.DryRun {
		mode = "Dry run"
	}
	fmt.Fprintf(&b, "%s: %d of %d dead letters considered\n", mode, r.ConsideredRecords, r.TotalRecords)
	fmt.Fprintf(&b, "  Attempted: %d\n", r.Attempted)
	fmt.Fprintf(&b, "  Succeeded: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "  Failed:    %d", r.Failed)
	for _, res := range r.Results {
		fmt.Fprintf(&b, "\n  %s %s -> %s: %s", res.EventType, res.EventID, res.EndpointURL, res.Outcome)
		if res.Error != "" {
			fmt.Fprintf(&b, " (%s)", res.Error)
		}
	}
	return b.String()
}

func openDeadLetters() (*config.Config, deadletter.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	dl := cfg.Webhooks.DeadLetter
	store, err := deadletter.NewStore(dl.Backend, dl.Path, deadletter.RetentionDays(dl.RetentionDays))
	return cfg, store, err
}

func replayWebhooks(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(webhookFlags.format)
	if err != nil {
		return err
	}
	cfg, store, err := openDeadLetters()
	if err != nil {
		return cli.NewCommandError("webhook replay", err)
	}
	defer store.Close()

	replayer := webhook.NewReplayer(store, webhook.EndpointsFromConfig(cfg.Webhooks.Endpoints), cfg.Webhooks.Timeout, nil)
	summary, err := replayer.Replay(cmd.Context(),
		deadletter.Filter{EventTypes: webhookFlags.eventTypes, Limit: webhookFlags.limit},
		webhook.ReplayOptions{DryRun: webhookFlags.dryRun, EndpointOverride: webhookFlags.endpoint},
	)
	if err != nil {
		return cli.NewCommandError("webhook replay", err)
	}

	var out any = replayReport{summary}
	if format == cli.FormatJSON {
		out = summary
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return &cli.ExitError{Code: 1, Err: fmt.Errorf("%d of %d replays failed", summary.Failed, summary.Attempted)}
	}
	return nil
}

func pruneWebhooks(cmd *cobra.Command, args []string) error {
	cfg, store, err := openDeadLetters()
	if err != nil {
		return cli.NewCommandError("webhook prune", err)
	}
	defer store.Close()

	n, err := retention.NewPruner(store, retention.ConfigFrom(cfg.Webhooks.DeadLetter)).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("webhook prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d dead letters\n", n)
	return nil
}
