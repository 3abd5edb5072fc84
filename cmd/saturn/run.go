package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the governance gateway",
	Long: `Start the governance gateway with the specified configuration.

The gateway serves /v1/chat/completions and /v1/embeddings and governs every
request through policy, redaction, retrieval, budget, routing and audit.
The configuration file is watched; token estimation and provider pricing
are reloaded in place, other changes need a restart.

Examples:
  # Start with default config
  saturn run

  # Start with custom config
  saturn run --config /etc/saturn/saturn.yaml

  # Override listen address
  saturn run --listen 0.0.0.0:8080

  # Build every component and exit
  saturn run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build every component and exit without serving")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	g, err := buildGateway(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := g.Close(closeCtx); err != nil {
			g.logger.Error("shutdown incomplete", "error", err)
		}
	}()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Gateway built; configuration valid")
		return nil
	}

	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			g.logger.Warn("config watcher not started", "error", err)
		} else {
			watcher.OnReload(g.reload)
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					g.logger.Warn("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	g.logger.Info("gateway starting",
		"version", Version,
		"config", cfgFile,
		"address", cfg.Server.ListenAddress,
		"providers", g.manager.ProviderNames(),
		"policy_mode", cfg.Policy.Mode,
		"budget_backend", cfg.Budget.Backend,
		"audit_backend", cfg.Audit.Backend,
		"started_at", time.Now().UTC().Format(time.RFC3339),
	)

	if err := g.server.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}
