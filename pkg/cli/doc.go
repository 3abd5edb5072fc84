/*
Package cli provides helpers shared by the saturn commands.

Output Formatting:

Commands print results as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Results that implement Texter control their own text rendering.

Errors:

ConfigError and CommandError describe failures. ExitError carries a
specific process exit status, for example when audit verification finds a
broken chain.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
