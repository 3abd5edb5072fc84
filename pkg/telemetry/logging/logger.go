package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/redaction"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in plain text format.
	FormatText LogFormat = "text"
	// FormatConsole outputs logs in human-readable console format.
	FormatConsole LogFormat = "console"
)

// Options configure New.
type Options struct {
	// Writer is the output writer (defaults to os.Stdout).
	Writer io.Writer

	// Redactor scrubs string attributes when the configuration enables
	// redact_pii. It is normally the same engine the pipeline uses.
	Redactor *redaction.Engine
}

// New builds a slog.Logger from configuration. Every record carries the
// request, tenant and user ids found in its context.
//
//	logger, err := logging.New(cfg.Telemetry.Logging, logging.Options{Redactor: engine})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
func New(cfg config.LoggingConfig, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch format {
	case FormatText, FormatConsole:
		handler = slog.NewTextHandler(writer, hopts)
	default:
		handler = slog.NewJSONHandler(writer, hopts)
	}

	if cfg.RedactPII {
		if opts.Redactor == nil {
			return nil, fmt.Errorf("redact_pii requires a redaction engine")
		}
		handler = NewRedactingHandler(handler, opts.Redactor)
	}
	handler = &contextHandler{next: handler}

	return slog.New(handler), nil
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (LogFormat, error) {
	switch f := LogFormat(strings.ToLower(formatStr)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatText, FormatConsole:
		return f, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", formatStr)
	}
}
