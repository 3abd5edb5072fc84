// Package logging builds the process logger on log/slog.
//
// New returns a *slog.Logger whose handler adds the request_id, tenant_id
// and user_id stored in the record's context:
//
//	ctx = logging.WithRequestID(ctx, rc.RequestID)
//	slog.InfoContext(ctx, "request completed", "outcome", "success")
//
// With redact_pii enabled, string attributes are scrubbed by the same
// redaction rule set the pipeline applies to prompts, so an email address
// logged by mistake is written as [EMAIL_REDACTED]. Attributes named
// api_key, authorization, password, secret or token are always masked.
package logging
