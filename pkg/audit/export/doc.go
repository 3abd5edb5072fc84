// Package export writes audit events as CSV or JSON Lines for offline
// review. Exports never rewrite the log; the payload_hash and prev_hash
// columns are carried so an export can be checked against the live chain.
//
//	events, _ := sink.ReadAll(ctx)
//	exp, _ := export.New("csv")
//	err := exp.Export(ctx, export.Apply(events, export.Filter{TenantID: "acme"}), os.Stdout)
package export
