// Package audit keeps the tamper-evident record of every governed request.
//
// Each request produces exactly one Event whatever its outcome. Events form
// a hash chain: payload_hash is the sha256 of the event's RFC 8785
// canonical JSON (without payload_hash), and prev_hash is the payload_hash
// of the event before it. The first event links to GenesisHash.
//
// A single Writer goroutine owns the chain head:
//
//	sink, err := storage.NewSink(cfg.Audit)
//	if err != nil {
//	    return err
//	}
//	writer, err := audit.NewWriter(ctx, sink, audit.Options{Backend: cfg.Audit.Backend})
//	if err != nil {
//	    return err
//	}
//	defer writer.Close()
//
//	ev, err := writer.Append(ctx, audit.Event{RequestID: id, Outcome: audit.OutcomeSuccess})
//
// A failed persist returns *StorageError and leaves the head where it was,
// so the chain never references an event that is not on disk.
//
// VerifyChain recomputes every hash and reports the first break as a
// *ChainError.
package audit
