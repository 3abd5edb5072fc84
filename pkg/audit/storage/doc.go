// Package storage provides sinks for the audit chain.
//
//   - FileSink: append-only JSONL, fsync per append (default)
//   - SQLiteSink: append-only table with a request_id index; update and
//     delete are refused by triggers
//   - MemorySink: tests and local runs
//
// NewSink selects one from config.AuditConfig. The sqlite sink stores the
// exact JSON body that was hashed, so a verify pass reads back the same
// content that was chained.
package storage
