// Package webhook delivers governance events to HTTP receivers.
//
// A Dispatcher owns a fixed pool of workers fed by a bounded queue.
// Dispatch returns immediately with one Outcome per subscribed endpoint;
// workers POST a JSON Envelope, retry 429 and 5xx answers with exponential
// backoff, and write exhausted deliveries to a deadletter.Store. Events
// that cannot be queued are dead-lettered synchronously.
//
// Every delivery carries:
//
//	X-Saturn-Event            event type
//	X-Saturn-Event-ID         deterministic id derived from type and payload
//	X-Saturn-Idempotency-Key  sha256(endpoint_url + "|" + event_id)
//	X-Saturn-Signature        sha256=<hex HMAC of the body>, when a secret is set
//
// A Replayer re-sends dead letters with the original idempotency key and
// X-Saturn-Replay: true, deleting each record once a receiver acknowledges it.
package webhook
