package audit

import (
	"context"
)

// VerifyChain checks that events form an unbroken chain from the genesis
// hash: every prev_hash equals the preceding payload_hash and every
// payload_hash matches the event's content. It returns nil for a valid
// chain, including an empty one, and a *ChainError naming the first bad
// event otherwise.
func VerifyChain(events []Event) error {
	prev := GenesisHash
	for i, ev := range events {
		if ev.PrevHash != prev {
			return &ChainError{Index: i, EventID: ev.EventID, Reason: ReasonPrevHashMismatch, Want: prev, Got: ev.PrevHash}
		}
		want, err := PayloadHash(ev)
		if err != nil {
			return &ChainError{Index: i, EventID: ev.EventID, Reason: ReasonUnhashable, Want: "", Got: err.Error()}
		}
		if ev.PayloadHash != want {
			return &ChainError{Index: i, EventID: ev.EventID, Reason: ReasonPayloadHashMismatch, Want: want, Got: ev.PayloadHash}
		}
		prev = ev.PayloadHash
	}
	return nil
}

// VerifySink reads every event from the sink and verifies the chain. It
// returns the number of events checked.
func VerifySink(ctx context.Context, sink Sink) (int, error) {
	events, err := sink.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(events), VerifyChain(events)
}
