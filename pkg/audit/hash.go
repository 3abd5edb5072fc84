package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonical returns the RFC 8785 canonical form of the event without its
// payload_hash.
func Canonical(ev Event) ([]byte, error) {
	ev.PayloadHash = ""
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize event: %w", err)
	}
	return canon, nil
}

// PayloadHash computes the hex sha256 of the event's canonical form.
func PayloadHash(ev Event) (string, error) {
	canon, err := Canonical(ev)
	if err != nil {
		return "", err
	}
	return HashBytes(canon), nil
}

// HashBytes returns the hex sha256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashJSON returns the hex sha256 of the canonical JSON form of v. It is
// used for request and provider payload hashes. An unmarshalable value
// hashes to the empty string.
func HashJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return ""
	}
	return HashBytes(canon)
}
