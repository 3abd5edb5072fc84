package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// Header names set on every delivery.
const (
	HeaderEvent          = "X-Saturn-Event"
	HeaderEventID        = "X-Saturn-Event-ID"
	HeaderIdempotencyKey = "X-Saturn-Idempotency-Key"
	HeaderSignature      = "X-Saturn-Signature"
	HeaderReplay         = "X-Saturn-Replay"
)

// eventNamespace scopes event ids generated by EventID.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://mercator-hq/saturn/webhook-events"))

// EventID derives a deterministic id from the event type and the canonical
// JSON of the payload, so the same event always has the same identity.
func EventID(t EventType, payload json.RawMessage) (string, error) {
	raw, err := json.Marshal(struct {
		EventType EventType       `json:"event_type"`
		Payload   json.RawMessage `json:"payload"`
	}{t, payload})
	if err != nil {
		return "", err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	return uuid.NewSHA1(eventNamespace, canon).String(), nil
}

// IdempotencyKey is sha256(endpoint_url + "|" + event_id), stable across
// retries and replays of the same event to the same endpoint.
func IdempotencyKey(endpointURL, eventID string) string {
	sum := sha256.Sum256([]byte(endpointURL + "|" + eventID))
	return hex.EncodeToString(sum[:])
}

// Sign returns the X-Saturn-Signature value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
