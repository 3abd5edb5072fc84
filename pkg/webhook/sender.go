package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// sender performs single POST attempts.
type sender struct {
	client  *http.Client
	timeout time.Duration
}

// post sends body once and returns the status code. A transport error
// returns status 0.
func (s sender) post(ctx context.Context, url string, body []byte, header http.Header) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header = header.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func successStatus(code int) bool {
	return code >= 200 && code < 300
}

// retryableStatus reports whether a non-2xx answer is worth another try.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func deliveryHeader(env Envelope, idempotencyKey, secret string, body []byte) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", "saturn-webhook/"+env.Version)
	h.Set(HeaderEvent, string(env.EventType))
	h.Set(HeaderEventID, env.EventID)
	h.Set(HeaderIdempotencyKey, idempotencyKey)
	if secret != "" {
		h.Set(HeaderSignature, Sign(secret, body))
	}
	return h
}
