package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 512

// HTTPProvider is the base implementation for HTTP-based provider adapters.
// It provides connection pooling, timeout handling, status mapping and
// passive health tracking. Concrete adapters embed it.
type HTTPProvider struct {
	config ProviderConfig
	client *http.Client
	health *healthTracker
	logger *slog.Logger
}

// NewHTTPProvider creates a new base HTTP provider with connection pooling.
func NewHTTPProvider(config ProviderConfig) *HTTPProvider {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPProvider{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		health: newHealthTracker(),
		logger: slog.Default().With("component", "providers."+config.Name),
	}
}

// Name returns the provider's configured name.
func (p *HTTPProvider) Name() string {
	return p.config.Name
}

// Config returns the provider's configuration.
func (p *HTTPProvider) Config() ProviderConfig {
	return p.config
}

// Health returns passive health information.
func (p *HTTPProvider) Health() ProviderHealth {
	return p.health.snapshot()
}

// Logger returns the provider's component logger.
func (p *HTTPProvider) Logger() *slog.Logger {
	return p.logger
}

// DoRequest performs exactly one HTTP request and maps failures onto the
// package's typed errors:
//
//   - transport timeout or deadline: *TimeoutError (503)
//   - other transport failure: *ConnectionError (502)
//   - 429: *RateLimitError
//   - any other status >= 400: *ProviderError with the status
//
// A cancelled caller context is returned as-is.
func (p *HTTPProvider) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	p.logger.Debug("sending request to provider", "method", method, "url", url)

	resp, err := p.client.Do(req)
	if err != nil {
		mapped := p.mapTransportError(ctx, err)
		p.health.record(false, mapped)
		return nil, mapped
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.health.record(true, nil)
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	var statusErr error
	if resp.StatusCode == http.StatusTooManyRequests {
		statusErr = &RateLimitError{
			Provider:   p.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}
	} else {
		statusErr = &ProviderError{
			Provider:   p.config.Name,
			StatusCode: resp.StatusCode,
			Message:    string(errorBody),
		}
	}
	p.health.record(false, statusErr)

	p.logger.Warn("provider returned error status", "status", resp.StatusCode)
	return nil, statusErr
}

func (p *HTTPProvider) mapTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Provider: p.config.Name, Timeout: p.config.Timeout, Cause: err}
	}
	return &ConnectionError{Provider: p.config.Name, Cause: err}
}

// DoJSONRequest performs a JSON request and decodes the response.
func (p *HTTPProvider) DoJSONRequest(ctx context.Context, method, url string, reqBody interface{}, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := p.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Provider: p.config.Name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Provider:    p.config.Name,
				RawResponse: truncate(string(responseBytes), maxErrorBody),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Close closes idle pooled connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	p.logger.Info("provider closed")
	return nil
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
