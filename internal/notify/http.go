package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent is sent with every webhook request.
const UserAgent = "FinTrack/1.0"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient posts webhook payloads with retry logic.
type HTTPClient struct {
	client     *http.Client
	maxRetries int
	retryDelay []time.Duration
}

// NewHTTPClient creates a client. retryDelay[i] is the wait before attempt i;
// attempts past the end of the slice reuse its last entry.
func NewHTTPClient(timeout time.Duration, maxRetries int, retryDelay []time.Duration) *HTTPClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPClient{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
}

// Retryable reports whether a later attempt may succeed: transport
// failures, rate limiting and server errors.
func (r *SendResult) Retryable() bool {
	if r.Error == nil {
		return false
	}
	return r.StatusCode == 0 || r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500
}

func (c *HTTPClient) delay(attempt int) time.Duration {
	if len(c.retryDelay) == 0 {
		return 0
	}
	if attempt >= len(c.retryDelay) {
		return c.retryDelay[len(c.retryDelay)-1]
	}
	return c.retryDelay[attempt]
}

// Send posts body to url, retrying transport failures, 429 and 5xx responses.
func (c *HTTPClient) Send(ctx context.Context, url string, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		if attempt > 0 {
			if d := c.delay(attempt); d > 0 {
				select {
				case <-ctx.Done():
					result.Error = ctx.Err()
					result.Duration = time.Since(start)
					return result
				case <-time.After(d):
				}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			// A malformed URL will not get better.
			result.Error = fmt.Errorf("failed to create request: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			result.StatusCode = 0
			result.Error = fmt.Errorf("request failed: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		result.StatusCode = resp.StatusCode

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result.Error = nil
			result.Duration = time.Since(start)
			return result
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			result.Error = fmt.Errorf("rate limited (HTTP 429)")
			continue
		}

		if resp.StatusCode >= 500 {
			result.Error = fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, string(bodyBytes))
			continue
		}

		// Client errors are not retried.
		result.Error = fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(bodyBytes))
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	if result.Error == nil {
		result.Error = fmt.Errorf("max retries exceeded")
	}
	return result
}
