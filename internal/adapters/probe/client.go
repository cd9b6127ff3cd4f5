// Package probe provides the HTTP client the verifier uses to fetch health
// documents from freshly deployed containers.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds each health fetch. A poll attempt should fail fast
// and leave waiting to the verifier's own delay.
const DefaultTimeout = 5 * time.Second

// Client implements ports.HealthClient on top of net/http.
type Client struct {
	http *http.Client
}

// NewClient creates a health client with the given per-request timeout.
// A zero timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Get fetches url and returns the body. Any transport error or non-2xx
// status is an error; the verifier does not distinguish between them.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("health endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read health response: %w", err)
	}
	return body, nil
}
