package ports

import "context"

// HealthClient fetches a service's health document over HTTP.
type HealthClient interface {
	// Get issues a GET to url and returns the response body. Transport
	// failures and non-2xx statuses are both reported as errors.
	Get(ctx context.Context, url string) ([]byte, error)
}
