// Package httputil builds the HTTP clients used for outbound API calls so
// every caller gets the same timeout defaults and trace propagation.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultToolTimeout bounds a single tool's HTTP request.
const DefaultToolTimeout = 15 * time.Second

// NewHTTPClient returns a client with the given timeout whose transport
// creates a client span per request and injects the trace context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
