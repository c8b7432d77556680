package influxdb

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Transport issues the HTTP POST for a write.
//
// Implementations return either a response or an error. The caller closes
// the response body.
type Transport interface {
	Post(ctx context.Context, url, body string, header http.Header) (*http.Response, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport whose requests time out after
// timeout. Zero means no client-side timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Post implements Transport.
func (t *HTTPTransport) Post(ctx context.Context, url, body string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()

	return t.client.Do(req)
}

// buildHeader returns the fixed header set sent with every write.
func buildHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Encoding", "identity")
	h.Set("Accept", "application/json")
	if token != "" {
		h.Set("Authorization", "Token "+token)
	}
	return h
}
