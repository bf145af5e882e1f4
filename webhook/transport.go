package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a receiver's response body is read
// and recorded on the attempt.
const maxResponseBytes = 64 * 1024

// Response is the outcome of one transport call.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Transport performs the actual HTTP call for a delivery attempt. It is
// an interface so tests can substitute a scripted transport.
type Transport interface {
	// Send issues the request and returns the response, or an error on
	// network failure or timeout. A non-2xx status code is not an error
	// at this layer; the handler interprets status codes.
	Send(ctx context.Context, url, method string, body []byte, headers map[string]string, timeout time.Duration) (*Response, error)
}

// HTTPTransport is the production Transport on net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport backed by the given client. A nil
// client uses a dedicated default. Per-attempt timeouts come from the
// request context, not the client.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, url, method string, body []byte, headers map[string]string, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}
