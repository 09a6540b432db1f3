package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scuola/internal/router"
)

// ErrNetwork marks failures to reach the server or to read its reply.
var ErrNetwork = errors.New("network error")

const maxResponseBytes = 16 << 20

// Transport carries one serialized request and returns the raw envelope.
type Transport interface {
	RoundTrip(ctx context.Context, body []byte) ([]byte, error)
}

// HTTPTransport posts requests to a remote /api endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport targets baseURL + "/api". A nil client gets a 30s timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + "/api",
		client:   client,
	}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}
	// 4xx replies from the server still carry an envelope.
	if resp.StatusCode >= http.StatusInternalServerError || !json.Valid(raw) {
		return nil, fmt.Errorf("%w: unexpected response status %d", ErrNetwork, resp.StatusCode)
	}
	return raw, nil
}

// LocalTransport dispatches straight into an in-process router.
type LocalTransport struct {
	router *router.Router
}

func NewLocalTransport(r *router.Router) *LocalTransport {
	return &LocalTransport{router: r}
}

func (t *LocalTransport) RoundTrip(ctx context.Context, body []byte) ([]byte, error) {
	return json.Marshal(t.router.Dispatch(ctx, body))
}
