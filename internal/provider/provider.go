// Package provider maintains the live set of upstream AI services the
// gateway forwards requests to.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crusont/crusont/internal/model"
)

// Client is a live connection to one upstream provider. It is safe for
// concurrent use; the underlying http.Client pools connections.
type Client struct {
	cfg  model.Provider
	http *http.Client
}

// NewClient builds a Client for a provider definition.
func NewClient(cfg model.Provider, timeout time.Duration) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Config returns the provider definition this client was built from.
func (c *Client) Config() model.Provider {
	return c.cfg
}

// Forward relays a request body to the provider's endpoint, presenting
// the provider's own credential. The response is returned as-is so the
// caller can stream status, headers, and body back to the client;
// upstream error bodies pass through untouched.
func (c *Client) Forward(ctx context.Context, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", c.cfg.Name, err)
	}
	return resp, nil
}

// Check probes the provider's base URL for reachability.
func (c *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Resolution errors. ErrModelNotFound means no active provider serves
// the model at all; ErrEndpointMismatch means the model exists but
// belongs to a different endpoint.
var (
	ErrModelNotFound    = errors.New("model not found")
	ErrEndpointMismatch = errors.New("model not available on this endpoint")
)
