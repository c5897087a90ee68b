package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/session"
)

// Health checks GET /admin/health.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unhealthy: status %q", resp.Status)
	}
	return nil
}

// Reset calls POST /admin/reset, restoring the twin's seed data.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/reset", nil, nil)
}

// State returns the twin's full state from GET /admin/state.
func (c *Client) State(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/admin/state", nil, &raw)
	return raw, err
}

// LoadState replaces the twin's state with data via POST /admin/state.
func (c *Client) LoadState(ctx context.Context, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("state is not valid JSON")
	}
	return c.do(ctx, http.MethodPost, "/admin/state", json.RawMessage(data), nil)
}

// Seed loads the state in the JSON file at path.
func (c *Client) Seed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	return c.LoadState(ctx, data)
}

// Config returns the runtime config from GET /admin/config.
func (c *Client) Config(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/admin/config", nil, &out)
	return out, err
}

// UpdateConfig applies updates via PUT /admin/config and returns the
// resulting config.
func (c *Client) UpdateConfig(ctx context.Context, updates map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodPut, "/admin/config", updates, &out)
	return out, err
}

// InjectOpFault fails the next count calls of op, e.g. "products.update".
// count 0 fails every call until ClearOpFault.
func (c *Client) InjectOpFault(ctx context.Context, op string, count int) error {
	return c.do(ctx, http.MethodPost, "/admin/ops/"+url.PathEscape(op)+"/fault", map[string]int{"count": count}, nil)
}

// ClearOpFault removes an injected operation fault.
func (c *Client) ClearOpFault(ctx context.Context, op string) error {
	return c.do(ctx, http.MethodDelete, "/admin/ops/"+url.PathEscape(op)+"/fault", nil, nil)
}

// OTPCodes lists pending login codes, filtered to phone when non-empty.
func (c *Client) OTPCodes(ctx context.Context, phone string) ([]session.Challenge, error) {
	path := "/admin/otp"
	if phone != "" {
		path += "?phone=" + url.QueryEscape(phone)
	}
	var resp struct {
		Codes []session.Challenge `json:"codes"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Codes, err
}
