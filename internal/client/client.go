// Package client implements the catalog service contracts over the /v1 HTTP
// API, so the console controllers can drive a remote twin exactly as they
// drive an in-process catalog.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/aggregate"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// APIError is a non-2xx response. It unwraps to the matching catalog
// sentinel so callers can keep using errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code back onto a catalog error.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return catalog.ErrNotFound
	case e.Status == http.StatusUnprocessableEntity:
		if strings.Contains(e.Message, catalog.ErrInvalidReference.Error()) {
			return catalog.ErrInvalidReference
		}
		return catalog.ErrValidation
	case e.Status == http.StatusConflict:
		return catalog.ErrConflict
	case e.Status >= 500:
		return catalog.ErrStoreOperationFailed
	}
	return nil
}

// Client talks to a twin's /v1 API.
type Client struct {
	base    string
	http    *http.Client
	token   string
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithRetries retries transport errors and 5xx responses n more times.
// POSTs reuse their Idempotency-Key across attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken changes the session token, e.g. after an OTP login.
func (c *Client) SetToken(token string) { c.token = token }

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	var idemKey string
	if method == http.MethodPost {
		idemKey = uuid.NewString()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			c.logger.Warn("retrying request", "method", method, "path", path, "attempt", attempt, "err", lastErr)
		}
		lastErr = c.once(ctx, method, path, body, idemKey, out)
		if !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, idemKey string, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Summary fetches GET /v1/summary.
func (c *Client) Summary(ctx context.Context) (aggregate.Summary, error) {
	var s aggregate.Summary
	err := c.do(ctx, http.MethodGet, "/v1/summary", nil, &s)
	return s, err
}

// Grouped fetches GET /v1/subcategories?grouped=true.
func (c *Client) Grouped(ctx context.Context) (aggregate.Groups, error) {
	var resp struct {
		Groups aggregate.Groups `json:"groups"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/subcategories?grouped=true", nil, &resp)
	return resp.Groups, err
}

// RequestOTP asks the twin to issue a login code for phone.
func (c *Client) RequestOTP(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/otp", map[string]string{"phone": phone}, nil)
}

// VerifyOTP exchanges a code for a session token and starts using it.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/otp/verify", map[string]string{"phone": phone, "code": code}, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}
