// Package testutil runs a seeded qwikbasket twin inside a test and gives
// it a small HTTP client with assertion helpers.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/app"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/config"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

// Harness is a running twin plus clients pointed at it.
type Harness struct {
	App    *app.App
	Server *httptest.Server
	Client *Client
	Admin  *Admin
}

// StartTwin serves a seeded, zero-latency twin until the test ends.
// mutate, if non-nil, edits the config before the twin is built.
func StartTwin(tb testing.TB, mutate func(*config.Config)) *Harness {
	tb.Helper()
	cfg := config.Default()
	cfg.Latency = 0
	cfg.EnvFile = ""
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(tb, cfg.Validate(), "twin config")

	a, err := app.Build(&cfg, app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(tb, err, "building twin")
	srv := httptest.NewServer(a.Twin)
	tb.Cleanup(srv.Close)

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client(), tb: tb}
	return &Harness{App: a, Server: srv, Client: c, Admin: &Admin{c}}
}

// Client calls a twin and fails the test on transport errors.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string // sent as a Bearer token when set
	tb      testing.TB
}

// NewClient points a client at any base URL, e.g. a twin started with qb.
func NewClient(tb testing.TB, baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient, tb: tb}
}

// RequestOption edits an outgoing request.
type RequestOption func(*http.Request)

// Header sets a request header.
func Header(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// IdempotencyKey marks a POST as retry-safe.
func IdempotencyKey(key string) RequestOption {
	return Header(twincore.IdempotencyHeader, key)
}

// Do sends body, if non-nil, as JSON and returns the buffered response.
func (c *Client) Do(method, path string, body any, opts ...RequestOption) *Response {
	c.tb.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.tb, err, "encoding request body")
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, rd)
	require.NoError(c.tb, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for _, o := range opts {
		o(req)
	}

	resp, err := c.HTTP.Do(req)
	require.NoError(c.tb, err, "%s %s", method, path)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.tb, err)
	return &Response{Status: resp.StatusCode, Body: data, Header: resp.Header, tb: c.tb}
}

func (c *Client) Get(path string, opts ...RequestOption) *Response {
	c.tb.Helper()
	return c.Do(http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(path string, body any, opts ...RequestOption) *Response {
	c.tb.Helper()
	return c.Do(http.MethodPost, path, body, opts...)
}

func (c *Client) Patch(path string, body any, opts ...RequestOption) *Response {
	c.tb.Helper()
	return c.Do(http.MethodPatch, path, body, opts...)
}

func (c *Client) Put(path string, body any, opts ...RequestOption) *Response {
	c.tb.Helper()
	return c.Do(http.MethodPut, path, body, opts...)
}

func (c *Client) Delete(path string, opts ...RequestOption) *Response {
	c.tb.Helper()
	return c.Do(http.MethodDelete, path, nil, opts...)
}

// Login requests a code for phone, reads it back from /admin/otp and keeps
// the issued token for later calls.
func (c *Client) Login(phone string) {
	c.tb.Helper()
	c.Post("/v1/auth/otp", map[string]string{"phone": phone}).AssertStatus(http.StatusCreated)

	var pending struct {
		Codes []struct {
			Code string `json:"code"`
		} `json:"codes"`
	}
	c.Get("/admin/otp?phone=" + url.QueryEscape(phone)).AssertStatus(http.StatusOK).Decode(&pending)
	require.Len(c.tb, pending.Codes, 1, "pending codes for %s", phone)

	var tok struct {
		Token string `json:"token"`
	}
	c.Post("/v1/auth/otp/verify", map[string]string{"phone": phone, "code": pending.Codes[0].Code}).
		AssertStatus(http.StatusOK).Decode(&tok)
	c.Token = tok.Token
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
	tb     testing.TB
}

// Decode unmarshals the body into v or fails the test.
func (r *Response) Decode(v any) {
	r.tb.Helper()
	require.NoError(r.tb, json.Unmarshal(r.Body, v), "body: %s", r.Body)
}

// Map decodes a JSON object body.
func (r *Response) Map() map[string]any {
	r.tb.Helper()
	m := map[string]any{}
	r.Decode(&m)
	return m
}

func (r *Response) AssertStatus(want int) *Response {
	r.tb.Helper()
	assert.Equal(r.tb, want, r.Status, "body: %s", r.Body)
	return r
}

func (r *Response) AssertContains(substr string) *Response {
	r.tb.Helper()
	assert.Contains(r.tb, string(r.Body), substr)
	return r
}

// AssertErrorCode checks an {"error":{"code":N}} envelope.
func (r *Response) AssertErrorCode(code int) *Response {
	r.tb.Helper()
	var env struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if assert.NoError(r.tb, json.Unmarshal(r.Body, &env), "body: %s", r.Body) {
		assert.Equal(r.tb, code, env.Error.Code, "body: %s", r.Body)
	}
	return r
}

// Admin drives the /admin control plane.
type Admin struct{ *Client }

func (a *Admin) Health() *Response { return a.Get("/admin/health") }
func (a *Admin) Reset() *Response  { return a.Post("/admin/reset", nil) }
func (a *Admin) State() *Response  { return a.Get("/admin/state") }

// LoadState replaces the twin's state with st.
func (a *Admin) LoadState(st any) *Response { return a.Post("/admin/state", st) }

func faultPath(method, path string) string {
	p := "/admin/fault/" + strings.TrimPrefix(path, "/")
	if method != "" {
		p += "?method=" + url.QueryEscape(method)
	}
	return p
}

// Fault injects an HTTP fault for path, limited to method when non-empty.
// A path ending in "/*" covers everything below it.
func (a *Admin) Fault(method, path string, f twincore.FaultConfig) *Response {
	return a.Post(faultPath(method, path), f)
}

func (a *Admin) ClearFault(method, path string) *Response {
	return a.Delete(faultPath(method, path))
}

// OpFault fails the next count calls of a store operation such as
// "products.update". count 0 fails until cleared.
func (a *Admin) OpFault(op string, count int) *Response {
	return a.Post("/admin/ops/"+url.PathEscape(op)+"/fault", map[string]int{"count": count})
}

func (a *Admin) ClearOpFault(op string) *Response {
	return a.Delete("/admin/ops/" + url.PathEscape(op) + "/fault")
}

// Requests reads the request log through the given filter.
func (a *Admin) Requests(f twincore.RequestFilter) []twincore.RequestLogEntry {
	a.tb.Helper()
	q := url.Values{}
	if f.Method != "" {
		q.Set("method", f.Method)
	}
	if f.PathPrefix != "" {
		q.Set("path", f.PathPrefix)
	}
	for k, v := range map[string]int{"status": f.Status, "limit": f.Limit} {
		if v > 0 {
			q.Set(k, strconv.Itoa(v))
		}
	}
	path := "/admin/requests"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []twincore.RequestLogEntry
	a.Get(path).AssertStatus(http.StatusOK).Decode(&out)
	return out
}

func (a *Admin) FlushWebhooks() *Response { return a.Post("/admin/webhooks/flush", nil) }

// Advance moves simulated time forward by a Go duration string.
func (a *Admin) Advance(d string) *Response {
	return a.Post("/admin/time/advance", map[string]string{"duration": d})
}

func (a *Admin) Config() *Response { return a.Get("/admin/config") }

func (a *Admin) SetConfig(updates map[string]any) *Response {
	return a.Put("/admin/config", updates)
}
