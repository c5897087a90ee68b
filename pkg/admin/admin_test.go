package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/twin-qwikbasket/pkg/store"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

type fakeState struct {
	data   map[string]string
	resets int
}

func (s *fakeState) Snapshot() any { return s.data }

func (s *fakeState) LoadState(data []byte) error {
	var d map[string]string
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	s.data = d
	return nil
}

func (s *fakeState) Reset() {
	s.resets++
	s.data = map[string]string{"seed": "yes"}
}

type fakeFlusher struct {
	err   error
	calls int
}

func (f *fakeFlusher) FlushWebhooks() error {
	f.calls++
	return f.err
}

type fakeConfig struct{ values map[string]any }

func (c *fakeConfig) GetConfig() map[string]any { return c.values }

func (c *fakeConfig) UpdateConfig(u map[string]any) error {
	if v, ok := u["fail_rate"].(float64); ok && v > 1 {
		return errors.New("fail_rate must be between 0.0 and 1.0")
	}
	for k, v := range u {
		c.values[k] = v
	}
	return nil
}

type fakeOps struct{ faults map[string]int }

func (o *fakeOps) InjectFault(op string, n int) { o.faults[op] = n }
func (o *fakeOps) ClearFault(op string)         { delete(o.faults, op) }

type fixture struct {
	srv   *httptest.Server
	state *fakeState
	mw    *twincore.Middleware
	clock *store.Clock
	h     *Handler
}

func newFixture(t *testing.T, withClock bool) *fixture {
	t.Helper()
	f := &fixture{
		state: &fakeState{data: map[string]string{"seed": "yes"}},
		mw:    twincore.NewMiddleware(nil),
	}
	if withClock {
		f.clock = store.NewClock()
	}
	f.h = NewHandler(f.state, f.mw, f.clock)
	r := chi.NewRouter()
	f.h.Routes(r)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) call(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	status, body := f.call(t, http.MethodGet, "/admin/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime")
}

func TestResetRestoresEverything(t *testing.T) {
	f := newFixture(t, true)
	f.clock.Advance(48 * time.Hour)
	f.state.data = map[string]string{"changed": "1"}
	f.mw.ReqLog.Add(twincore.RequestLogEntry{Method: "GET", Path: "/v1/orders"})
	f.mw.Faults.Set("/v1/orders", twincore.FaultConfig{StatusCode: 500})
	f.mw.Idempotent.Store("/v1/products|k1", twincore.Fingerprint(nil), 201, []byte(`{}`))

	status, body := f.call(t, http.MethodPost, "/admin/reset", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reset", body["status"])
	assert.Equal(t, 1, f.state.resets)
	assert.Equal(t, map[string]string{"seed": "yes"}, f.state.data)
	assert.Zero(t, f.clock.Offset())
	assert.Empty(t, f.mw.Faults.All())
	assert.Zero(t, f.mw.Idempotent.Len())
	// the reset request itself is not logged: the handler is not behind RequestLog here
	assert.Zero(t, f.mw.ReqLog.Len())
}

func TestResetWithoutClock(t *testing.T) {
	f := newFixture(t, false)
	status, _ := f.call(t, http.MethodPost, "/admin/reset", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestStateRoundTrip(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.call(t, http.MethodGet, "/admin/state", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "yes", body["seed"])

	status, _ = f.call(t, http.MethodPost, "/admin/state", `{"foo":"bar"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bar", f.state.data["foo"])

	status, body = f.call(t, http.MethodPost, "/admin/state", "{bad json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "error")
	assert.Equal(t, "bar", f.state.data["foo"], "failed load leaves state alone")
}

func TestInjectAndRemoveFault(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.call(t, http.MethodPost, "/admin/fault/v1/products", `{"status_code":503}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/v1/products", body["endpoint"])
	fault := f.mw.Faults.Check(http.MethodGet, "/v1/products")
	require.NotNil(t, fault)
	assert.Equal(t, 503, fault.StatusCode)
	assert.Equal(t, 1.0, fault.Rate)

	status, body = f.call(t, http.MethodPost, "/admin/fault/v1/products/*?method=patch", `{"status_code":409,"times":1}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PATCH /v1/products/*", body["endpoint"])
	assert.NotNil(t, f.mw.Faults.Check(http.MethodPatch, "/v1/products/3"))
	assert.Nil(t, f.mw.Faults.Check(http.MethodPatch, "/v1/products/3"), "used up after one hit")

	status, body = f.call(t, http.MethodGet, "/admin/faults", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body, 1)
	assert.Contains(t, body, "/v1/products")

	status, _ = f.call(t, http.MethodDelete, "/admin/fault/v1/products", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, f.mw.Faults.All())

	status, _ = f.call(t, http.MethodDelete, "/admin/fault/v1/products", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInjectFaultRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)
	for _, body := range []string{"not json", `{"status_code":42}`, `{"status_code":600}`} {
		status, _ := f.call(t, http.MethodPost, "/admin/fault/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
	}
	assert.Empty(t, f.mw.Faults.All())
}

func TestRequestsFiltered(t *testing.T) {
	f := newFixture(t, false)
	f.mw.ReqLog.Add(twincore.RequestLogEntry{Method: "GET", Path: "/v1/orders", StatusCode: 200})
	f.mw.ReqLog.Add(twincore.RequestLogEntry{Method: "PATCH", Path: "/v1/orders/ORD-2024-1006", StatusCode: 200})
	f.mw.ReqLog.Add(twincore.RequestLogEntry{Method: "GET", Path: "/v1/products", StatusCode: 503})

	list := func(query string) (int, []twincore.RequestLogEntry) {
		resp, err := http.Get(f.srv.URL + "/admin/requests" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		var entries []twincore.RequestLogEntry
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		}
		return resp.StatusCode, entries
	}

	_, all := list("")
	assert.Len(t, all, 3)
	_, orders := list("?path=/v1/orders")
	assert.Len(t, orders, 2)
	_, patched := list("?method=PATCH")
	require.Len(t, patched, 1)
	assert.Equal(t, "/v1/orders/ORD-2024-1006", patched[0].Path)
	_, failed := list("?status=503")
	require.Len(t, failed, 1)
	assert.Equal(t, "/v1/products", failed[0].Path)
	_, last := list("?limit=1")
	require.Len(t, last, 1)
	assert.Equal(t, uint64(3), last[0].Seq)

	status, _ := list("?limit=abc")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTime(t *testing.T) {
	f := newFixture(t, true)

	status, body := f.call(t, http.MethodPost, "/admin/time/advance", `{"duration":"24h"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "advanced", body["status"])
	assert.Equal(t, "24h0m0s", body["offset"])
	assert.Equal(t, 24*time.Hour, f.clock.Offset())

	status, body = f.call(t, http.MethodGet, "/admin/time", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "simulated")
	assert.Contains(t, body, "real")

	for _, bad := range []string{`{"duration":"soon"}`, `{"duration":"-1h"}`, `{bad`} {
		status, _ = f.call(t, http.MethodPost, "/admin/time/advance", bad)
		assert.Equal(t, http.StatusBadRequest, status, bad)
	}
	assert.Equal(t, 24*time.Hour, f.clock.Offset())
}

func TestTimeWithoutClock(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.call(t, http.MethodGet, "/admin/time", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "simulated")

	status, _ = f.call(t, http.MethodPost, "/admin/time/advance", `{"duration":"1h"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFlushWebhooks(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.call(t, http.MethodPost, "/admin/webhooks/flush", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "no webhooks configured", body["status"])

	fl := &fakeFlusher{}
	f.h.SetFlusher(fl)
	status, body = f.call(t, http.MethodPost, "/admin/webhooks/flush", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "flushed", body["status"])
	assert.Equal(t, 1, fl.calls)

	fl.err = errors.New("receiver down")
	status, _ = f.call(t, http.MethodPost, "/admin/webhooks/flush", "")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestConfig(t *testing.T) {
	f := newFixture(t, false)

	status, _ := f.call(t, http.MethodGet, "/admin/config", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.call(t, http.MethodPut, "/admin/config", `{"verbose":true}`)
	assert.Equal(t, http.StatusNotFound, status)

	cfg := &fakeConfig{values: map[string]any{"fail_rate": 0.0}}
	f.h.SetConfigProvider(cfg)

	status, body := f.call(t, http.MethodPut, "/admin/config", `{"fail_rate":0.25}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.25, body["fail_rate"])

	status, body = f.call(t, http.MethodPut, "/admin/config", `{"fail_rate":3}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "error")
	assert.Equal(t, 0.25, cfg.values["fail_rate"])

	status, _ = f.call(t, http.MethodPut, "/admin/config", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOpFaults(t *testing.T) {
	f := newFixture(t, false)

	status, _ := f.call(t, http.MethodPost, "/admin/ops/products.update/fault", `{"count":2}`)
	assert.Equal(t, http.StatusNotFound, status)

	ops := &fakeOps{faults: map[string]int{}}
	f.h.SetOpFaulter(ops)

	status, body := f.call(t, http.MethodPost, "/admin/ops/products.update/fault", `{"count":2}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "products.update", body["op"])
	assert.Equal(t, 2, ops.faults["products.update"])

	status, _ = f.call(t, http.MethodPost, "/admin/ops/orders.list/fault", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, ops.faults["orders.list"])
	assert.Contains(t, ops.faults, "orders.list")

	status, _ = f.call(t, http.MethodPost, "/admin/ops/orders.list/fault", `{"count":-1}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.call(t, http.MethodDelete, "/admin/ops/products.update/fault", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, ops.faults, "products.update")
}
