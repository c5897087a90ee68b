package twincore

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSim struct {
	mu       sync.Mutex
	latency  time.Duration
	failRate float64
}

func (f *fakeSim) Latency() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latency
}

func (f *fakeSim) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

func (f *fakeSim) FailRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failRate
}

func (f *fakeSim) SetFailRate(r float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRate = r
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "CAT-1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}
	if body["id"] != "CAT-1" {
		t.Errorf("unexpected body: %+v", body)
	}

	rec = httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %s", rec.Body.String())
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusUnprocessableEntity, "name is required")

	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body.Error.Message != "name is required" || body.Error.Type != "Unprocessable Entity" || body.Error.Code != 422 {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	if err := DecodeJSON(req, &v); err == nil {
		t.Error("expected error for unknown field")
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	if err := DecodeJSON(req, &v); err != nil || v.Name != "a" {
		t.Errorf("unexpected decode result: %v %+v", err, v)
	}
}

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

func TestRegisterFlagsKeepsDefaults(t *testing.T) {
	cfg := &Config{Port: 12180, Latency: 300 * time.Millisecond}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, cfg)

	if err := fs.Parse([]string{"--fail-rate", "0.25", "--verbose"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != 12180 || cfg.Latency != 300*time.Millisecond {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.FailRate != 0.25 || !cfg.Verbose {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

// ---------------------------------------------------------------------------
// Twin
// ---------------------------------------------------------------------------

func TestNewTwinAppliesSimulation(t *testing.T) {
	sim := &fakeSim{}
	cfg := &Config{Name: "twin-qwikbasket", Latency: 500 * time.Millisecond, FailRate: 0.1}
	twin := New(cfg, sim)

	if twin.Router == nil || twin.Logger == nil || twin.Middleware() == nil {
		t.Fatal("expected router, logger and middleware")
	}
	if sim.Latency() != 500*time.Millisecond || sim.FailRate() != 0.1 {
		t.Errorf("simulation not configured: %v %v", sim.Latency(), sim.FailRate())
	}
}

func TestTwinServeHTTP(t *testing.T) {
	twin := New(&Config{Name: "test-twin"}, nil)
	twin.Router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"pong": "true"})
	})

	rec := httptest.NewRecorder()
	twin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if n := len(twin.Middleware().ReqLog.Entries()); n != 1 {
		t.Errorf("expected request to be logged, got %d entries", n)
	}
}

func TestUpdateConfig(t *testing.T) {
	sim := &fakeSim{}
	twin := New(&Config{Name: "twin-qwikbasket", Port: 12180}, sim)
	var hooked string
	twin.OnWebhookURLChange(func(url string) { hooked = url })

	err := twin.UpdateConfig(map[string]any{
		"latency":     "250ms",
		"fail_rate":   0.5,
		"verbose":     true,
		"webhook_url": "http://localhost:9000/hook",
	})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if sim.Latency() != 250*time.Millisecond || sim.FailRate() != 0.5 {
		t.Errorf("simulation not updated: %v %v", sim.Latency(), sim.FailRate())
	}
	if hooked != "http://localhost:9000/hook" {
		t.Errorf("webhook hook not called, got %q", hooked)
	}

	got := twin.GetConfig()
	if got["latency"] != "250ms" || got["fail_rate"] != 0.5 || got["verbose"] != true {
		t.Errorf("unexpected config: %+v", got)
	}
}

func TestUpdateConfigValidatesBeforeApplying(t *testing.T) {
	sim := &fakeSim{}
	twin := New(&Config{Name: "twin-qwikbasket"}, sim)

	tests := []map[string]any{
		{"latency": "fast"},
		{"latency": "-1s"},
		{"fail_rate": 1.5},
		{"fail_rate": "high"},
		{"port": float64(1)},
		{"nope": true},
		{"latency": "1s", "fail_rate": 2.0},
	}
	for _, updates := range tests {
		if err := twin.UpdateConfig(updates); err == nil {
			t.Errorf("expected error for %v", updates)
		}
	}
	if sim.Latency() != 0 {
		t.Errorf("partial update applied: latency=%v", sim.Latency())
	}
}
