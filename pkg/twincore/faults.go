package twincore

import (
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"
)

// FaultConfig is an HTTP-level fault answered in place of the real handler.
type FaultConfig struct {
	StatusCode int     `json:"status_code"`
	Body       string  `json:"body,omitempty"`
	DelayMS    int64   `json:"delay_ms,omitempty"`
	Rate       float64 `json:"rate"`            // 0.0-1.0, 0 means always
	Times      int     `json:"times,omitempty"` // fire this many times then remove, 0 means until removed
}

// Delay is how long the fault stalls before answering.
func (f FaultConfig) Delay() time.Duration {
	return time.Duration(f.DelayMS) * time.Millisecond
}

// FaultKey builds a registry key. An empty method matches every method.
// A path ending in "/*" matches everything below it, e.g.
// "PATCH /v1/products/*".
func FaultKey(method, path string) string {
	if method == "" {
		return path
	}
	return strings.ToUpper(method) + " " + path
}

type faultRule struct {
	method string
	path   string
	prefix bool
	cfg    FaultConfig
}

func parseFaultKey(key string) (method, path string, prefix bool) {
	path = key
	if m, p, ok := strings.Cut(key, " "); ok {
		method, path = m, p
	}
	if p, ok := strings.CutSuffix(path, "/*"); ok {
		return method, p + "/", true
	}
	return method, path, false
}

// specificity orders matching rules: exact paths beat prefixes, longer
// prefixes beat shorter ones and a method beats none.
func (fr faultRule) specificity() int {
	s := len(fr.path) * 2
	if !fr.prefix {
		s += 1 << 16
	}
	if fr.method != "" {
		s++
	}
	return s
}

func (fr faultRule) matches(method, path string) bool {
	if fr.method != "" && fr.method != method {
		return false
	}
	if fr.prefix {
		return strings.HasPrefix(path, fr.path)
	}
	return path == fr.path
}

// FaultRegistry holds injected faults keyed by FaultKey.
type FaultRegistry struct {
	mu    sync.Mutex
	rules map[string]*faultRule
	rand  func() float64
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{rules: make(map[string]*faultRule), rand: rand.Float64}
}

// Set registers f under key, replacing any previous fault there.
func (fr *FaultRegistry) Set(key string, f FaultConfig) {
	if f.Rate <= 0 || f.Rate > 1 {
		f.Rate = 1
	}
	method, path, prefix := parseFaultKey(key)
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.rules[key] = &faultRule{method: method, path: path, prefix: prefix, cfg: f}
}

// Remove deletes the fault at key and reports whether one existed.
func (fr *FaultRegistry) Remove(key string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, ok := fr.rules[key]
	delete(fr.rules, key)
	return ok
}

// Check returns the most specific fault matching the request if its rate
// fires. A fault with Times set is used up after that many hits.
func (fr *FaultRegistry) Check(method, path string) *FaultConfig {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	var best *faultRule
	var bestKey string
	for k, r := range fr.rules {
		if r.matches(method, path) && (best == nil || r.specificity() > best.specificity()) {
			best, bestKey = r, k
		}
	}
	if best == nil {
		return nil
	}
	if best.cfg.Rate < 1 && fr.rand() >= best.cfg.Rate {
		return nil
	}
	f := best.cfg
	if best.cfg.Times > 0 {
		best.cfg.Times--
		if best.cfg.Times == 0 {
			delete(fr.rules, bestKey)
		}
	}
	return &f
}

// All returns a copy of the registered faults by key.
func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	out := make(map[string]FaultConfig, len(fr.rules))
	for k, r := range fr.rules {
		out[k] = r.cfg
	}
	return out
}

// Reset removes every fault.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	clear(fr.rules)
}

func writeFault(w http.ResponseWriter, f *FaultConfig) {
	if f.Body == "" {
		Error(w, f.StatusCode, "injected fault")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.StatusCode)
	_, _ = w.Write([]byte(f.Body))
}
