package twincore

import (
	"strings"
	"sync"
	"time"
)

// RequestLogEntry is one handled request as shown on /admin/requests.
type RequestLogEntry struct {
	Seq        uint64            `json:"seq"`
	Timestamp  time.Time         `json:"timestamp"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      string            `json:"query,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"status_code"`
	Duration   time.Duration     `json:"duration_ms"`
	RequestID  string            `json:"request_id,omitempty"`
	Replayed   bool              `json:"replayed,omitempty"` // served from the idempotency cache
	Fault      bool              `json:"fault,omitempty"`    // answered by an injected fault
}

// RequestFilter narrows Filter results. Zero fields match everything.
type RequestFilter struct {
	Method     string
	PathPrefix string
	Status     int
	Limit      int // newest n after filtering
}

// RequestLog keeps the most recent requests in a fixed-size ring.
type RequestLog struct {
	mu   sync.RWMutex
	ring []RequestLogEntry
	next int // slot for the next entry
	full bool
	seq  uint64
}

// NewRequestLog creates a log holding at most size entries.
func NewRequestLog(size int) *RequestLog {
	if size < 1 {
		size = 1
	}
	return &RequestLog{ring: make([]RequestLogEntry, size)}
}

// Add records e, overwriting the oldest entry when full, and returns the
// sequence number it was given.
func (rl *RequestLog) Add(e RequestLogEntry) uint64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.seq++
	e.Seq = rl.seq
	rl.ring[rl.next] = e
	rl.next = (rl.next + 1) % len(rl.ring)
	if rl.next == 0 {
		rl.full = true
	}
	return e.Seq
}

// Entries returns every retained entry, oldest first.
func (rl *RequestLog) Entries() []RequestLogEntry {
	return rl.Filter(RequestFilter{})
}

// Filter returns retained entries matching f, oldest first.
func (rl *RequestLog) Filter(f RequestFilter) []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	n, start := rl.next, 0
	if rl.full {
		n, start = len(rl.ring), rl.next
	}
	out := make([]RequestLogEntry, 0, n)
	for i := range n {
		e := rl.ring[(start+i)%len(rl.ring)]
		if f.Method != "" && !strings.EqualFold(e.Method, f.Method) {
			continue
		}
		if f.PathPrefix != "" && !strings.HasPrefix(e.Path, f.PathPrefix) {
			continue
		}
		if f.Status != 0 && e.StatusCode != f.Status {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Len reports how many entries are retained.
func (rl *RequestLog) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if rl.full {
		return len(rl.ring)
	}
	return rl.next
}

// Clear drops every entry. Sequence numbers keep increasing.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	clear(rl.ring)
	rl.next = 0
	rl.full = false
}
