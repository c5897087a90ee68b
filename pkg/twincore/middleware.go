package twincore

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// IdempotencyHeader carries the client's retry key on POST requests.
const IdempotencyHeader = "Idempotency-Key"

// Middleware bundles the request log, fault registry and idempotency
// cache shared by the API and the admin plane.
type Middleware struct {
	logger     *slog.Logger
	verbose    atomic.Bool
	ReqLog     *RequestLog
	Faults     *FaultRegistry
	Idempotent *IdempotencyTracker
}

// NewMiddleware creates a Middleware. A nil logger uses slog.Default.
func NewMiddleware(logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		logger:     logger,
		ReqLog:     NewRequestLog(1000),
		Faults:     NewFaultRegistry(),
		Idempotent: NewIdempotencyTracker(DefaultIdempotencyTTL, nil),
	}
}

// SetVerbose toggles header capture and per-request debug logging.
func (m *Middleware) SetVerbose(v bool) {
	m.verbose.Store(v)
}

// SetClock makes idempotency expiry follow now instead of wall time.
func (m *Middleware) SetClock(now func() time.Time) {
	m.Idempotent.SetClock(now)
}

// Reset clears the request log, faults and cached responses.
func (m *Middleware) Reset() {
	m.ReqLog.Clear()
	m.Faults.Reset()
	m.Idempotent.Reset()
}

// CORS lets a browser-based admin panel call the twin.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, "+IdempotencyHeader)
		h.Set("Access-Control-Expose-Headers", "Idempotent-Replayed, Retry-After, X-Request-Id")
		h.Set("Access-Control-Max-Age", "3600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recorder captures what downstream handlers wrote. Body capture is only
// switched on for idempotent POSTs.
type recorder struct {
	http.ResponseWriter
	status  int
	wrote   bool
	capture bool
	body    bytes.Buffer
	marks   *requestMarks
}

func (rec *recorder) WriteHeader(code int) {
	if !rec.wrote {
		rec.status, rec.wrote = code, true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if !rec.wrote {
		rec.status, rec.wrote = http.StatusOK, true
	}
	if rec.capture {
		rec.body.Write(b)
	}
	return rec.ResponseWriter.Write(b)
}

// requestMarks lets inner middleware annotate the log entry.
type requestMarks struct {
	replayed bool
	fault    bool
}

func marksFrom(w http.ResponseWriter) *requestMarks {
	if rec, ok := w.(*recorder); ok && rec.marks != nil {
		return rec.marks
	}
	return &requestMarks{}
}

// RequestLog records every request into ReqLog. With verbose on, headers
// other than Authorization are kept and each request is logged at debug.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK, marks: &requestMarks{}}
		next.ServeHTTP(rec, r)

		verbose := m.verbose.Load()
		entry := RequestLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.RawQuery,
			StatusCode: rec.status,
			Duration:   time.Since(start),
			RequestID:  chimw.GetReqID(r.Context()),
			Replayed:   rec.marks.replayed,
			Fault:      rec.marks.fault,
		}
		if verbose {
			entry.Headers = make(map[string]string, len(r.Header))
			for k := range r.Header {
				if !strings.EqualFold(k, "Authorization") {
					entry.Headers[k] = r.Header.Get(k)
				}
			}
		}
		m.ReqLog.Add(entry)

		if verbose {
			m.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", entry.Duration,
			)
		}
	})
}

// FaultInjection answers requests matching a registered fault. Mount it on
// the /v1 group only so the admin plane stays reachable.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := m.Faults.Check(r.Method, r.URL.Path)
		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		if d := f.Delay(); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		if f.StatusCode == 0 {
			next.ServeHTTP(w, r)
			return
		}
		marksFrom(w).fault = true
		writeFault(w, f)
	})
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on POST. Keys are scoped to the request path. Reusing a
// key with a different body is rejected with 422; failed attempts are not
// cached so the caller can retry. A duplicate arriving while the first
// request is still running waits for its outcome.
func (m *Middleware) Idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		key = r.URL.Path + "|" + key
		fp := Fingerprint(body)
		cached, hit, err := m.Idempotent.Reserve(r.Context(), key, fp)
		switch {
		case errors.Is(err, ErrIdempotencyMismatch):
			Error(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request body")
			return
		case err != nil:
			Error(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
			return
		case hit:
			marksFrom(w).replayed = true
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(cached.Status)
			_, _ = w.Write(cached.Body)
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK, capture: true}
		stored := false
		defer func() {
			if !stored {
				m.Idempotent.Release(key)
			}
		}()
		next.ServeHTTP(rec, r)
		if rec.status < 300 {
			m.Idempotent.Store(key, fp, rec.status, rec.body.Bytes())
			stored = true
		}
	})
}

// RateLimit rejects requests with 429 once limiter is exhausted. A nil
// limiter disables limiting.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
