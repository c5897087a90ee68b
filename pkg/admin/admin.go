// Package admin serves the /admin control plane of a twin: state snapshot
// and restore, HTTP and store-operation faults, the request log, simulated
// time, runtime config and health.
package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-qwikbasket/pkg/store"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

// StateStore is the twin state behind /admin/state and /admin/reset.
type StateStore interface {
	Snapshot() any               // JSON-serializable full state
	LoadState(data []byte) error // replace everything from a JSON body
	Reset()                      // back to seed data
}

// WebhookFlusher delivers queued outbound events.
type WebhookFlusher interface {
	FlushWebhooks() error
}

// ConfigProvider exposes runtime-tunable settings.
type ConfigProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// OpFaulter fails named store operations such as "products.update" below
// the HTTP layer, so in-process callers see the failures too.
type OpFaulter interface {
	InjectFault(op string, count int)
	ClearFault(op string)
}

// Handler serves /admin. Only the state store is required; the other
// capabilities answer 404 until set.
type Handler struct {
	state   StateStore
	mw      *twincore.Middleware
	clock   *store.Clock
	flusher WebhookFlusher
	config  ConfigProvider
	ops     OpFaulter
	started time.Time
}

// NewHandler creates a handler. clock may be nil when the twin has no
// simulated time.
func NewHandler(state StateStore, mw *twincore.Middleware, clock *store.Clock) *Handler {
	return &Handler{state: state, mw: mw, clock: clock, started: time.Now()}
}

// SetFlusher enables POST /admin/webhooks/flush.
func (h *Handler) SetFlusher(f WebhookFlusher) { h.flusher = f }

// SetConfigProvider enables GET/PUT /admin/config.
func (h *Handler) SetConfigProvider(c ConfigProvider) { h.config = c }

// SetOpFaulter enables /admin/ops/{op}/fault.
func (h *Handler) SetOpFaulter(o OpFaulter) { h.ops = o }

// Routes mounts the admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/reset", h.reset)

		r.Get("/state", h.snapshot)
		r.Post("/state", h.loadState)

		r.Get("/faults", h.listFaults)
		r.Post("/fault/*", h.injectFault)
		r.Delete("/fault/*", h.removeFault)
		r.Post("/ops/{op}/fault", h.injectOpFault)
		r.Delete("/ops/{op}/fault", h.clearOpFault)

		r.Get("/requests", h.requests)
		r.Post("/webhooks/flush", h.flushWebhooks)

		r.Get("/time", h.now)
		r.Post("/time/advance", h.advanceTime)

		r.Get("/config", h.getConfig)
		r.Put("/config", h.updateConfig)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// reset restores seed data and clears everything the middleware holds.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	h.mw.Reset()
	if h.clock != nil {
		h.clock.Reset()
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) loadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(body); err != nil {
		twincore.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

// faultKey builds the registry key from the wildcard and an optional
// ?method= filter. /admin/fault/v1/products/* targets everything under
// /v1/products/.
func faultKey(r *http.Request) string {
	return twincore.FaultKey(r.URL.Query().Get("method"), "/"+chi.URLParam(r, "*"))
}

func (h *Handler) injectFault(w http.ResponseWriter, r *http.Request) {
	var f twincore.FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid fault config: "+err.Error())
		return
	}
	if f.StatusCode != 0 && (f.StatusCode < 100 || f.StatusCode > 599) {
		twincore.Error(w, http.StatusBadRequest, "status_code must be a valid HTTP status")
		return
	}
	key := faultKey(r)
	h.mw.Faults.Set(key, f)
	twincore.JSON(w, http.StatusOK, map[string]any{"status": "injected", "endpoint": key, "fault": h.mw.Faults.All()[key]})
}

func (h *Handler) removeFault(w http.ResponseWriter, r *http.Request) {
	key := faultKey(r)
	if !h.mw.Faults.Remove(key) {
		twincore.Error(w, http.StatusNotFound, "no fault registered for "+key)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": key})
}

func (h *Handler) listFaults(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) injectOpFault(w http.ResponseWriter, r *http.Request) {
	if h.ops == nil {
		twincore.Error(w, http.StatusNotFound, "operation faults not supported")
		return
	}
	var req struct {
		Count int `json:"count"` // 0 fails every call until cleared
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			twincore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}
	if req.Count < 0 {
		twincore.Error(w, http.StatusBadRequest, "count must not be negative")
		return
	}
	op := chi.URLParam(r, "op")
	h.ops.InjectFault(op, req.Count)
	twincore.JSON(w, http.StatusOK, map[string]any{"status": "injected", "op": op, "count": req.Count})
}

func (h *Handler) clearOpFault(w http.ResponseWriter, r *http.Request) {
	if h.ops == nil {
		twincore.Error(w, http.StatusNotFound, "operation faults not supported")
		return
	}
	op := chi.URLParam(r, "op")
	h.ops.ClearFault(op)
	twincore.JSON(w, http.StatusOK, map[string]any{"status": "cleared", "op": op})
}

// requests lists the request log, filtered by ?method=, ?path= (prefix),
// ?status= and ?limit=.
func (h *Handler) requests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := twincore.RequestFilter{Method: q.Get("method"), PathPrefix: q.Get("path")}
	for name, dst := range map[string]*int{"status": &f.Status, "limit": &f.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			twincore.Error(w, http.StatusBadRequest, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}
	twincore.JSON(w, http.StatusOK, h.mw.ReqLog.Filter(f))
}

func (h *Handler) flushWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.flusher == nil {
		twincore.JSON(w, http.StatusOK, map[string]string{"status": "no webhooks configured"})
		return
	}
	if err := h.flusher.FlushWebhooks(); err != nil {
		twincore.Error(w, http.StatusInternalServerError, "flush failed: "+err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (h *Handler) timeBody() map[string]any {
	out := map[string]any{"real": time.Now().Format(time.RFC3339)}
	if h.clock != nil {
		out["simulated"] = h.clock.Now().Format(time.RFC3339)
		out["offset"] = h.clock.Offset().String()
	}
	return out
}

func (h *Handler) now(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.timeBody())
}

// advanceTime moves the simulated clock forward by a Go duration such as
// "24h". Going backwards is not allowed.
func (h *Handler) advanceTime(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		twincore.Error(w, http.StatusBadRequest, "simulated clock not configured")
		return
	}
	var req struct {
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(req.Duration))
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}
	if d < 0 {
		twincore.Error(w, http.StatusBadRequest, "duration must not be negative")
		return
	}
	h.clock.Advance(d)
	body := h.timeBody()
	body["status"] = "advanced"
	body["duration"] = d.String()
	twincore.JSON(w, http.StatusOK, body)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotFound, "runtime config not supported")
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotFound, "runtime config not supported")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	if err := h.config.UpdateConfig(updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}
