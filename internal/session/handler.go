package session

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

// Handler serves the OTP endpoints and the session gate.
type Handler struct {
	mgr      *Manager
	required atomic.Bool
}

// NewHandler creates a Handler. The gate starts open.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// SetRequired turns the session gate on or off at runtime.
func (h *Handler) SetRequired(v bool) { h.required.Store(v) }

// Required reports whether the gate is on.
func (h *Handler) Required() bool { return h.required.Load() }

// Routes mounts /v1/auth/otp, /v1/auth/otp/verify and /admin/otp.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/auth/otp", h.issue)
	r.Post("/v1/auth/otp/verify", h.verify)
	r.Get("/admin/otp", h.adminList)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := twincore.DecodeJSON(r, &req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	c, err := h.mgr.Issue(req.Phone)
	if err != nil {
		writeErr(w, err)
		return
	}
	twincore.JSON(w, http.StatusCreated, map[string]any{
		"phone":      c.Phone,
		"status":     "pending",
		"expires_at": c.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := twincore.DecodeJSON(r, &req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	token, err := h.mgr.Verify(req.Phone, req.Code)
	if err != nil {
		writeErr(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"token": token, "token_type": "Bearer"})
}

// adminList exposes issued codes, optionally filtered by ?phone=.
func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	pending := h.mgr.Pending()
	if q := r.URL.Query().Get("phone"); q != "" {
		p, err := NormalizePhone(q)
		if err != nil {
			writeErr(w, err)
			return
		}
		filtered := pending[:0]
		for _, c := range pending {
			if c.Phone == p {
				filtered = append(filtered, c)
			}
		}
		pending = filtered
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"codes": pending, "total": len(pending)})
}

// Gate rejects requests without a valid Bearer token while the gate is on.
// Valid claims are stored on the request context either way.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tok, hasBearer := strings.CutPrefix(auth, "Bearer ")
		if hasBearer && tok != "" {
			if claims, err := h.mgr.Parse(tok); err == nil {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
		}
		if h.required.Load() {
			twincore.Error(w, http.StatusUnauthorized, "a valid session token is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidPhone):
		twincore.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNoChallenge):
		twincore.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCodeExpired), errors.Is(err, ErrCodeMismatch):
		twincore.Error(w, http.StatusUnauthorized, err.Error())
	default:
		twincore.Error(w, http.StatusInternalServerError, err.Error())
	}
}
