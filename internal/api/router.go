// Package api exposes the catalog as a JSON HTTP API under /v1.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

// Handler holds all API handler state.
type Handler struct {
	catalog *catalog.Catalog
	mw      *twincore.Middleware
	limiter *rate.Limiter
	gate    func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimit applies a token bucket to every /v1 route.
func WithRateLimit(l *rate.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithGate wraps every /v1 route except /v1/auth in gate, e.g. the
// session check.
func WithGate(gate func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.gate = gate }
}

// NewHandler creates a new API handler.
func NewHandler(c *catalog.Catalog, mw *twincore.Middleware, opts ...Option) *Handler {
	h := &Handler{catalog: c, mw: mw}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes mounts the /v1 API.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(twincore.RateLimit(h.limiter))
		r.Use(h.mw.FaultInjection)
		if h.gate != nil {
			r.Use(h.gate)
		}
		r.Use(h.mw.Idempotency)

		categories := h.catalog.Categories()
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", list[catalog.MainCategory](categories))
			r.Post("/", create[catalog.MainCategory, catalog.CategoryPatch](categories))
			r.Get("/{id}", get[catalog.MainCategory](categories))
			r.Patch("/{id}", update[catalog.MainCategory, catalog.CategoryPatch](categories))
			r.Delete("/{id}", remove(categories))
		})

		subs := h.catalog.SubCategories()
		r.Route("/subcategories", func(r chi.Router) {
			r.Get("/", h.ListSubCategories)
			r.Post("/", create[catalog.SubCategory, catalog.SubCategoryPatch](subs))
			r.Get("/{id}", get[catalog.SubCategory](subs))
			r.Patch("/{id}", update[catalog.SubCategory, catalog.SubCategoryPatch](subs))
			r.Delete("/{id}", remove(subs))
		})

		products := h.catalog.Products()
		r.Route("/products", func(r chi.Router) {
			r.Get("/", list[catalog.Product](products))
			r.Post("/", create[catalog.Product, catalog.ProductPatch](products))
			r.Get("/{id}", get[catalog.Product](products))
			r.Patch("/{id}", update[catalog.Product, catalog.ProductPatch](products))
			r.Delete("/{id}", remove(products))
		})

		offers := h.catalog.Offers()
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", list[catalog.Offer](offers))
			r.Post("/", create[catalog.Offer, catalog.OfferPatch](offers))
			r.Get("/{id}", get[catalog.Offer](offers))
			r.Patch("/{id}", update[catalog.Offer, catalog.OfferPatch](offers))
			r.Delete("/{id}", remove(offers))
		})

		orders := h.catalog.Orders()
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", list[catalog.Order](orders))
			r.Get("/{id}", get[catalog.Order](orders))
			r.Patch("/{id}", update[catalog.Order, catalog.OrderPatch](orders))
			r.Delete("/{id}", remove(orders))
			r.Post("/{id}/invoice", h.AttachInvoice)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Get("/{id}", get[catalog.Customer](h.catalog.Customers()))
			r.Patch("/{id}", update[catalog.Customer, catalog.CustomerPatch](h.catalog.Customers()))
			r.Post("/{id}/verify", h.VerifyCustomer)
		})

		r.Get("/homepage-items", list[catalog.HomepageItem](h.catalog.Homepage()))
		r.Get("/summary", h.Summary)
	})
}

// writeError maps catalog errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrValidation), errors.Is(err, catalog.ErrInvalidReference):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, catalog.ErrStoreOperationFailed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}
	twincore.Error(w, status, err.Error())
}
