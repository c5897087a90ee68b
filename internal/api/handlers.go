package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/aggregate"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

// ListResponse is the envelope of every list endpoint.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Total: len(items)}
}

func list[T any](svc catalog.Lister[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		twincore.JSON(w, http.StatusOK, listOf(items))
	}
}

func get[T any](svc catalog.Getter[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, ok, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			twincore.Error(w, http.StatusNotFound, "no such record: "+id)
			return
		}
		twincore.JSON(w, http.StatusOK, item)
	}
}

func create[T, P any](svc catalog.Creator[T, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch P
		if err := twincore.DecodeJSON(r, &patch); err != nil {
			twincore.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		item, err := svc.Add(r.Context(), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		twincore.JSON(w, http.StatusCreated, item)
	}
}

func update[T, P any](svc catalog.Updater[T, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch P
		if err := twincore.DecodeJSON(r, &patch); err != nil {
			twincore.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		item, err := svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		twincore.JSON(w, http.StatusOK, item)
	}
}

func remove(svc catalog.Deleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		twincore.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
	}
}

// ListSubCategories handles GET /v1/subcategories. With ?grouped=true the
// response is the ordered parent-name grouping instead of a flat list.
func (h *Handler) ListSubCategories(w http.ResponseWriter, r *http.Request) {
	subs := h.catalog.SubCategories()
	if r.URL.Query().Get("grouped") != "true" {
		list[catalog.SubCategory](subs)(w, r)
		return
	}
	groups, err := aggregate.Grouped(r.Context(), subs)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = aggregate.Groups{}
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"groups": groups, "total": groups.Size()})
}

// ListCustomers handles GET /v1/customers, optionally filtered by ?status=.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.catalog.Customers().List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if q := r.URL.Query().Get("status"); q != "" {
		status := catalog.CustomerStatus(q)
		if !status.Valid() {
			twincore.Error(w, http.StatusBadRequest, "unknown customer status: "+q)
			return
		}
		filtered := customers[:0]
		for _, c := range customers {
			if c.Status == status {
				filtered = append(filtered, c)
			}
		}
		customers = filtered
	}
	twincore.JSON(w, http.StatusOK, listOf(customers))
}

// VerifyCustomer handles POST /v1/customers/{id}/verify.
func (h *Handler) VerifyCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.Customers().Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, c)
}

// AttachInvoice handles POST /v1/orders/{id}/invoice.
func (h *Handler) AttachInvoice(w http.ResponseWriter, r *http.Request) {
	var doc catalog.DocumentRef
	if err := twincore.DecodeJSON(r, &doc); err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := h.catalog.Orders().AttachInvoice(r.Context(), chi.URLParam(r, "id"), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, o)
}

// Summary handles GET /v1/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := aggregate.Dashboard(r.Context(), h.catalog)
	if err != nil {
		writeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, s)
}
