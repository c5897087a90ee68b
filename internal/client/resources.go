package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// Resource is the CRUD client for one /v1 collection.
type Resource[T, P any] struct {
	c    *Client
	path string
}

var (
	_ catalog.Service[catalog.MainCategory, catalog.CategoryPatch] = (*Resource[catalog.MainCategory, catalog.CategoryPatch])(nil)
	_ catalog.Service[catalog.Product, catalog.ProductPatch]       = (*Resource[catalog.Product, catalog.ProductPatch])(nil)
)

func (r *Resource[T, P]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List fetches the whole collection.
func (r *Resource[T, P]) List(ctx context.Context) ([]T, error) {
	var resp struct {
		Data []T `json:"data"`
	}
	if err := r.c.do(ctx, http.MethodGet, r.path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Get fetches one record. A 404 is (zero, false, nil).
func (r *Resource[T, P]) Get(ctx context.Context, id string) (T, bool, error) {
	var item T
	err := r.c.do(ctx, http.MethodGet, r.itemPath(id), nil, &item)
	if errors.Is(err, catalog.ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return item, true, nil
}

// Add creates a record.
func (r *Resource[T, P]) Add(ctx context.Context, patch P) (T, error) {
	var item T
	err := r.c.do(ctx, http.MethodPost, r.path, patch, &item)
	return item, err
}

// Update patches a record.
func (r *Resource[T, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	var item T
	err := r.c.do(ctx, http.MethodPatch, r.itemPath(id), patch, &item)
	return item, err
}

// Delete removes a record.
func (r *Resource[T, P]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
}

// Categories returns the main category client.
func (c *Client) Categories() *Resource[catalog.MainCategory, catalog.CategoryPatch] {
	return &Resource[catalog.MainCategory, catalog.CategoryPatch]{c: c, path: "/v1/categories"}
}

// SubCategories returns the sub-category client.
func (c *Client) SubCategories() *Resource[catalog.SubCategory, catalog.SubCategoryPatch] {
	return &Resource[catalog.SubCategory, catalog.SubCategoryPatch]{c: c, path: "/v1/subcategories"}
}

// Products returns the product client.
func (c *Client) Products() *Resource[catalog.Product, catalog.ProductPatch] {
	return &Resource[catalog.Product, catalog.ProductPatch]{c: c, path: "/v1/products"}
}

// Offers returns the offer client.
func (c *Client) Offers() *Resource[catalog.Offer, catalog.OfferPatch] {
	return &Resource[catalog.Offer, catalog.OfferPatch]{c: c, path: "/v1/offers"}
}

// Orders is the order client. Orders cannot be created.
type Orders struct {
	r *Resource[catalog.Order, catalog.OrderPatch]
}

// Orders returns the order client.
func (c *Client) Orders() *Orders {
	return &Orders{r: &Resource[catalog.Order, catalog.OrderPatch]{c: c, path: "/v1/orders"}}
}

func (o *Orders) List(ctx context.Context) ([]catalog.Order, error) { return o.r.List(ctx) }

func (o *Orders) Get(ctx context.Context, id string) (catalog.Order, bool, error) {
	return o.r.Get(ctx, id)
}

func (o *Orders) Update(ctx context.Context, id string, p catalog.OrderPatch) (catalog.Order, error) {
	return o.r.Update(ctx, id, p)
}

func (o *Orders) Delete(ctx context.Context, id string) error { return o.r.Delete(ctx, id) }

// AttachInvoice stores doc as the order's invoice.
func (o *Orders) AttachInvoice(ctx context.Context, id string, doc catalog.DocumentRef) (catalog.Order, error) {
	var out catalog.Order
	err := o.r.c.do(ctx, http.MethodPost, o.r.itemPath(id)+"/invoice", doc, &out)
	return out, err
}

// Customers is the customer client. Customers cannot be created or deleted.
type Customers struct {
	r *Resource[catalog.Customer, catalog.CustomerPatch]
}

// Customers returns the customer client.
func (c *Client) Customers() *Customers {
	return &Customers{r: &Resource[catalog.Customer, catalog.CustomerPatch]{c: c, path: "/v1/customers"}}
}

func (cs *Customers) List(ctx context.Context) ([]catalog.Customer, error) { return cs.r.List(ctx) }

func (cs *Customers) Get(ctx context.Context, id string) (catalog.Customer, bool, error) {
	return cs.r.Get(ctx, id)
}

func (cs *Customers) Update(ctx context.Context, id string, p catalog.CustomerPatch) (catalog.Customer, error) {
	return cs.r.Update(ctx, id, p)
}

// ListByStatus fetches customers with the given status.
func (cs *Customers) ListByStatus(ctx context.Context, status catalog.CustomerStatus) ([]catalog.Customer, error) {
	var resp struct {
		Data []catalog.Customer `json:"data"`
	}
	err := cs.r.c.do(ctx, http.MethodGet, cs.r.path+"?status="+url.QueryEscape(string(status)), nil, &resp)
	return resp.Data, err
}

// Verify marks a customer verified.
func (cs *Customers) Verify(ctx context.Context, id string) (catalog.Customer, error) {
	var out catalog.Customer
	err := cs.r.c.do(ctx, http.MethodPost, cs.r.itemPath(id)+"/verify", nil, &out)
	return out, err
}
