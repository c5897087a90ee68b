package console_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/console"
)

func seeded(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Options{Seed: true})
	require.NoError(t, err)
	return c
}

func names(ms []catalog.MainCategory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

// countingSubCategories wraps the sub-category service and counts store writes.
type countingSubCategories struct {
	*catalog.SubCategories
	writes atomic.Int32
}

func (c *countingSubCategories) Add(ctx context.Context, p catalog.SubCategoryPatch) (catalog.SubCategory, error) {
	c.writes.Add(1)
	return c.SubCategories.Add(ctx, p)
}

func (c *countingSubCategories) Update(ctx context.Context, id string, p catalog.SubCategoryPatch) (catalog.SubCategory, error) {
	c.writes.Add(1)
	return c.SubCategories.Update(ctx, id, p)
}

type fakePicker struct {
	granted   bool
	cancelled bool
	uri       string
}

func (p fakePicker) RequestPermission(context.Context) (bool, error) { return p.granted, nil }

func (p fakePicker) PickImage(context.Context, console.ImageOptions) (console.ImageRef, bool, error) {
	if p.cancelled {
		return console.ImageRef{}, false, nil
	}
	return console.ImageRef{URI: p.uri}, true, nil
}

type fakeDocs struct {
	doc catalog.DocumentRef
}

func (d fakeDocs) PickDocument(_ context.Context, accepted []string) (catalog.DocumentRef, bool, error) {
	return d.doc, len(accepted) > 0, nil
}

func decline() console.Confirmer {
	return console.ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
}

func TestActivateLoadsItems(t *testing.T) {
	c := seeded(t)
	s := console.CategoryScreen(c.Categories(), nil)
	defer s.Close()

	require.NoError(t, s.Activate(context.Background()))
	assert.False(t, s.Loading())
	assert.Len(t, s.Items(), 6)
	assert.NoError(t, s.Err())
}

func TestActivateFailureClearsItems(t *testing.T) {
	c := seeded(t)
	s := console.ProductScreen(c.Products(), nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Activate(ctx))
	c.Simulator().InjectFault("products.list", 1)

	err := s.Refresh(ctx)
	assert.ErrorIs(t, err, console.ErrLoadFailed)
	assert.ErrorIs(t, err, catalog.ErrStoreOperationFailed)
	assert.False(t, s.Loading())
	assert.Empty(t, s.Items())
	assert.ErrorIs(t, s.Err(), console.ErrLoadFailed)
}

func TestFocusPolicy(t *testing.T) {
	c := seeded(t)
	ctx := context.Background()

	orders := console.OrderScreen(c.Orders(), nil)
	defer orders.Close()
	require.NoError(t, orders.Activate(ctx))
	c.Simulator().InjectFault("orders.list", 0)
	assert.NoError(t, orders.Focus(ctx), "orders fetch once")
	assert.Len(t, orders.Items(), 5)

	products := console.ProductScreen(c.Products(), nil)
	defer products.Close()
	require.NoError(t, products.Activate(ctx))
	_, err := c.Products().Add(ctx, catalog.ProductPatch{
		Name:  catalog.Ptr("Rice"),
		Price: catalog.Ptr(decimal.NewFromInt(50)),
		Stock: catalog.Ptr(10),
	})
	require.NoError(t, err)
	require.NoError(t, products.Focus(ctx))
	assert.Len(t, products.Items(), 6, "products refetch on focus")
}

// blockingSource blocks its first List until the context is cancelled.
type blockingSource struct {
	calls   atomic.Int32
	started chan struct{}
}

func (b *blockingSource) List(ctx context.Context) ([]catalog.Offer, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
		<-ctx.Done()
		return []catalog.Offer{{ID: "stale"}}, nil
	}
	return []catalog.Offer{{ID: "fresh"}}, nil
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	src := &blockingSource{started: make(chan struct{})}
	s := console.NewScreen(console.ScreenConfig[catalog.Offer]{
		Name:   "offer",
		Source: src,
		ID:     func(o catalog.Offer) string { return o.ID },
	})
	defer s.Close()
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- s.Activate(ctx) }()
	<-src.started

	require.NoError(t, s.Refresh(ctx))
	assert.ErrorIs(t, <-first, console.ErrSuperseded)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].ID)
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	sim := catalog.NewSimulator(time.Second, 0)
	c, err := catalog.New(catalog.Options{Seed: true, Simulator: sim})
	require.NoError(t, err)
	s := console.CategoryScreen(c.Categories(), nil)

	done := make(chan error, 1)
	go func() { done <- s.Activate(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, console.ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("fetch was not cancelled by Close")
	}
	assert.Empty(t, s.Items())
	assert.ErrorIs(t, s.Activate(context.Background()), console.ErrClosed)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	c := seeded(t)
	ctx := context.Background()

	cats := console.CategoryScreen(c.Categories(), nil)
	defer cats.Close()
	require.NoError(t, cats.Activate(ctx))
	cats.SetQuery("FRU")
	assert.Equal(t, []string{"Fresh Fruits"}, names(cats.Visible()))
	cats.SetQuery("")
	assert.Len(t, cats.Visible(), 6)

	customers := console.CustomerScreen(c.Customers(), nil)
	defer customers.Close()
	require.NoError(t, customers.Activate(ctx))
	customers.SetQuery("provisions")
	got := customers.Visible()
	require.Len(t, got, 1)
	assert.Equal(t, "Anita Sharma", got[0].Name)

	orders := console.OrderScreen(c.Orders(), nil)
	defer orders.Close()
	require.NoError(t, orders.Activate(ctx))
	orders.SetQuery("1007")
	require.Len(t, orders.Visible(), 1)
	orders.SetQuery("vikram")
	require.Len(t, orders.Visible(), 1)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	c := seeded(t)
	s := console.OfferScreen(c.Offers(), nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Activate(ctx))

	ok, err := s.Delete(ctx, "1", decline())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.Items(), 3)

	ok, err = s.Delete(ctx, "1", console.AlwaysConfirm)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.Items(), 2)

	offers, err := c.Offers().List(ctx)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestDeleteFailureLeavesListUntouched(t *testing.T) {
	c := seeded(t)
	s := console.ProductScreen(c.Products(), nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Activate(ctx))

	c.Simulator().InjectFault("products.delete", 1)
	ok, err := s.Delete(ctx, "1", console.AlwaysConfirm)
	assert.False(t, ok)
	assert.ErrorIs(t, err, console.ErrDeleteFailed)
	assert.ErrorIs(t, err, catalog.ErrStoreOperationFailed)
	assert.Len(t, s.Items(), 5)
}

func TestCustomerScreenHasNoDelete(t *testing.T) {
	c := seeded(t)
	s := console.CustomerScreen(c.Customers(), nil)
	defer s.Close()
	_, err := s.Delete(context.Background(), "1", console.AlwaysConfirm)
	assert.ErrorIs(t, err, console.ErrNotSupported)
}

func TestOnlyOneFormPerScreen(t *testing.T) {
	c := seeded(t)
	s := console.CategoryScreen(c.Categories(), nil)
	defer s.Close()

	f, err := console.CategoryForm(s, c.Categories(), nil)
	require.NoError(t, err)
	assert.True(t, s.FormOpen())

	_, err = console.CategoryForm(s, c.Categories(), nil)
	assert.ErrorIs(t, err, console.ErrFormOpen)

	f.Cancel()
	assert.False(t, s.FormOpen())
	_, err = console.CategoryForm(s, c.Categories(), nil)
	assert.NoError(t, err)
}

func TestCategoryFormDefaultsAndSubmit(t *testing.T) {
	c := seeded(t)
	s := console.CategoryScreen(c.Categories(), nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Activate(ctx))

	f, err := console.CategoryForm(s, c.Categories(), nil)
	require.NoError(t, err)
	assert.True(t, f.Creating())
	assert.Equal(t, "#FFF0E1", *f.Draft().BgColor)

	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, catalog.ErrValidation)
	assert.False(t, f.Closed())

	f.Edit(func(p *catalog.CategoryPatch) { p.Name = catalog.Ptr("Bakery") })
	m, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bakery", m.Name)
	assert.Equal(t, "#FFF0E1", m.BgColor)
	assert.Equal(t, catalog.DefaultCategoryImage, m.Image)
	assert.True(t, f.Closed())
	assert.False(t, s.FormOpen())

	items := s.Items()
	require.Len(t, items, 7)
	assert.Equal(t, "Bakery", items[0].Name)
}

func TestSubCategoryValidationNeverCallsStore(t *testing.T) {
	c := seeded(t)
	svc := &countingSubCategories{SubCategories: c.SubCategories()}
	s := console.SubCategoryScreen(svc, nil)
	defer s.Close()
	ctx := context.Background()

	f, err := console.SubCategoryForm(s, svc, nil)
	require.NoError(t, err)
	f.Edit(func(p *catalog.SubCategoryPatch) { p.MainCategoryID = catalog.Ptr("1") })
	_, err = f.Submit(ctx)
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name"}, verr.Fields)

	f.Edit(func(p *catalog.SubCategoryPatch) {
		p.Name = catalog.Ptr("Rice")
		p.MainCategoryID = catalog.Ptr("")
	})
	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, catalog.ErrValidation)
	f.Cancel()

	existing, ok, err := c.SubCategories().Get(ctx, "s2")
	require.NoError(t, err)
	require.True(t, ok)
	edit, err := console.SubCategoryForm(s, svc, &existing)
	require.NoError(t, err)
	edit.Edit(func(p *catalog.SubCategoryPatch) { p.Name = catalog.Ptr("") })
	_, err = edit.Submit(ctx)
	assert.ErrorIs(t, err, catalog.ErrValidation)

	assert.Zero(t, svc.writes.Load())
}

func TestSubmitFailureKeepsFormOpen(t *testing.T) {
	c := seeded(t)
	s := console.OfferScreen(c.Offers(), nil)
	defer s.Close()
	ctx := context.Background()

	existing, _, err := c.Offers().Get(ctx, "2")
	require.NoError(t, err)
	f, err := console.OfferForm(s, c.Offers(), &existing)
	require.NoError(t, err)
	f.Edit(func(p *catalog.OfferPatch) { p.Status = catalog.Ptr(catalog.OfferInactive) })

	c.Simulator().InjectFault("offers.update", 1)
	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, console.ErrSaveFailed)
	assert.False(t, f.Closed())
	assert.True(t, s.FormOpen())

	o, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.OfferInactive, o.Status)
	assert.Equal(t, "assets/images/OfferBanner2.png", o.BannerImage)
}

func TestOfferFormDefaultsActive(t *testing.T) {
	c := seeded(t)
	s := console.OfferScreen(c.Offers(), nil)
	defer s.Close()
	f, err := console.OfferForm(s, c.Offers(), nil)
	require.NoError(t, err)
	assert.Equal(t, catalog.OfferActive, *f.Draft().Status)
}

func TestPickImage(t *testing.T) {
	c := seeded(t)
	s := console.ProductScreen(c.Products(), nil)
	defer s.Close()
	ctx := context.Background()

	existing, _, err := c.Products().Get(ctx, "1")
	require.NoError(t, err)
	f, err := console.ProductForm(s, c.Products(), &existing)
	require.NoError(t, err)

	_, err = f.PickImage(ctx, fakePicker{granted: false})
	assert.ErrorIs(t, err, console.ErrPermissionDenied)

	ok, err := f.PickImage(ctx, fakePicker{granted: true, cancelled: true})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, existing.Image, *f.Draft().Image)

	ok, err = f.PickImage(ctx, fakePicker{granted: true, uri: "file:///pepper.jpg"})
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file:///pepper.jpg", p.Image)
}

func TestOrderFormInvoice(t *testing.T) {
	c := seeded(t)
	s := console.OrderScreen(c.Orders(), nil)
	defer s.Close()
	ctx := context.Background()

	_, err := console.OrderForm(s, c.Orders(), nil)
	assert.ErrorIs(t, err, console.ErrNotSupported)
	assert.False(t, s.FormOpen())

	existing, _, err := c.Orders().Get(ctx, "ORD-2024-1006")
	require.NoError(t, err)
	f, err := console.OrderForm(s, c.Orders(), &existing)
	require.NoError(t, err)

	ok, err := f.PickInvoice(ctx, fakeDocs{doc: catalog.DocumentRef{URI: "file:///inv.pdf", Name: "inv.pdf"}})
	require.NoError(t, err)
	require.True(t, ok)
	f.Edit(func(p *catalog.OrderPatch) { p.Status = catalog.Ptr(catalog.OrderInTransit) })

	o, err := f.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, o.InvoiceURL)
	assert.Equal(t, "file:///inv.pdf", *o.InvoiceURL)
	assert.Equal(t, catalog.OrderInTransit, o.Status)
}

func TestCustomerFormRejectsNegativeCredit(t *testing.T) {
	c := seeded(t)
	s := console.CustomerScreen(c.Customers(), nil)
	defer s.Close()

	existing, _, err := c.Customers().Get(context.Background(), "4")
	require.NoError(t, err)
	f, err := console.CustomerForm(s, c.Customers(), &existing)
	require.NoError(t, err)
	f.Edit(func(p *catalog.CustomerPatch) { p.CreditDays = catalog.Ptr(-5) })
	_, err = f.Submit(context.Background())
	assert.True(t, errors.Is(err, catalog.ErrValidation))
}
