package console

import (
	"log/slog"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// ColorSwatches are the background colors offered by the category form.
// New categories start with the first one.
var ColorSwatches = []string{"#FFF0E1", "#E8F9E8", "#FFEBEB", "#E8F3FF", "#FFEFEF", "#FFF8E1", "#F0EFFF"}

// InvoiceTypes are the document types accepted as order invoices.
var InvoiceTypes = []string{"application/pdf", "image/*"}

// OrderService is the subset of the order store the orders screen uses.
type OrderService interface {
	catalog.Lister[catalog.Order]
	catalog.Updater[catalog.Order, catalog.OrderPatch]
	catalog.Deleter
}

// CustomerService is the subset of the customer store the customers screen
// uses.
type CustomerService interface {
	catalog.Lister[catalog.Customer]
	catalog.Updater[catalog.Customer, catalog.CustomerPatch]
}

// CategoryScreen lists main categories, searchable by name.
func CategoryScreen(svc catalog.Service[catalog.MainCategory, catalog.CategoryPatch], logger *slog.Logger) *Screen[catalog.MainCategory] {
	return NewScreen(ScreenConfig[catalog.MainCategory]{
		Name:           "category",
		Source:         svc,
		Deleter:        svc,
		ID:             func(m catalog.MainCategory) string { return m.ID },
		SearchFields:   func(m catalog.MainCategory) []string { return []string{m.Name} },
		RefetchOnFocus: true,
		Logger:         logger,
	})
}

// SubCategoryScreen lists sub-categories, searchable by name and parent.
func SubCategoryScreen(svc catalog.Service[catalog.SubCategory, catalog.SubCategoryPatch], logger *slog.Logger) *Screen[catalog.SubCategory] {
	return NewScreen(ScreenConfig[catalog.SubCategory]{
		Name:    "sub-category",
		Source:  svc,
		Deleter: svc,
		ID:      func(s catalog.SubCategory) string { return s.ID },
		SearchFields: func(s catalog.SubCategory) []string {
			return []string{s.Name, s.MainCategoryName}
		},
		RefetchOnFocus: true,
		Logger:         logger,
	})
}

// ProductScreen lists products, searchable by name and category.
func ProductScreen(svc catalog.Service[catalog.Product, catalog.ProductPatch], logger *slog.Logger) *Screen[catalog.Product] {
	return NewScreen(ScreenConfig[catalog.Product]{
		Name:           "product",
		Source:         svc,
		Deleter:        svc,
		ID:             func(p catalog.Product) string { return p.ID },
		SearchFields:   func(p catalog.Product) []string { return []string{p.Name, p.Category} },
		RefetchOnFocus: true,
		Logger:         logger,
	})
}

// OfferScreen lists offers, searchable by title and subtitle.
func OfferScreen(svc catalog.Service[catalog.Offer, catalog.OfferPatch], logger *slog.Logger) *Screen[catalog.Offer] {
	return NewScreen(ScreenConfig[catalog.Offer]{
		Name:           "offer",
		Source:         svc,
		Deleter:        svc,
		ID:             func(o catalog.Offer) string { return o.ID },
		SearchFields:   func(o catalog.Offer) []string { return []string{o.Title, o.Subtitle} },
		RefetchOnFocus: true,
		Logger:         logger,
	})
}

// OrderScreen lists orders, searchable by order ID and customer name. It
// fetches once and does not refetch on focus.
func OrderScreen(svc OrderService, logger *slog.Logger) *Screen[catalog.Order] {
	return NewScreen(ScreenConfig[catalog.Order]{
		Name:         "order",
		Source:       svc,
		Deleter:      svc,
		ID:           func(o catalog.Order) string { return o.ID },
		SearchFields: func(o catalog.Order) []string { return []string{o.ID, o.CustomerName} },
		Logger:       logger,
	})
}

// CustomerScreen lists customers, searchable by name and business name. It
// fetches once and has no delete action.
func CustomerScreen(svc CustomerService, logger *slog.Logger) *Screen[catalog.Customer] {
	return NewScreen(ScreenConfig[catalog.Customer]{
		Name:         "customer",
		Source:       svc,
		ID:           func(c catalog.Customer) string { return c.ID },
		SearchFields: func(c catalog.Customer) []string { return []string{c.Name, c.BusinessName} },
		Logger:       logger,
	})
}

// CategoryForm opens a main category form. New categories start with the
// first color swatch.
func CategoryForm(s *Screen[catalog.MainCategory], svc catalog.Service[catalog.MainCategory, catalog.CategoryPatch], existing *catalog.MainCategory) (*Form[catalog.MainCategory, catalog.CategoryPatch], error) {
	return OpenForm(s, FormSpec[catalog.MainCategory, catalog.CategoryPatch]{
		Defaults: func() catalog.CategoryPatch {
			return catalog.CategoryPatch{Name: catalog.Ptr(""), BgColor: catalog.Ptr(ColorSwatches[0])}
		},
		Hydrate: func(m catalog.MainCategory) catalog.CategoryPatch {
			return catalog.CategoryPatch{Name: catalog.Ptr(m.Name), Image: catalog.Ptr(m.Image), BgColor: catalog.Ptr(m.BgColor)}
		},
		Validate: func(p catalog.CategoryPatch, creating bool) error {
			if creating {
				return p.ValidateCreate()
			}
			return p.ValidateUpdate()
		},
		Create:   svc.Add,
		Update:   svc.Update,
		ID:       func(m catalog.MainCategory) string { return m.ID },
		SetImage: func(p *catalog.CategoryPatch, uri string) { p.Image = catalog.Ptr(uri) },
	}, existing)
}

// SubCategoryForm opens a sub-category form.
func SubCategoryForm(s *Screen[catalog.SubCategory], svc catalog.Service[catalog.SubCategory, catalog.SubCategoryPatch], existing *catalog.SubCategory) (*Form[catalog.SubCategory, catalog.SubCategoryPatch], error) {
	return OpenForm(s, FormSpec[catalog.SubCategory, catalog.SubCategoryPatch]{
		Defaults: func() catalog.SubCategoryPatch {
			return catalog.SubCategoryPatch{Name: catalog.Ptr(""), MainCategoryID: catalog.Ptr("")}
		},
		Hydrate: func(sc catalog.SubCategory) catalog.SubCategoryPatch {
			return catalog.SubCategoryPatch{
				Name:           catalog.Ptr(sc.Name),
				MainCategoryID: catalog.Ptr(sc.MainCategoryID),
				Image:          catalog.Ptr(sc.Image),
			}
		},
		Validate: func(p catalog.SubCategoryPatch, creating bool) error {
			if creating {
				return p.ValidateCreate()
			}
			return p.ValidateUpdate()
		},
		Create:   svc.Add,
		Update:   svc.Update,
		ID:       func(sc catalog.SubCategory) string { return sc.ID },
		SetImage: func(p *catalog.SubCategoryPatch, uri string) { p.Image = catalog.Ptr(uri) },
	}, existing)
}

// ProductForm opens a product form.
func ProductForm(s *Screen[catalog.Product], svc catalog.Service[catalog.Product, catalog.ProductPatch], existing *catalog.Product) (*Form[catalog.Product, catalog.ProductPatch], error) {
	return OpenForm(s, FormSpec[catalog.Product, catalog.ProductPatch]{
		Defaults: func() catalog.ProductPatch {
			return catalog.ProductPatch{Name: catalog.Ptr(""), Unit: catalog.Ptr(catalog.DefaultUnit)}
		},
		Hydrate: func(p catalog.Product) catalog.ProductPatch {
			return catalog.ProductPatch{
				Name:         catalog.Ptr(p.Name),
				Category:     catalog.Ptr(p.Category),
				SubCategory:  catalog.Ptr(p.SubCategory),
				Price:        catalog.Ptr(p.Price),
				Stock:        catalog.Ptr(p.Stock),
				Unit:         catalog.Ptr(p.Unit),
				PackagingQty: catalog.Ptr(p.PackagingQty),
				Origin:       catalog.Ptr(p.Origin),
				Variety:      catalog.Ptr(p.Variety),
				FSSAI:        catalog.Ptr(p.FSSAI),
				Description:  catalog.Ptr(p.Description),
				Image:        catalog.Ptr(p.Image),
			}
		},
		Validate: func(p catalog.ProductPatch, creating bool) error {
			if creating {
				return p.ValidateCreate()
			}
			return p.ValidateUpdate()
		},
		Create:   svc.Add,
		Update:   svc.Update,
		ID:       func(p catalog.Product) string { return p.ID },
		SetImage: func(p *catalog.ProductPatch, uri string) { p.Image = catalog.Ptr(uri) },
	}, existing)
}

// OfferForm opens an offer form. New offers start Active.
func OfferForm(s *Screen[catalog.Offer], svc catalog.Service[catalog.Offer, catalog.OfferPatch], existing *catalog.Offer) (*Form[catalog.Offer, catalog.OfferPatch], error) {
	return OpenForm(s, FormSpec[catalog.Offer, catalog.OfferPatch]{
		Defaults: func() catalog.OfferPatch {
			return catalog.OfferPatch{
				Title:    catalog.Ptr(""),
				Subtitle: catalog.Ptr(""),
				Status:   catalog.Ptr(catalog.OfferActive),
			}
		},
		Hydrate: func(o catalog.Offer) catalog.OfferPatch {
			return catalog.OfferPatch{
				Title:       catalog.Ptr(o.Title),
				Subtitle:    catalog.Ptr(o.Subtitle),
				Description: catalog.Ptr(o.Description),
				Status:      catalog.Ptr(o.Status),
				ExpiryDate:  catalog.Ptr(o.ExpiryDate),
				BannerImage: catalog.Ptr(o.BannerImage),
			}
		},
		Validate: func(p catalog.OfferPatch, creating bool) error {
			if creating {
				return p.ValidateCreate()
			}
			return p.ValidateUpdate()
		},
		Create:   svc.Add,
		Update:   svc.Update,
		ID:       func(o catalog.Offer) string { return o.ID },
		SetImage: func(p *catalog.OfferPatch, uri string) { p.BannerImage = catalog.Ptr(uri) },
	}, existing)
}

// OrderForm opens an edit session for an existing order. Orders cannot be
// created from the panel.
func OrderForm(s *Screen[catalog.Order], svc OrderService, existing *catalog.Order) (*Form[catalog.Order, catalog.OrderPatch], error) {
	return OpenForm(s, FormSpec[catalog.Order, catalog.OrderPatch]{
		Hydrate: func(o catalog.Order) catalog.OrderPatch {
			return catalog.OrderPatch{Status: catalog.Ptr(o.Status)}
		},
		Validate: func(p catalog.OrderPatch, _ bool) error { return p.Validate() },
		Update:   svc.Update,
		ID:       func(o catalog.Order) string { return o.ID },
		SetDocument: func(p *catalog.OrderPatch, doc catalog.DocumentRef) {
			p.InvoiceURL = catalog.Ptr(doc.URI)
		},
		DocumentTypes: InvoiceTypes,
	}, existing)
}

// CustomerForm opens an edit session for a customer's status and credit
// days.
func CustomerForm(s *Screen[catalog.Customer], svc CustomerService, existing *catalog.Customer) (*Form[catalog.Customer, catalog.CustomerPatch], error) {
	return OpenForm(s, FormSpec[catalog.Customer, catalog.CustomerPatch]{
		Hydrate: func(c catalog.Customer) catalog.CustomerPatch {
			return catalog.CustomerPatch{Status: catalog.Ptr(c.Status), CreditDays: catalog.Ptr(c.CreditDays)}
		},
		Validate: func(p catalog.CustomerPatch, _ bool) error { return p.Validate() },
		Update:   svc.Update,
		ID:       func(c catalog.Customer) string { return c.ID },
	}, existing)
}
