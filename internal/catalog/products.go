package catalog

import (
	"context"
)

// Products manages the product catalog. StockStatus is always derived from
// Stock.
type Products struct {
	c *Catalog
}

var _ Service[Product, ProductPatch] = (*Products)(nil)

// List returns every product, newest first.
func (s *Products) List(ctx context.Context) ([]Product, error) {
	if err := s.c.begin(ctx, "products.list"); err != nil {
		return nil, err
	}
	return s.c.products.List(), nil
}

// Get returns one product.
func (s *Products) Get(ctx context.Context, id string) (Product, bool, error) {
	if err := s.c.begin(ctx, "products.get"); err != nil {
		return Product{}, false, err
	}
	p, ok := s.c.products.Get(id)
	return p, ok, nil
}

// Add creates a product. Unit defaults to kg and image to the placeholder.
func (s *Products) Add(ctx context.Context, p ProductPatch) (Product, error) {
	if err := p.ValidateCreate(); err != nil {
		return Product{}, err
	}
	if err := s.c.begin(ctx, "products.add"); err != nil {
		return Product{}, err
	}
	prod := Product{
		ID:    s.c.products.NextID(),
		Unit:  DefaultUnit,
		Image: DefaultProductImage,
	}
	prod = p.apply(prod)
	s.c.products.Prepend(prod.ID, prod)
	s.c.publish("product.created", prod)
	return prod, nil
}

// Update merges p into the product and re-derives its stock status.
func (s *Products) Update(ctx context.Context, id string, p ProductPatch) (Product, error) {
	if err := p.ValidateUpdate(); err != nil {
		return Product{}, err
	}
	if err := s.c.begin(ctx, "products.update"); err != nil {
		return Product{}, err
	}
	prod, err := s.c.products.Update(id, func(cur Product) (Product, error) {
		return p.apply(cur), nil
	})
	if err != nil {
		return Product{}, notFound("update product", id, err)
	}
	s.c.publish("product.updated", prod)
	return prod, nil
}

// Delete removes a product. Missing IDs are ignored.
func (s *Products) Delete(ctx context.Context, id string) error {
	if err := s.c.begin(ctx, "products.delete"); err != nil {
		return err
	}
	if s.c.products.Delete(id) {
		s.c.publish("product.deleted", map[string]string{"id": id})
	}
	return nil
}

func (p ProductPatch) apply(cur Product) Product {
	setIf(&cur.Name, p.Name)
	setIf(&cur.Category, p.Category)
	setIf(&cur.SubCategory, p.SubCategory)
	setIf(&cur.Price, p.Price)
	setIf(&cur.Stock, p.Stock)
	setIf(&cur.PackagingQty, p.PackagingQty)
	setIf(&cur.Origin, p.Origin)
	setIf(&cur.Variety, p.Variety)
	setIf(&cur.FSSAI, p.FSSAI)
	setIf(&cur.Description, p.Description)
	cur.Unit = orDefault(p.Unit, cur.Unit)
	cur.Image = orDefault(p.Image, cur.Image)
	cur.StockStatus = DeriveStockStatus(cur.Stock)
	return cur
}

// setIf overwrites *dst when src is non-nil.
func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
