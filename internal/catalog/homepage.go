package catalog

import "context"

// Homepage is the read-only list of items featured on the storefront home
// screen. The admin panel only shows how many there are.
type Homepage struct{ c *Catalog }

// List returns the featured items in display order.
func (s *Homepage) List(ctx context.Context) ([]HomepageItem, error) {
	if err := s.c.begin(ctx, "homepage.list"); err != nil {
		return nil, err
	}
	return s.c.homepage.List(), nil
}
