package catalog

import (
	"context"
)

// Customers manages registered business buyers. Customers sign up on the
// buyer app, so there is no Add or Delete here.
type Customers struct {
	c *Catalog
}

var (
	_ Lister[Customer]                 = (*Customers)(nil)
	_ Getter[Customer]                 = (*Customers)(nil)
	_ Updater[Customer, CustomerPatch] = (*Customers)(nil)
)

// List returns every customer.
func (s *Customers) List(ctx context.Context) ([]Customer, error) {
	if err := s.c.begin(ctx, "customers.list"); err != nil {
		return nil, err
	}
	return s.c.customers.List(), nil
}

// Get returns one customer.
func (s *Customers) Get(ctx context.Context, id string) (Customer, bool, error) {
	if err := s.c.begin(ctx, "customers.get"); err != nil {
		return Customer{}, false, err
	}
	cu, ok := s.c.customers.Get(id)
	return cu, ok, nil
}

// Update changes the customer's status or credit days.
func (s *Customers) Update(ctx context.Context, id string, p CustomerPatch) (Customer, error) {
	if err := p.Validate(); err != nil {
		return Customer{}, err
	}
	if err := s.c.begin(ctx, "customers.update"); err != nil {
		return Customer{}, err
	}
	cu, err := s.c.customers.Update(id, func(cur Customer) (Customer, error) {
		setIf(&cur.Status, p.Status)
		setIf(&cur.CreditDays, p.CreditDays)
		return cur, nil
	})
	if err != nil {
		return Customer{}, notFound("update customer", id, err)
	}
	s.c.publish("customer.updated", cu)
	return cu, nil
}

// Verify marks a pending customer as verified.
func (s *Customers) Verify(ctx context.Context, id string) (Customer, error) {
	if err := s.c.begin(ctx, "customers.verify"); err != nil {
		return Customer{}, err
	}
	cu, err := s.c.customers.Update(id, func(cur Customer) (Customer, error) {
		cur.Status = CustomerVerified
		return cur, nil
	})
	if err != nil {
		return Customer{}, notFound("verify customer", id, err)
	}
	s.c.publish("customer.verified", cu)
	return cu, nil
}
