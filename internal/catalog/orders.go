package catalog

import (
	"context"
	"fmt"
)

// Orders manages customer orders. There is no create flow; orders arrive
// with the seed data or through LoadState.
type Orders struct {
	c *Catalog
}

var (
	_ Lister[Order]              = (*Orders)(nil)
	_ Getter[Order]              = (*Orders)(nil)
	_ Updater[Order, OrderPatch] = (*Orders)(nil)
	_ Deleter                    = (*Orders)(nil)
)

// List returns every order, newest first.
func (s *Orders) List(ctx context.Context) ([]Order, error) {
	if err := s.c.begin(ctx, "orders.list"); err != nil {
		return nil, err
	}
	return s.c.orders.List(), nil
}

// Get returns one order.
func (s *Orders) Get(ctx context.Context, id string) (Order, bool, error) {
	if err := s.c.begin(ctx, "orders.get"); err != nil {
		return Order{}, false, err
	}
	o, ok := s.c.orders.Get(id)
	return o, ok, nil
}

// Update merges p into the order. Status changes must be allowed by the
// catalog's transition policy.
func (s *Orders) Update(ctx context.Context, id string, p OrderPatch) (Order, error) {
	if err := p.Validate(); err != nil {
		return Order{}, err
	}
	if err := s.c.begin(ctx, "orders.update"); err != nil {
		return Order{}, err
	}
	o, err := s.c.orders.Update(id, func(cur Order) (Order, error) {
		if p.Status != nil && !s.c.transitions.Allows(cur.Status, *p.Status) {
			return cur, &ValidationError{
				Fields: []string{"status"},
				Reason: fmt.Sprintf("order cannot move from %s to %s", cur.Status, *p.Status),
			}
		}
		setIf(&cur.Status, p.Status)
		setIf(&cur.ShippingMethod, p.ShippingMethod)
		setIf(&cur.PaymentMethod, p.PaymentMethod)
		setIf(&cur.CustomerEmail, p.CustomerEmail)
		setIf(&cur.CustomerPhone, p.CustomerPhone)
		if p.InvoiceURL != nil {
			cur.InvoiceURL = Ptr(*p.InvoiceURL)
		}
		return cur, nil
	})
	if err != nil {
		return Order{}, notFound("update order", id, err)
	}
	s.c.publish("order.updated", o)
	return o, nil
}

// AttachInvoice stores a picked document as the order's invoice. The
// document content is not inspected.
func (s *Orders) AttachInvoice(ctx context.Context, id string, doc DocumentRef) (Order, error) {
	if doc.URI == "" {
		return Order{}, &ValidationError{Fields: []string{"uri"}}
	}
	if err := s.c.begin(ctx, "orders.invoice"); err != nil {
		return Order{}, err
	}
	o, err := s.c.orders.Update(id, func(cur Order) (Order, error) {
		cur.InvoiceURL = Ptr(doc.URI)
		return cur, nil
	})
	if err != nil {
		return Order{}, notFound("attach invoice", id, err)
	}
	s.c.publish("order.invoice_attached", o)
	return o, nil
}

// Delete removes an order. Missing IDs are ignored.
func (s *Orders) Delete(ctx context.Context, id string) error {
	if err := s.c.begin(ctx, "orders.delete"); err != nil {
		return err
	}
	if s.c.orders.Delete(id) {
		s.c.publish("order.deleted", map[string]string{"id": id})
	}
	return nil
}
