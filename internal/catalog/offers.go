package catalog

import (
	"context"
)

// Offers manages promotional banners.
type Offers struct {
	c *Catalog
}

var _ Service[Offer, OfferPatch] = (*Offers)(nil)

// List returns every offer, newest first.
func (s *Offers) List(ctx context.Context) ([]Offer, error) {
	if err := s.c.begin(ctx, "offers.list"); err != nil {
		return nil, err
	}
	return s.c.offers.List(), nil
}

// Get returns one offer.
func (s *Offers) Get(ctx context.Context, id string) (Offer, bool, error) {
	if err := s.c.begin(ctx, "offers.get"); err != nil {
		return Offer{}, false, err
	}
	o, ok := s.c.offers.Get(id)
	return o, ok, nil
}

// Add creates an offer. Status defaults to Active and the expiry date to
// today on the catalog clock.
func (s *Offers) Add(ctx context.Context, p OfferPatch) (Offer, error) {
	if err := p.ValidateCreate(); err != nil {
		return Offer{}, err
	}
	if err := s.c.begin(ctx, "offers.add"); err != nil {
		return Offer{}, err
	}
	o := Offer{
		ID:          s.c.offers.NextID(),
		Title:       *p.Title,
		Subtitle:    *p.Subtitle,
		Description: deref(p.Description),
		Status:      OfferActive,
		ExpiryDate:  orDefault(p.ExpiryDate, s.c.Clock.Now().Format(ExpiryDateLayout)),
		BannerImage: orDefault(p.BannerImage, DefaultOfferBanner),
	}
	setIf(&o.Status, p.Status)
	s.c.offers.Prepend(o.ID, o)
	s.c.publish("offer.created", o)
	return o, nil
}

// Update merges p into the offer. An empty banner keeps the current image.
func (s *Offers) Update(ctx context.Context, id string, p OfferPatch) (Offer, error) {
	if err := p.ValidateUpdate(); err != nil {
		return Offer{}, err
	}
	if err := s.c.begin(ctx, "offers.update"); err != nil {
		return Offer{}, err
	}
	o, err := s.c.offers.Update(id, func(cur Offer) (Offer, error) {
		setIf(&cur.Title, p.Title)
		setIf(&cur.Subtitle, p.Subtitle)
		setIf(&cur.Description, p.Description)
		setIf(&cur.Status, p.Status)
		cur.ExpiryDate = orDefault(p.ExpiryDate, cur.ExpiryDate)
		cur.BannerImage = orDefault(p.BannerImage, cur.BannerImage)
		return cur, nil
	})
	if err != nil {
		return Offer{}, notFound("update offer", id, err)
	}
	s.c.publish("offer.updated", o)
	return o, nil
}

// Delete removes an offer. Missing IDs are ignored.
func (s *Offers) Delete(ctx context.Context, id string) error {
	if err := s.c.begin(ctx, "offers.delete"); err != nil {
		return err
	}
	if s.c.offers.Delete(id) {
		s.c.publish("offer.deleted", map[string]string{"id": id})
	}
	return nil
}
