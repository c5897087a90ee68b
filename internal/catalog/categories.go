package catalog

import (
	"context"
	"fmt"
)

// Categories manages main categories.
type Categories struct {
	c *Catalog
}

var _ Service[MainCategory, CategoryPatch] = (*Categories)(nil)

// List returns every main category, newest first, with sub-category counts.
func (s *Categories) List(ctx context.Context) ([]MainCategory, error) {
	if err := s.c.begin(ctx, "categories.list"); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// Get returns one main category with its sub-category count.
func (s *Categories) Get(ctx context.Context, id string) (MainCategory, bool, error) {
	if err := s.c.begin(ctx, "categories.get"); err != nil {
		return MainCategory{}, false, err
	}
	m, ok := s.c.mains.Get(id)
	if !ok {
		return MainCategory{}, false, nil
	}
	m.SubCategoryCount = s.c.childCount(id)
	return m, true, nil
}

// Add creates a main category with placeholder image and color when omitted.
func (s *Categories) Add(ctx context.Context, p CategoryPatch) (MainCategory, error) {
	if err := p.ValidateCreate(); err != nil {
		return MainCategory{}, err
	}
	if err := s.c.begin(ctx, "categories.add"); err != nil {
		return MainCategory{}, err
	}
	m := MainCategory{
		ID:      s.c.mains.NextID(),
		Name:    *p.Name,
		Image:   orDefault(p.Image, DefaultCategoryImage),
		BgColor: orDefault(p.BgColor, DefaultBgColor),
	}
	s.c.mains.Prepend(m.ID, m)
	s.c.publish("category.created", m)
	return m, nil
}

// Update merges p into the category. Empty image or color keep the current
// value.
func (s *Categories) Update(ctx context.Context, id string, p CategoryPatch) (MainCategory, error) {
	if err := p.ValidateUpdate(); err != nil {
		return MainCategory{}, err
	}
	if err := s.c.begin(ctx, "categories.update"); err != nil {
		return MainCategory{}, err
	}
	m, err := s.c.mains.Update(id, func(cur MainCategory) (MainCategory, error) {
		if p.Name != nil {
			cur.Name = *p.Name
		}
		cur.Image = orDefault(p.Image, cur.Image)
		cur.BgColor = orDefault(p.BgColor, cur.BgColor)
		return cur, nil
	})
	if err != nil {
		return MainCategory{}, notFound("update category", id, err)
	}
	m.SubCategoryCount = s.c.childCount(id)
	s.c.publish("category.updated", m)
	return m, nil
}

// Delete removes a main category and applies the delete policy to its
// sub-categories. Cascade is sequential, not atomic.
func (s *Categories) Delete(ctx context.Context, id string) error {
	if err := s.c.begin(ctx, "categories.delete"); err != nil {
		return err
	}
	children := s.c.subs.FilterIDs(func(_ string, sc SubCategory) bool {
		return sc.MainCategoryID == id
	})
	if len(children) > 0 && s.c.deletePolicy == DeleteRestrict {
		if _, ok := s.c.mains.Get(id); ok {
			return fmt.Errorf("delete category %s: %d sub-categories remain: %w", id, len(children), ErrConflict)
		}
	}
	if !s.c.mains.Delete(id) {
		return nil
	}
	if s.c.deletePolicy == DeleteCascade {
		for _, sid := range children {
			if s.c.subs.Delete(sid) {
				s.c.publish("subcategory.deleted", map[string]string{"id": sid})
			}
		}
	}
	s.c.publish("category.deleted", map[string]string{"id": id})
	return nil
}

func (s *Categories) snapshot() []MainCategory {
	counts := make(map[string]int)
	for _, sc := range s.c.subs.List() {
		counts[sc.MainCategoryID]++
	}
	mains := s.c.mains.List()
	for i := range mains {
		mains[i].SubCategoryCount = counts[mains[i].ID]
	}
	return mains
}

func (c *Catalog) childCount(mainID string) int {
	return len(c.subs.FilterIDs(func(_ string, sc SubCategory) bool {
		return sc.MainCategoryID == mainID
	}))
}

// SubCategories manages sub-categories.
type SubCategories struct {
	c *Catalog
}

var _ Service[SubCategory, SubCategoryPatch] = (*SubCategories)(nil)

// List returns every sub-category, newest first, with the parent name joined.
func (s *SubCategories) List(ctx context.Context) ([]SubCategory, error) {
	if err := s.c.begin(ctx, "subcategories.list"); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// Get returns one sub-category with the parent name joined.
func (s *SubCategories) Get(ctx context.Context, id string) (SubCategory, bool, error) {
	if err := s.c.begin(ctx, "subcategories.get"); err != nil {
		return SubCategory{}, false, err
	}
	sc, ok := s.c.subs.Get(id)
	if !ok {
		return SubCategory{}, false, nil
	}
	return s.c.join(sc), true, nil
}

// Add creates a sub-category under an existing main category.
func (s *SubCategories) Add(ctx context.Context, p SubCategoryPatch) (SubCategory, error) {
	if err := p.ValidateCreate(); err != nil {
		return SubCategory{}, err
	}
	if err := s.c.begin(ctx, "subcategories.add"); err != nil {
		return SubCategory{}, err
	}
	if _, ok := s.c.mains.Get(*p.MainCategoryID); !ok {
		return SubCategory{}, fmt.Errorf("add sub-category: main category %s: %w", *p.MainCategoryID, ErrInvalidReference)
	}
	sc := SubCategory{
		ID:             s.c.subs.NextID(),
		MainCategoryID: *p.MainCategoryID,
		Name:           *p.Name,
		Image:          orDefault(p.Image, DefaultSubCategoryImage),
	}
	s.c.subs.Prepend(sc.ID, sc)
	sc = s.c.join(sc)
	s.c.publish("subcategory.created", sc)
	return sc, nil
}

// Update merges p into the sub-category. Re-parenting to an unknown main
// category fails with ErrInvalidReference.
func (s *SubCategories) Update(ctx context.Context, id string, p SubCategoryPatch) (SubCategory, error) {
	if err := p.ValidateUpdate(); err != nil {
		return SubCategory{}, err
	}
	if err := s.c.begin(ctx, "subcategories.update"); err != nil {
		return SubCategory{}, err
	}
	sc, err := s.c.subs.Update(id, func(cur SubCategory) (SubCategory, error) {
		if p.MainCategoryID != nil {
			if _, ok := s.c.mains.Get(*p.MainCategoryID); !ok {
				return cur, fmt.Errorf("main category %s: %w", *p.MainCategoryID, ErrInvalidReference)
			}
			cur.MainCategoryID = *p.MainCategoryID
		}
		if p.Name != nil {
			cur.Name = *p.Name
		}
		cur.Image = orDefault(p.Image, cur.Image)
		return cur, nil
	})
	if err != nil {
		return SubCategory{}, notFound("update sub-category", id, err)
	}
	sc = s.c.join(sc)
	s.c.publish("subcategory.updated", sc)
	return sc, nil
}

// Delete removes a sub-category. Missing IDs are ignored.
func (s *SubCategories) Delete(ctx context.Context, id string) error {
	if err := s.c.begin(ctx, "subcategories.delete"); err != nil {
		return err
	}
	if s.c.subs.Delete(id) {
		s.c.publish("subcategory.deleted", map[string]string{"id": id})
	}
	return nil
}

func (s *SubCategories) snapshot() []SubCategory {
	names := make(map[string]string)
	for _, m := range s.c.mains.List() {
		names[m.ID] = m.Name
	}
	subs := s.c.subs.List()
	for i := range subs {
		subs[i].MainCategoryName = names[subs[i].MainCategoryID]
	}
	return subs
}

// join fills MainCategoryName from the authoritative parent record.
func (c *Catalog) join(sc SubCategory) SubCategory {
	sc.MainCategoryName = ""
	if m, ok := c.mains.Get(sc.MainCategoryID); ok {
		sc.MainCategoryName = m.Name
	}
	return sc
}
