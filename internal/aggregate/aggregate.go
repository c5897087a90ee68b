// Package aggregate computes the summary figures shown above each admin
// list. Every function is pure and total: it never fails and unknown status
// values simply fall outside every bucket.
package aggregate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// Group is one parent name and its sub-categories in list order.
type Group struct {
	Parent        string                `json:"parent"`
	SubCategories []catalog.SubCategory `json:"subCategories"`
}

// Groups is an ordered mapping from parent name to sub-categories. Keys
// keep first-seen order.
type Groups []Group

// GroupByParent groups sub-categories by their joined parent name.
// Orphans land under "".
func GroupByParent(subs []catalog.SubCategory) Groups {
	index := make(map[string]int)
	var out Groups
	for _, sc := range subs {
		i, ok := index[sc.MainCategoryName]
		if !ok {
			i = len(out)
			index[sc.MainCategoryName] = i
			out = append(out, Group{Parent: sc.MainCategoryName})
		}
		out[i].SubCategories = append(out[i].SubCategories, sc)
	}
	return out
}

// Grouped lists sub-categories and groups them by parent name.
func Grouped(ctx context.Context, subs catalog.Lister[catalog.SubCategory]) (Groups, error) {
	list, err := subs.List(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByParent(list), nil
}

// Get returns the members for a parent name.
func (g Groups) Get(parent string) ([]catalog.SubCategory, bool) {
	for _, grp := range g {
		if grp.Parent == parent {
			return grp.SubCategories, true
		}
	}
	return nil, false
}

// Keys returns the parent names in order.
func (g Groups) Keys() []string {
	keys := make([]string, len(g))
	for i, grp := range g {
		keys[i] = grp.Parent
	}
	return keys
}

// Size is the total number of grouped sub-categories.
func (g Groups) Size() int {
	n := 0
	for _, grp := range g {
		n += len(grp.SubCategories)
	}
	return n
}

// CategoryStats summarizes the categories screen.
type CategoryStats struct {
	MainCategories int `json:"mainCategories"`
	SubCategories  int `json:"subCategories"`
	HomepageItems  int `json:"homepageItems"`
}

// CategoryCounts counts main categories, grouped sub-categories and
// featured homepage items.
func CategoryCounts(mains []catalog.MainCategory, groups Groups, homepage []catalog.HomepageItem) CategoryStats {
	return CategoryStats{
		MainCategories: len(mains),
		SubCategories:  groups.Size(),
		HomepageItems:  len(homepage),
	}
}

// ProductStats summarizes the products screen.
type ProductStats struct {
	Total               int             `json:"total"`
	LowStock            int             `json:"lowStock"`
	OutOfStock          int             `json:"outOfStock"`
	TotalInventoryValue decimal.Decimal `json:"totalInventoryValue"`
}

// Products counts stock levels and sums price times stock.
func Products(ps []catalog.Product) ProductStats {
	st := ProductStats{Total: len(ps), TotalInventoryValue: decimal.Zero}
	for _, p := range ps {
		switch p.StockStatus {
		case catalog.LowStock:
			st.LowStock++
		case catalog.OutOfStock:
			st.OutOfStock++
		}
		st.TotalInventoryValue = st.TotalInventoryValue.Add(p.InventoryValue())
	}
	return st
}

// OrderStats summarizes the orders screen.
type OrderStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InTransit int `json:"inTransit"`
	Delivered int `json:"delivered"`
}

// Orders partitions orders by status.
func Orders(os []catalog.Order) OrderStats {
	st := OrderStats{Total: len(os)}
	for _, o := range os {
		switch o.Status {
		case catalog.OrderPending:
			st.Pending++
		case catalog.OrderInTransit:
			st.InTransit++
		case catalog.OrderDelivered:
			st.Delivered++
		}
	}
	return st
}

// OfferStats summarizes the offers screen.
type OfferStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Offers counts active offers.
func Offers(os []catalog.Offer) OfferStats {
	st := OfferStats{Total: len(os)}
	for _, o := range os {
		if o.Status == catalog.OfferActive {
			st.Active++
		}
	}
	return st
}

// CustomerStats summarizes the customers screen.
type CustomerStats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
}

// Customers counts verified and pending customers.
func Customers(cs []catalog.Customer) CustomerStats {
	st := CustomerStats{Total: len(cs)}
	for _, c := range cs {
		switch c.Status {
		case catalog.CustomerVerified:
			st.Verified++
		case catalog.CustomerPending:
			st.Pending++
		}
	}
	return st
}

// Summary is every screen's aggregates in one value.
type Summary struct {
	Categories CategoryStats `json:"categories"`
	Products   ProductStats  `json:"products"`
	Orders     OrderStats    `json:"orders"`
	Offers     OfferStats    `json:"offers"`
	Customers  CustomerStats `json:"customers"`
}

// Dashboard loads every collection from c and computes the summary.
func Dashboard(ctx context.Context, c *catalog.Catalog) (Summary, error) {
	mains, err := c.Categories().List(ctx)
	if err != nil {
		return Summary{}, err
	}
	groups, err := Grouped(ctx, c.SubCategories())
	if err != nil {
		return Summary{}, err
	}
	homepage, err := c.Homepage().List(ctx)
	if err != nil {
		return Summary{}, err
	}
	products, err := c.Products().List(ctx)
	if err != nil {
		return Summary{}, err
	}
	orders, err := c.Orders().List(ctx)
	if err != nil {
		return Summary{}, err
	}
	offers, err := c.Offers().List(ctx)
	if err != nil {
		return Summary{}, err
	}
	customers, err := c.Customers().List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Categories: CategoryCounts(mains, groups, homepage),
		Products:   Products(products),
		Orders:     Orders(orders),
		Offers:     Offers(offers),
		Customers:  Customers(customers),
	}, nil
}
