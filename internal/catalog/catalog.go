package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	pkgstore "github.com/wondertwin-ai/twin-qwikbasket/pkg/store"
)

// Lister returns a snapshot of a collection.
type Lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// Getter looks a record up by ID. A missing record is (zero, false, nil).
type Getter[T any] interface {
	Get(ctx context.Context, id string) (T, bool, error)
}

// Creator adds a record built from a patch.
type Creator[T, P any] interface {
	Add(ctx context.Context, patch P) (T, error)
}

// Updater merges a patch over an existing record.
type Updater[T, P any] interface {
	Update(ctx context.Context, id string, patch P) (T, error)
}

// Deleter removes a record. Deleting a missing ID is not an error.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Service is the full CRUD contract shared by categories, sub-categories,
// products and offers.
type Service[T, P any] interface {
	Lister[T]
	Getter[T]
	Creator[T, P]
	Updater[T, P]
	Deleter
}

// EventSink receives a notification after every successful mutation.
type EventSink interface {
	Publish(eventType string, data any)
}

// DeletePolicy decides what happens to sub-categories when their main
// category is deleted.
type DeletePolicy string

const (
	// DeleteOrphan leaves sub-categories in place with a dangling parent ID.
	DeleteOrphan DeletePolicy = "orphan"
	// DeleteCascade removes the sub-categories too.
	DeleteCascade DeletePolicy = "cascade"
	// DeleteRestrict refuses the delete while sub-categories exist.
	DeleteRestrict DeletePolicy = "restrict"
)

// ParseDeletePolicy parses a policy name. Empty means DeleteOrphan.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch DeletePolicy(s) {
	case "", DeleteOrphan:
		return DeleteOrphan, nil
	case DeleteCascade, DeleteRestrict:
		return DeletePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown delete policy %q", s)
	}
}

// TransitionPolicy decides which order status changes are allowed.
type TransitionPolicy string

const (
	// FreeTransitions allows any known status to move to any known status.
	FreeTransitions TransitionPolicy = "free"
	// ForwardTransitions only allows Pending -> In Transit -> Delivered,
	// one step at a time.
	ForwardTransitions TransitionPolicy = "forward"
)

// ParseTransitionPolicy parses a policy name. Empty means FreeTransitions.
func ParseTransitionPolicy(s string) (TransitionPolicy, error) {
	switch TransitionPolicy(s) {
	case "", FreeTransitions:
		return FreeTransitions, nil
	case ForwardTransitions:
		return ForwardTransitions, nil
	default:
		return "", fmt.Errorf("unknown transition policy %q", s)
	}
}

// Allows reports whether an order may move from one status to another.
func (p TransitionPolicy) Allows(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if p != ForwardTransitions || !from.Valid() {
		return true
	}
	switch from {
	case OrderPending:
		return to == OrderInTransit
	case OrderInTransit:
		return to == OrderDelivered
	}
	return false
}

// Options configures a Catalog.
type Options struct {
	Simulator    *Simulator
	Logger       *slog.Logger
	Events       EventSink
	DeletePolicy DeletePolicy
	Transitions  TransitionPolicy
	// Seed loads the built-in fixture on New and on every Reset.
	Seed bool
	// StoreOptions are passed to every backing store, e.g. to make IDs
	// deterministic in tests.
	StoreOptions []pkgstore.Option
}

// Catalog is the repository that owns every entity collection. Construct one
// per process (or per test) and inject it; callers only ever see copies.
type Catalog struct {
	mains     *pkgstore.Store[MainCategory]
	subs      *pkgstore.Store[SubCategory]
	products  *pkgstore.Store[Product]
	orders    *pkgstore.Store[Order]
	offers    *pkgstore.Store[Offer]
	customers *pkgstore.Store[Customer]
	homepage  *pkgstore.Store[HomepageItem]
	Clock     *pkgstore.Clock

	sim          *Simulator
	logger       *slog.Logger
	events       EventSink
	deletePolicy DeletePolicy
	transitions  TransitionPolicy
	seed         bool
}

// New creates a Catalog. A nil Simulator means no latency and no failures.
func New(opts Options) (*Catalog, error) {
	if opts.Simulator == nil {
		opts.Simulator = NewSimulator(0, 0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = DeleteOrphan
	}
	if opts.Transitions == "" {
		opts.Transitions = FreeTransitions
	}
	so := opts.StoreOptions
	c := &Catalog{
		mains:        pkgstore.New[MainCategory]("CAT", so...),
		subs:         pkgstore.New[SubCategory]("SUB", so...),
		products:     pkgstore.New[Product]("PROD", so...),
		orders:       pkgstore.New[Order]("ORD", so...),
		offers:       pkgstore.New[Offer]("OFFER", so...),
		customers:    pkgstore.New[Customer]("CUST", so...),
		homepage:     pkgstore.New[HomepageItem]("HOME", so...),
		Clock:        pkgstore.NewClock(),
		sim:          opts.Simulator,
		logger:       opts.Logger,
		events:       opts.Events,
		deletePolicy: opts.DeletePolicy,
		transitions:  opts.Transitions,
		seed:         opts.Seed,
	}
	if c.seed {
		if err := c.loadSeed(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Simulator returns the latency and failure simulator.
func (c *Catalog) Simulator() *Simulator { return c.sim }

// Categories returns the main category service.
func (c *Catalog) Categories() *Categories { return &Categories{c: c} }

// SubCategories returns the sub-category service.
func (c *Catalog) SubCategories() *SubCategories { return &SubCategories{c: c} }

// Products returns the product service.
func (c *Catalog) Products() *Products { return &Products{c: c} }

// Orders returns the order service.
func (c *Catalog) Orders() *Orders { return &Orders{c: c} }

// Offers returns the offer service.
func (c *Catalog) Offers() *Offers { return &Offers{c: c} }

// Customers returns the customer service.
func (c *Catalog) Customers() *Customers { return &Customers{c: c} }

// Homepage returns the featured homepage items.
func (c *Catalog) Homepage() *Homepage { return &Homepage{c: c} }

// begin runs the simulator for op and wraps any failure with the op name.
func (c *Catalog) begin(ctx context.Context, op string) error {
	if err := c.sim.Do(ctx, op); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Catalog) publish(eventType string, data any) {
	c.logger.Debug("catalog mutation", "event", eventType)
	if c.events != nil {
		c.events.Publish(eventType, data)
	}
}

// notFound converts the backing store's miss into ErrNotFound.
func notFound(op, id string, err error) error {
	if errors.Is(err, pkgstore.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

// State is the JSON/YAML-serializable content of every collection, in
// display order.
type State struct {
	MainCategories []MainCategory `json:"mainCategories" yaml:"mainCategories"`
	SubCategories  []SubCategory  `json:"subCategories" yaml:"subCategories"`
	Products       []Product      `json:"products" yaml:"products"`
	Orders         []Order        `json:"orders" yaml:"orders"`
	Offers         []Offer        `json:"offers" yaml:"offers"`
	Customers      []Customer     `json:"customers" yaml:"customers"`
	HomepageItems  []HomepageItem `json:"homepageItems" yaml:"homepageItems"`
}

// Snapshot returns the full state with computed fields filled in. It
// bypasses the simulator. Used by the admin /state endpoint.
func (c *Catalog) Snapshot() any {
	return State{
		MainCategories: c.Categories().snapshot(),
		SubCategories:  c.SubCategories().snapshot(),
		Products:       c.products.List(),
		Orders:         c.orders.List(),
		Offers:         c.offers.List(),
		Customers:      c.customers.List(),
		HomepageItems:  c.homepage.List(),
	}
}

// LoadState replaces the full state from a JSON body.
func (c *Catalog) LoadState(data []byte) error {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	c.Load(st)
	return nil
}

// Load replaces every collection with st. Computed fields in st are ignored
// and product stock status is re-derived.
func (c *Catalog) Load(st State) {
	for i := range st.MainCategories {
		st.MainCategories[i].SubCategoryCount = 0
	}
	for i := range st.SubCategories {
		st.SubCategories[i].MainCategoryName = ""
	}
	for i := range st.Products {
		st.Products[i].StockStatus = DeriveStockStatus(st.Products[i].Stock)
	}
	c.mains.Load(st.MainCategories, func(m MainCategory) string { return m.ID })
	c.subs.Load(st.SubCategories, func(s SubCategory) string { return s.ID })
	c.products.Load(st.Products, func(p Product) string { return p.ID })
	c.orders.Load(st.Orders, func(o Order) string { return o.ID })
	c.offers.Load(st.Offers, func(o Offer) string { return o.ID })
	c.customers.Load(st.Customers, func(cu Customer) string { return cu.ID })
	c.homepage.Load(st.HomepageItems, func(h HomepageItem) string { return h.ID })
}

// Reset clears all state and reloads the seed fixture when configured.
func (c *Catalog) Reset() {
	c.mains.Reset()
	c.subs.Reset()
	c.products.Reset()
	c.orders.Reset()
	c.offers.Reset()
	c.customers.Reset()
	c.homepage.Reset()
	c.Clock.Reset()
	c.sim.Reset()
	if c.seed {
		if err := c.loadSeed(); err != nil {
			c.logger.Error("failed to reload seed data", "err", err)
		}
	}
}
