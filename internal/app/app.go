// Package app wires the catalog, HTTP API, session stub, change feed and
// admin plane into one runnable twin.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/api"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/config"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/session"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/admin"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/store"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/webhook"
)

// App is a fully wired twin.
type App struct {
	Twin     *twincore.Twin
	Catalog  *catalog.Catalog
	Events   *webhook.Dispatcher
	Sessions *session.Manager
	Gate     *session.Handler

	seedFile []byte
}

// Option adjusts construction.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	storeOps []store.Option
}

// WithLogger replaces the default stdout JSON logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithStoreOptions passes options to every backing store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) { o.storeOps = append(o.storeOps, opts...) }
}

// Build constructs an App from cfg. cfg must already be validated.
func Build(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = twincore.NewLogger(os.Stdout, cfg.Verbose)
	}

	sim := catalog.NewSimulator(cfg.Latency, cfg.FailRate)
	twin := twincore.NewWithLogger(&cfg.Config, sim, o.logger)

	events := webhook.NewDispatcher(webhook.Config{
		URL:         cfg.WebhookURL,
		Secret:      cfg.WebhookSecret,
		Logger:      o.logger,
		AutoDeliver: cfg.WebhookURL != "",
	})
	twin.OnWebhookURLChange(events.SetURL)

	deletePolicy, transitions := cfg.CatalogPolicies()
	cat, err := catalog.New(catalog.Options{
		Simulator:    sim,
		Logger:       o.logger,
		Events:       events,
		DeletePolicy: deletePolicy,
		Transitions:  transitions,
		Seed:         cfg.Seed && cfg.SeedFile == "",
		StoreOptions: o.storeOps,
	})
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	var seedFile []byte
	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		if err := cat.LoadState(data); err != nil {
			return nil, fmt.Errorf("loading seed file: %w", err)
		}
		seedFile = data
		o.logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	sessions, err := session.NewManager(session.Config{
		Secret:   []byte(cfg.JWTSecret),
		CodeTTL:  cfg.OTPTTL,
		TokenTTL: cfg.TokenTTL,
		Clock:    cat.Clock,
		Logger:   o.logger,
	})
	if err != nil {
		return nil, err
	}
	gate := session.NewHandler(sessions)
	gate.SetRequired(cfg.RequireSession)

	apiOpts := []api.Option{api.WithGate(gate.Gate)}
	if cfg.RateLimit > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)))
	}
	twin.Middleware().SetClock(cat.Clock.Now)
	api.NewHandler(cat, twin.Middleware(), apiOpts...).Routes(twin.Router)
	gate.Routes(twin.Router)

	a := &App{Twin: twin, Catalog: cat, Events: events, Sessions: sessions, Gate: gate, seedFile: seedFile}

	adminHandler := admin.NewHandler(resettable{a}, twin.Middleware(), cat.Clock)
	adminHandler.SetFlusher(events)
	adminHandler.SetConfigProvider(config.Runtime{Base: twin, Gate: gate})
	adminHandler.SetOpFaulter(sim)
	adminHandler.Routes(twin.Router)

	return a, nil
}

// resettable extends the catalog's admin state with the change feed and
// pending login codes, so /admin/reset clears everything. A seed file is
// reloaded after the reset.
type resettable struct{ a *App }

func (r resettable) Snapshot() any               { return r.a.Catalog.Snapshot() }
func (r resettable) LoadState(data []byte) error { return r.a.Catalog.LoadState(data) }

func (r resettable) Reset() {
	r.a.Catalog.Reset()
	if r.a.seedFile != nil {
		if err := r.a.Catalog.LoadState(r.a.seedFile); err != nil {
			r.a.Twin.Logger.Error("failed to reload seed file", "err", err)
		}
	}
	r.a.Events.Reset()
	r.a.Sessions.Reset()
}
