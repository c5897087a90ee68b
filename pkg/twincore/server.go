// Package twincore provides the base HTTP server, middleware chain, and
// response helpers for the qwikbasket twin.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Config holds the server settings shared by every twin binary.
type Config struct {
	Port       int           `yaml:"port"`
	Latency    time.Duration `yaml:"latency"`
	FailRate   float64       `yaml:"fail_rate"`
	WebhookURL string        `yaml:"webhook_url"`
	SeedFile   string        `yaml:"seed_file"`
	Verbose    bool          `yaml:"verbose"`
	Name       string        `yaml:"name"` // twin name for logging
}

// RegisterFlags binds the common CLI flags to cfg. Values already in cfg
// become the flag defaults.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.DurationVar(&cfg.Latency, "latency", cfg.Latency, "Base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", cfg.FailRate, "Random failure rate 0.0-1.0")
	fs.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "URL to send change events to")
	fs.StringVar(&cfg.SeedFile, "seed-file", cfg.SeedFile, "Path to JSON fixture for initial state")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable request/response logging")
}

// Simulation is the latency and failure control a twin exposes at runtime.
// The catalog simulator implements it.
type Simulation interface {
	Latency() time.Duration
	SetLatency(time.Duration)
	FailRate() float64
	SetFailRate(float64)
}

// Twin is the base server. It wraps a chi router with common middleware and
// provides lifecycle management.
type Twin struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	mw     *Middleware
	sim    Simulation

	mu           sync.RWMutex // protects Config fields during runtime updates
	onWebhookURL func(string)
}

// NewLogger returns the JSON logger used by every twin process.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// New creates a Twin. The configured latency and fail rate are applied to
// sim, which then owns them.
func New(cfg *Config, sim Simulation) *Twin {
	return NewWithLogger(cfg, sim, NewLogger(os.Stdout, cfg.Verbose))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *Config, sim Simulation, logger *slog.Logger) *Twin {
	r := chi.NewRouter()
	mw := NewMiddleware(logger)
	mw.SetVerbose(cfg.Verbose)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)

	if sim != nil {
		sim.SetLatency(cfg.Latency)
		sim.SetFailRate(cfg.FailRate)
	}

	return &Twin{
		Config: cfg,
		Router: r,
		Logger: logger,
		mw:     mw,
		sim:    sim,
	}
}

// Middleware returns the middleware instance for external access (e.g., fault injection).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// OnWebhookURLChange registers a callback run when webhook_url is updated
// through UpdateConfig.
func (t *Twin) OnWebhookURLChange(fn func(url string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWebhookURL = fn
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (t *Twin) GetConfig() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	latency, failRate := t.Config.Latency, t.Config.FailRate
	if t.sim != nil {
		latency, failRate = t.sim.Latency(), t.sim.FailRate()
	}
	return map[string]any{
		"name":        t.Config.Name,
		"port":        t.Config.Port,
		"latency":     latency.String(),
		"fail_rate":   failRate,
		"webhook_url": t.Config.WebhookURL,
		"verbose":     t.Config.Verbose,
	}
}

// runtimeSetters parse one runtime-tunable key and return the change to
// apply under t.mu. name and port are fixed once the listener is up.
var runtimeSetters = map[string]func(v any) (func(t *Twin), error){
	"latency": func(v any) (func(t *Twin), error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("latency must be a duration string")
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid latency duration: %w", err)
		}
		if d < 0 {
			return nil, errors.New("latency must not be negative")
		}
		return func(t *Twin) {
			t.Config.Latency = d
			if t.sim != nil {
				t.sim.SetLatency(d)
			}
		}, nil
	},
	"fail_rate": func(v any) (func(t *Twin), error) {
		f, ok := v.(float64)
		if !ok {
			return nil, errors.New("fail_rate must be a number")
		}
		if f < 0 || f > 1 {
			return nil, errors.New("fail_rate must be between 0.0 and 1.0")
		}
		return func(t *Twin) {
			t.Config.FailRate = f
			if t.sim != nil {
				t.sim.SetFailRate(f)
			}
		}, nil
	},
	"verbose": func(v any) (func(t *Twin), error) {
		b, ok := v.(bool)
		if !ok {
			return nil, errors.New("verbose must be a boolean")
		}
		return func(t *Twin) {
			t.Config.Verbose = b
			t.mw.SetVerbose(b)
		}, nil
	},
	"webhook_url": func(v any) (func(t *Twin), error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("webhook_url must be a string")
		}
		return func(t *Twin) {
			t.Config.WebhookURL = s
			if t.onWebhookURL != nil {
				t.onWebhookURL(s)
			}
		}, nil
	},
}

// UpdateConfig applies runtime changes for latency, fail_rate, verbose and
// webhook_url. Nothing is applied unless every key validates.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	apply := make([]func(*Twin), 0, len(updates))
	for k, v := range updates {
		set, ok := runtimeSetters[k]
		if !ok {
			if k == "name" || k == "port" {
				return fmt.Errorf("%s cannot be changed at runtime", k)
			}
			return fmt.Errorf("unknown config key: %s", k)
		}
		fn, err := set(v)
		if err != nil {
			return err
		}
		apply = append(apply, fn)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, fn := range apply {
		fn(t)
	}
	return nil
}

// Serve starts the HTTP server and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func (t *Twin) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", t.Config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", "name", t.Config.Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	t.Logger.Info("shutting down twin", "name", t.Config.Name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
