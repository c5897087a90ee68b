// Package console holds the admin panel's list and form controllers. A
// Screen owns one list view; a Form is a single modal edit session opened
// from a Screen. Both work against the catalog contracts, so they run the
// same way in-process or over HTTP.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
)

// Generic user-facing failures. Each wraps the underlying cause.
var (
	ErrLoadFailed   = errors.New("could not load")
	ErrSaveFailed   = errors.New("could not save")
	ErrDeleteFailed = errors.New("could not delete")

	ErrSuperseded       = errors.New("fetch superseded by a newer one")
	ErrClosed           = errors.New("screen closed")
	ErrFormOpen         = errors.New("a form is already open on this screen")
	ErrFormClosed       = errors.New("form is closed")
	ErrNotSupported     = errors.New("operation not supported on this screen")
	ErrPermissionDenied = errors.New("permission denied")
)

// ScreenConfig describes one list view.
type ScreenConfig[T any] struct {
	Name string
	// Source lists the collection.
	Source catalog.Lister[T]
	// Deleter removes records. Nil for read-only screens.
	Deleter catalog.Deleter
	ID      func(T) string
	// SearchFields returns the values the search query matches against.
	SearchFields func(T) []string
	// RefetchOnFocus re-lists on every Focus instead of only on Activate.
	RefetchOnFocus bool
	Logger         *slog.Logger
}

// Screen is the list view controller for one entity type.
type Screen[T any] struct {
	cfg ScreenConfig[T]

	mu          sync.Mutex
	life        context.Context
	stop        context.CancelFunc
	cancelFetch context.CancelFunc
	gen         uint64
	loading     bool
	loaded      bool
	items       []T
	query       string
	err         error
	formOpen    bool
	closed      bool
}

// NewScreen creates a screen. Nothing is fetched until Activate.
func NewScreen[T any](cfg ScreenConfig[T]) *Screen[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	life, stop := context.WithCancel(context.Background())
	return &Screen[T]{cfg: cfg, life: life, stop: stop}
}

// Name returns the screen name.
func (s *Screen[T]) Name() string { return s.cfg.Name }

// Activate performs the initial fetch.
func (s *Screen[T]) Activate(ctx context.Context) error {
	return s.fetch(ctx)
}

// Focus re-fetches when the screen refetches on focus, or when it has never
// loaded successfully.
func (s *Screen[T]) Focus(ctx context.Context) error {
	s.mu.Lock()
	skip := s.loaded && !s.cfg.RefetchOnFocus
	s.mu.Unlock()
	if skip {
		return nil
	}
	return s.fetch(ctx)
}

// Refresh always re-fetches.
func (s *Screen[T]) Refresh(ctx context.Context) error {
	return s.fetch(ctx)
}

// fetch lists the collection under a context tied to both ctx and the
// screen's lifetime. Starting a fetch cancels the one in flight, whose
// result is then discarded.
func (s *Screen[T]) fetch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	fctx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(s.life, cancel)
	s.gen++
	gen := s.gen
	s.cancelFetch = cancel
	s.loading = true
	s.mu.Unlock()

	items, err := s.cfg.Source.List(fctx)

	unlink()
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		return ErrSuperseded
	}
	s.cancelFetch = nil
	s.loading = false
	if err != nil {
		s.cfg.Logger.Warn("list failed", "screen", s.cfg.Name, "err", err)
		s.items = nil
		s.err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		return s.err
	}
	s.items = items
	s.loaded = true
	s.err = nil
	return nil
}

// Close cancels any in-flight fetch. The screen cannot be used afterwards.
func (s *Screen[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.loading = false
	s.gen++
	s.stop()
}

// Loading reports whether a fetch is in flight.
func (s *Screen[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last fetch failure, if any.
func (s *Screen[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Items returns a copy of the loaded collection.
func (s *Screen[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...)
}

// SetQuery changes the search filter. It never touches the store.
func (s *Screen[T]) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// Query returns the current search filter.
func (s *Screen[T]) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Visible returns the items matching the search query, case-insensitively,
// in list order.
func (s *Screen[T]) Visible() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(s.query))
	if q == "" || s.cfg.SearchFields == nil {
		return append([]T(nil), s.items...)
	}
	var out []T
	for _, it := range s.items {
		for _, f := range s.cfg.SearchFields(it) {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Delete asks for confirmation and removes id from the store. The visible
// list only changes after the store call succeeds. It reports false when
// the user declined.
func (s *Screen[T]) Delete(ctx context.Context, id string, confirm Confirmer) (bool, error) {
	if s.cfg.Deleter == nil {
		return false, ErrNotSupported
	}
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete this %s?", s.cfg.Name))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	gen := s.gen
	shadow := s.without(s.items, id)
	s.mu.Unlock()

	if err := s.cfg.Deleter.Delete(ctx, id); err != nil {
		s.cfg.Logger.Warn("delete failed", "screen", s.cfg.Name, "id", id, "err", err)
		return false, fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.items = shadow
	} else {
		s.items = s.without(s.items, id)
	}
	return true, nil
}

func (s *Screen[T]) without(items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.cfg.ID(it) != id {
			out = append(out, it)
		}
	}
	return out
}

// FormOpen reports whether a form session is open on this screen.
func (s *Screen[T]) FormOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formOpen
}

func (s *Screen[T]) acquireForm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.formOpen {
		return ErrFormOpen
	}
	s.formOpen = true
	return nil
}

func (s *Screen[T]) releaseForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formOpen = false
}
