// Package store holds the in-memory collections behind every catalog
// entity, plus the simulated clock the twin runs on.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Update for an unknown ID.
var ErrNotFound = errors.New("store: item not found")

// Store is an ordered, concurrency-safe collection of T keyed by string ID.
// Order is display order: Prepend puts new records first, Append last.
type Store[T any] struct {
	mu     sync.RWMutex
	byID   map[string]T
	ids    []string
	prefix string
	seq    atomic.Uint64
	newID  func(prefix string) string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	newID func(prefix string) string
}

// WithSequentialIDs switches NextID to zero-padded counters such as
// "CAT-000001", which keeps fixtures stable across runs.
func WithSequentialIDs() Option {
	return func(o *options) { o.newID = nil }
}

// WithIDFunc replaces ID generation entirely.
func WithIDFunc(fn func(prefix string) string) Option {
	return func(o *options) { o.newID = fn }
}

// UUIDs is the default ID scheme: "{prefix}-{uuid}".
func UUIDs(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// New creates an empty store whose generated IDs start with prefix.
func New[T any](prefix string, opts ...Option) *Store[T] {
	o := options{newID: UUIDs}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{byID: map[string]T{}, prefix: prefix, newID: o.newID}
}

// NextID returns an unused ID. It does not reserve a slot.
func (s *Store[T]) NextID() string {
	if s.newID != nil {
		return s.newID(s.prefix)
	}
	return fmt.Sprintf("%s-%06d", s.prefix, s.seq.Add(1))
}

func (s *Store[T]) put(id string, item T, front bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		if front {
			s.ids = slices.Insert(s.ids, 0, id)
		} else {
			s.ids = append(s.ids, id)
		}
	}
	s.byID[id] = item
}

// Append stores item at the end of the order. Replacing an existing ID
// keeps its position.
func (s *Store[T]) Append(id string, item T) { s.put(id, item, false) }

// Prepend stores item at the front of the order. Replacing an existing ID
// keeps its position.
func (s *Store[T]) Prepend(id string, item T) { s.put(id, item, true) }

// Get looks up id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	return v, ok
}

// Update runs fn on the current value of id under the write lock and keeps
// what it returns. An error from fn leaves the record untouched.
func (s *Store[T]) Update(id string, fn func(T) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	next, err := fn(cur)
	if err != nil {
		var zero T
		return zero, err
	}
	s.byID[id] = next
	return next, nil
}

// Delete removes id and reports whether it was present.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
	return true
}

// List returns a copy of every record in display order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.ids))
	for i, id := range s.ids {
		out[i] = s.byID[id]
	}
	return out
}

// FilterIDs returns, in display order, the IDs whose records satisfy keep.
func (s *Store[T]) FilterIDs(keep func(id string, item T) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.ids {
		if keep(id, s.byID[id]) {
			out = append(out, id)
		}
	}
	return out
}

// Len is the number of records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Reset empties the store and restarts sequential IDs.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = map[string]T{}
	s.ids = nil
	s.seq.Store(0)
}

// Load replaces the contents with items in the given order. A repeated ID
// keeps its first position and its last value.
func (s *Store[T]) Load(items []T, key func(T) string) {
	byID := make(map[string]T, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id := key(it)
		if _, dup := byID[id]; !dup {
			ids = append(ids, id)
		}
		byID[id] = it
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID, s.ids = byID, ids
}
