package twincore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"time"
)

// DefaultIdempotencyTTL is how long a replayable response is kept.
const DefaultIdempotencyTTL = 24 * time.Hour

// ErrIdempotencyMismatch is returned by Reserve when the key was first used
// with a different request body.
var ErrIdempotencyMismatch = errors.New("idempotency key reused with a different body")

// IdempotencyTracker remembers the first successful response per key along
// with a fingerprint of the request that produced it. Keys being handled
// right now are reserved so concurrent duplicates wait instead of running.
type IdempotencyTracker struct {
	mu       sync.Mutex
	entries  map[string]idempotencyEntry
	inflight map[string]*reservation
	ttl      time.Duration
	now      func() time.Time
}

type reservation struct {
	fingerprint [sha256.Size]byte
	done        chan struct{}
}

type idempotencyEntry struct {
	fingerprint [sha256.Size]byte
	status      int
	body        []byte
	storedAt    time.Time
}

// Cached is a replayable response.
type Cached struct {
	Status int
	Body   []byte
}

// NewIdempotencyTracker creates a tracker keeping entries for ttl
// (DefaultIdempotencyTTL when zero). now defaults to time.Now.
func NewIdempotencyTracker(ttl time.Duration, now func() time.Time) *IdempotencyTracker {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if now == nil {
		now = time.Now
	}
	return &IdempotencyTracker{
		entries:  make(map[string]idempotencyEntry),
		inflight: make(map[string]*reservation),
		ttl:      ttl,
		now:      now,
	}
}

// SetClock replaces the time source, e.g. with a simulated clock so
// advancing it expires keys.
func (it *IdempotencyTracker) SetClock(now func() time.Time) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.now = now
}

// Fingerprint hashes a request body for Lookup and Store.
func Fingerprint(body []byte) [sha256.Size]byte {
	return sha256.Sum256(body)
}

// Lookup returns the cached response for key. mismatch is true when the
// key was first used with a different request body.
func (it *IdempotencyTracker) Lookup(key string, fp [sha256.Size]byte) (c Cached, hit, mismatch bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.lookupLocked(key, fp)
}

func (it *IdempotencyTracker) lookupLocked(key string, fp [sha256.Size]byte) (c Cached, hit, mismatch bool) {
	e, ok := it.entries[key]
	if !ok {
		return Cached{}, false, false
	}
	if it.now().Sub(e.storedAt) > it.ttl {
		delete(it.entries, key)
		return Cached{}, false, false
	}
	if e.fingerprint != fp {
		return Cached{}, false, true
	}
	return Cached{Status: e.status, Body: bytes.Clone(e.body)}, true, false
}

// Reserve returns the cached response for key, or reserves key for the
// caller when nothing is cached. A caller holding a reservation must end it
// with Store or Release. While another request holds key, Reserve blocks
// until that request finishes or ctx is done.
func (it *IdempotencyTracker) Reserve(ctx context.Context, key string, fp [sha256.Size]byte) (c Cached, hit bool, err error) {
	for {
		it.mu.Lock()
		cached, ok, mismatch := it.lookupLocked(key, fp)
		switch {
		case mismatch:
			it.mu.Unlock()
			return Cached{}, false, ErrIdempotencyMismatch
		case ok:
			it.mu.Unlock()
			return cached, true, nil
		}
		held, busy := it.inflight[key]
		if !busy {
			it.inflight[key] = &reservation{fingerprint: fp, done: make(chan struct{})}
			it.mu.Unlock()
			return Cached{}, false, nil
		}
		it.mu.Unlock()
		if held.fingerprint != fp {
			return Cached{}, false, ErrIdempotencyMismatch
		}
		select {
		case <-ctx.Done():
			return Cached{}, false, ctx.Err()
		case <-held.done:
		}
	}
}

// Release drops the reservation on key without caching anything, letting
// one waiting duplicate run instead.
func (it *IdempotencyTracker) Release(key string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.releaseLocked(key)
}

func (it *IdempotencyTracker) releaseLocked(key string) {
	if r, ok := it.inflight[key]; ok {
		close(r.done)
		delete(it.inflight, key)
	}
}

// Store records a response for key and ends any reservation on it.
func (it *IdempotencyTracker) Store(key string, fp [sha256.Size]byte, status int, body []byte) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.entries[key] = idempotencyEntry{
		fingerprint: fp,
		status:      status,
		body:        bytes.Clone(body),
		storedAt:    it.now(),
	}
	it.releaseLocked(key)
}

// Len reports how many keys are held, expired ones included.
func (it *IdempotencyTracker) Len() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.entries)
}

// Reset forgets every key and wakes anything waiting on a reservation.
func (it *IdempotencyTracker) Reset() {
	it.mu.Lock()
	defer it.mu.Unlock()
	clear(it.entries)
	for key := range it.inflight {
		it.releaseLocked(key)
	}
}
