package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Simulator injects latency and failures into store operations so callers
// observe the same asynchronous behavior a real backend would have.
// Operations are named "<collection>.<verb>", e.g. "products.update".
type Simulator struct {
	mu       sync.RWMutex
	latency  time.Duration
	failRate float64
	faults   map[string]int // op -> remaining failures, negative means until cleared
}

// NewSimulator creates a simulator with the given base latency and random
// failure rate (0.0-1.0).
func NewSimulator(latency time.Duration, failRate float64) *Simulator {
	return &Simulator{
		latency:  latency,
		failRate: failRate,
		faults:   make(map[string]int),
	}
}

// Latency returns the base latency.
func (s *Simulator) Latency() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency
}

// SetLatency changes the base latency.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// FailRate returns the random failure rate.
func (s *Simulator) FailRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failRate
}

// SetFailRate changes the random failure rate.
func (s *Simulator) SetFailRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRate = rate
}

// InjectFault makes the next count calls of op fail with
// ErrStoreOperationFailed. count <= 0 fails every call until ClearFault.
func (s *Simulator) InjectFault(op string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count <= 0 {
		count = -1
	}
	s.faults[op] = count
}

// ClearFault removes an injected fault.
func (s *Simulator) ClearFault(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, op)
}

// Reset clears all injected faults. Latency and fail rate are kept.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]int)
}

// Do blocks for the simulated latency and then reports whether op fails.
// A cancelled context aborts the wait and returns ctx.Err().
func (s *Simulator) Do(ctx context.Context, op string) error {
	if s == nil {
		return ctx.Err()
	}
	if d := s.delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	if s.consumeFault(op) {
		return fmt.Errorf("%w: injected fault on %s", ErrStoreOperationFailed, op)
	}
	if rate := s.FailRate(); rate > 0 && rand.Float64() < rate {
		return fmt.Errorf("%w: simulated random failure on %s", ErrStoreOperationFailed, op)
	}
	return nil
}

// delay returns the latency with 80-120% jitter.
func (s *Simulator) delay() time.Duration {
	base := s.Latency()
	if base <= 0 {
		return 0
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(base) * jitter)
}

func (s *Simulator) consumeFault(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.faults[op]
	if !ok {
		return false
	}
	if n > 0 {
		n--
		if n == 0 {
			delete(s.faults, op)
		} else {
			s.faults[op] = n
		}
	}
	return true
}
