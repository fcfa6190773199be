package securitystore

import (
	"context"
	"sync"
	"time"
)

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

type valueEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the in-process fallback backend.
//
// One mutex guards both maps. Expired entries are pruned lazily: the touched
// key is always checked, and a full sweep runs at most once per sweepEvery.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]counterEntry
	values   map[string]valueEntry

	now        func() time.Time
	sweepEvery time.Duration
	lastSweep  time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters:   make(map[string]counterEntry),
		values:     make(map[string]valueEntry),
		now:        time.Now,
		sweepEvery: time.Second,
	}
}

// WithClock replaces the time source. Intended for tests; call before use.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) Backend() string { return BackendMemory }

func (s *MemoryStore) IncrementWithWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration) {
	if window < time.Second {
		window = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	e, ok := s.counters[key]
	if !ok || !now.Before(e.expiresAt) {
		e = counterEntry{expiresAt: now.Add(window)}
	}
	e.count++
	s.counters[key] = e

	return e.count, clampRemaining(e.expiresAt.Sub(now))
}

func (s *MemoryStore) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.values[key] = valueEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	e, ok := s.values[key]
	if !ok {
		return "", false, nil
	}
	if !now.Before(e.expiresAt) {
		delete(s.values, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Len reports live entries (counters + values). Used by tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSweep = time.Time{}
	s.pruneLocked(s.now())
	return len(s.counters) + len(s.values)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	if !s.lastSweep.IsZero() && now.Sub(s.lastSweep) < s.sweepEvery {
		return
	}
	s.lastSweep = now

	for k, e := range s.counters {
		if !now.Before(e.expiresAt) {
			delete(s.counters, k)
		}
	}
	for k, e := range s.values {
		if !now.Before(e.expiresAt) {
			delete(s.values, k)
		}
	}
}
