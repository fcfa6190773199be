package securitystore

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClockedMemory() (*MemoryStore, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore().WithClock(clk.Now), clk
}

func TestMemory_IncrementWithinWindow(t *testing.T) {
	s, _ := newClockedMemory()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		n, rem := s.IncrementWithWindow(ctx, "rl:test:a", time.Minute)
		if n != want {
			t.Fatalf("count=%d want %d", n, want)
		}
		if rem != time.Minute {
			t.Fatalf("remaining=%v want constant 1m", rem)
		}
	}
}

func TestMemory_WindowResets(t *testing.T) {
	s, clk := newClockedMemory()
	ctx := context.Background()

	s.IncrementWithWindow(ctx, "k", time.Minute)
	clk.Advance(30 * time.Second)
	n, rem := s.IncrementWithWindow(ctx, "k", time.Minute)
	if n != 2 || rem != 30*time.Second {
		t.Fatalf("mid-window: n=%d rem=%v", n, rem)
	}

	clk.Advance(30 * time.Second)
	n, rem = s.IncrementWithWindow(ctx, "k", time.Minute)
	if n != 1 {
		t.Fatalf("expected reset to 1 after window, got %d", n)
	}
	if rem != time.Minute {
		t.Fatalf("expected fresh window, got %v", rem)
	}
}

func TestMemory_RemainingNeverBelowOneSecond(t *testing.T) {
	s, clk := newClockedMemory()
	ctx := context.Background()

	s.IncrementWithWindow(ctx, "k", 2*time.Second)
	clk.Advance(1900 * time.Millisecond)
	_, rem := s.IncrementWithWindow(ctx, "k", 2*time.Second)
	if rem != time.Second {
		t.Fatalf("remaining=%v want 1s floor", rem)
	}
}

func TestMemory_SetGetExpiry(t *testing.T) {
	s, clk := newClockedMemory()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.SetWithExpiry(ctx, "revoked_session:abc", "1", 10*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, "revoked_session:abc")
	if err != nil || !ok || v != "1" {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}

	// Overwrite replaces value and TTL.
	clk.Advance(8 * time.Second)
	if err := s.SetWithExpiry(ctx, "revoked_session:abc", "2", 10*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	clk.Advance(8 * time.Second)
	v, ok, _ = s.Get(ctx, "revoked_session:abc")
	if !ok || v != "2" {
		t.Fatalf("expected overwritten value to survive, got %q ok=%v", v, ok)
	}

	clk.Advance(3 * time.Second)
	if _, ok, _ := s.Get(ctx, "revoked_session:abc"); ok {
		t.Fatalf("expected expiry")
	}

	if err := s.SetWithExpiry(ctx, "x", "1", 0); err != ErrInvalidTTL {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestMemory_PrunesLazily(t *testing.T) {
	s, clk := newClockedMemory()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		s.IncrementWithWindow(ctx, k, time.Second)
	}
	_ = s.SetWithExpiry(ctx, "v", "1", time.Second)
	if got := s.Len(); got != 4 {
		t.Fatalf("len=%d want 4", got)
	}

	clk.Advance(2 * time.Second)
	if got := s.Len(); got != 0 {
		t.Fatalf("len=%d want 0 after expiry", got)
	}
}

func TestMemory_ConcurrentIncrements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers, per = 16, 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				s.IncrementWithWindow(ctx, "hot", time.Minute)
			}
		}()
	}
	wg.Wait()

	n, _ := s.IncrementWithWindow(ctx, "hot", time.Minute)
	if n != workers*per+1 {
		t.Fatalf("count=%d want %d", n, workers*per+1)
	}
}
