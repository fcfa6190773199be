package securitystore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestProvider_MemoryWhenUnconfigured(t *testing.T) {
	p := NewProvider(Config{}, discardLogger(), nil)
	defer func() { _ = p.Close() }()

	s, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Backend() != BackendMemory {
		t.Fatalf("backend=%q want memory", s.Backend())
	}
	if err := p.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}

func TestProvider_PrefersReachableRedisAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)

	p := NewProvider(Config{RedisURL: "redis://" + mr.Addr()}, discardLogger(), nil)
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	s1, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s1.Backend() != BackendRedis {
		t.Fatalf("backend=%q want redis", s1.Backend())
	}

	s2, _ := p.Get(ctx)
	if s1 != s2 {
		t.Fatalf("expected cached store instance")
	}
	if err := p.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	p.Reset()
	s3, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get after reset: %v", err)
	}
	if s3 == s1 {
		t.Fatalf("expected new store after Reset")
	}
}

func TestProvider_FallsBackOutsideProduction(t *testing.T) {
	p := NewProvider(Config{RedisURL: "redis://127.0.0.1:1"}, discardLogger(), nil)
	defer func() { _ = p.Close() }()

	s, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Backend() != BackendMemory {
		t.Fatalf("backend=%q want memory fallback", s.Backend())
	}
}

func TestProvider_ProductionRequiresRedis(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{name: "unset", url: ""},
		{name: "unreachable", url: "redis://127.0.0.1:1"},
		{name: "malformed", url: "://nope"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProvider(Config{RedisURL: tc.url, Production: true}, discardLogger(), nil)
			defer func() { _ = p.Close() }()

			_, err := p.Get(context.Background())
			if !errors.Is(err, ErrRedisRequired) {
				t.Fatalf("expected ErrRedisRequired, got %v", err)
			}
		})
	}
}

func TestProvider_ReadyReportsRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)

	p := NewProvider(Config{RedisURL: "redis://" + mr.Addr()}, discardLogger(), nil)
	defer func() { _ = p.Close() }()

	if _, err := p.Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	mr.Close()

	if err := p.Ready(context.Background()); err == nil {
		t.Fatalf("expected Ready to fail after redis outage")
	}
}
