package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCacheFixture() (*ProfileCache, *stubProfiles, *fakeClock) {
	repo := newStubProfiles()
	repo.records["u1"] = &domain.Profile{SubjectID: "u1", Role: domain.RoleClient, DisplayName: "Uno"}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewProfileCache(repo, 30*time.Second, time.Second, clock.Now, zerolog.Nop())
	return cache, repo, clock
}

var sessU1 = &domain.Session{SubjectID: "u1", Role: domain.RoleClient, Email: "u1@example.com"}

func TestProfileCache_FreshEntryIsAHit(t *testing.T) {
	cache, repo, clock := newCacheFixture()

	if _, _, err := cache.Load(context.Background(), sessU1, false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	clock.Advance(10 * time.Second)
	p, _, err := cache.Load(context.Background(), sessU1, false)
	if err != nil || p.DisplayName != "Uno" {
		t.Fatalf("second load: %+v %v", p, err)
	}
	if repo.fetches() != 1 {
		t.Fatalf("expected one fetch, got %d", repo.fetches())
	}

	clock.Advance(25 * time.Second)
	if _, _, err := cache.Load(context.Background(), sessU1, false); err != nil {
		t.Fatalf("stale load: %v", err)
	}
	if repo.fetches() != 2 {
		t.Fatalf("expected refetch after staleness window, got %d", repo.fetches())
	}
}

func TestProfileCache_StaleServedWhileRefreshInFlight(t *testing.T) {
	cache, repo, clock := newCacheFixture()
	if _, _, err := cache.Load(context.Background(), sessU1, false); err != nil {
		t.Fatalf("prime: %v", err)
	}
	clock.Advance(time.Minute)

	gate := make(chan struct{})
	repo.setGate(gate)
	defer close(gate)

	go func() { _, _, _ = cache.Load(context.Background(), sessU1, true) }()
	eventually(t, func() bool { return repo.fetches() == 2 }, "refresh in flight")

	done := make(chan *domain.Profile, 1)
	go func() {
		p, stale, _ := cache.Load(context.Background(), sessU1, false)
		if !stale {
			t.Errorf("cached read during refresh not reported as stale")
		}
		done <- p
	}()

	select {
	case p := <-done:
		if p.DisplayName != "Uno" {
			t.Fatalf("expected stale profile, got %+v", p)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("stale read blocked on in-flight refresh")
	}
}

func TestProfileCache_TimeoutFallsBackToPlaceholder(t *testing.T) {
	repo := newStubProfiles()
	gate := make(chan struct{})
	defer close(gate)
	repo.setGate(gate)
	cache := NewProfileCache(repo, 30*time.Second, 30*time.Millisecond, time.Now, zerolog.Nop())

	p, _, err := cache.Load(context.Background(), sessU1, false)
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error on timeout, got %v", err)
	}
	if p == nil || !p.Placeholder || p.SubjectID != "u1" {
		t.Fatalf("expected placeholder, got %+v", p)
	}
}

func TestProfileCache_ClearDropsInFlightResult(t *testing.T) {
	cache, repo, _ := newCacheFixture()
	gate := make(chan struct{})
	repo.setGate(gate)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = cache.Load(context.Background(), sessU1, false)
	}()
	eventually(t, func() bool { return repo.fetches() == 1 }, "fetch started")

	cache.Clear()
	close(gate)
	<-done

	if _, ok := cache.Cached("u1"); ok {
		t.Fatalf("result of a load started before Clear was cached")
	}
}

func TestProfileCache_CreatesMissingProfile(t *testing.T) {
	repo := newStubProfiles()
	cache := NewProfileCache(repo, 30*time.Second, time.Second, time.Now, zerolog.Nop())

	p, _, err := cache.Load(context.Background(), &domain.Session{SubjectID: "u8", Role: domain.RoleProfessional, Email: "doc@clinic.io"}, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if repo.created != 1 || p.Placeholder || p.DisplayName != "doc" || p.Role != domain.RoleProfessional {
		t.Fatalf("unexpected created profile: %+v (created=%d)", p, repo.created)
	}
}
