package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/pkg/logger"
	"github.com/bookwise/session-client/pkg/metrics"
)

type cachedProfile struct {
	profile  *domain.Profile
	loadedAt time.Time
}

// ProfileCache holds the last loaded profile per subject and collapses
// concurrent loads for the same subject into one backend call.
type ProfileCache struct {
	repo        ports.ProfileRepository
	staleAfter  time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger

	group singleflight.Group

	mu       sync.Mutex
	entries  map[string]cachedProfile
	inflight map[string]int
	gen      uint64
}

// NewProfileCache creates a ProfileCache over repo.
func NewProfileCache(repo ports.ProfileRepository, staleAfter, loadTimeout time.Duration, now func() time.Time, log zerolog.Logger) *ProfileCache {
	return &ProfileCache{
		repo:        repo,
		staleAfter:  staleAfter,
		loadTimeout: loadTimeout,
		now:         now,
		log:         logger.Component(log, "profiles"),
		entries:     make(map[string]cachedProfile),
		inflight:    make(map[string]int),
	}
}

// Cached returns the cached profile for subjectID regardless of its age.
func (c *ProfileCache) Cached(subjectID string) (*domain.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[subjectID]
	return e.profile, ok
}

// Clear drops every entry. Loads already in flight finish but are not cached.
func (c *ProfileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]cachedProfile)
}

// Load returns a profile for sess. Unless force is set, a profile younger
// than the staleness window is served without a backend call. A stale
// profile is served immediately while a refresh is already in flight.
//
// The returned profile is never nil. stale reports that it came from the
// cache while another load was running; that load publishes the fresh copy.
// A non-nil error means it is a fallback: the last cached profile or,
// failing that, a placeholder derived from sess.
func (c *ProfileCache) Load(ctx context.Context, sess *domain.Session, force bool) (p *domain.Profile, stale bool, err error) {
	sub := sess.SubjectID

	c.mu.Lock()
	entry, cached := c.entries[sub]
	busy := c.inflight[sub] > 0
	gen := c.gen
	c.mu.Unlock()

	if cached && !force && c.now().Sub(entry.loadedAt) < c.staleAfter {
		metrics.ProfileLoadsTotal.WithLabelValues("hit").Inc()
		return entry.profile, false, nil
	}
	if cached && busy {
		metrics.ProfileLoadsTotal.WithLabelValues("stale").Inc()
		return entry.profile, true, nil
	}

	key := sub + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(ctx, sess, gen)
	})

	timer := time.NewTimer(c.loadTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(*domain.Profile), false, nil
		}
		err = res.Err
	case <-timer.C:
		metrics.SafetyTimeoutsTotal.WithLabelValues("profile").Inc()
		err = fmt.Errorf("%w: profile load timed out after %s", domain.ErrTransport, c.loadTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.log.Warn().Err(err).Str("subject_id", sub).Msg("profile load failed, serving fallback")
	return c.fallback(sess), false, err
}

func (c *ProfileCache) fetch(ctx context.Context, sess *domain.Session, gen uint64) (*domain.Profile, error) {
	sub := sess.SubjectID
	c.track(sub, 1)
	defer c.track(sub, -1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
	defer cancel()

	result := "fetch"
	p, err := c.repo.GetProfile(ctx, sub)
	if errors.Is(err, domain.ErrProfileNotFound) {
		result = "created"
		p, err = c.repo.CreateProfile(ctx, domain.DefaultProfile(sess, c.now()))
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", sub, err)
	}
	if p == nil {
		return nil, fmt.Errorf("load profile %s: %w", sub, domain.ErrProfileNotFound)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries[sub] = cachedProfile{profile: p, loadedAt: c.now()}
	}
	c.mu.Unlock()

	metrics.ProfileLoadsTotal.WithLabelValues(result).Inc()
	return p, nil
}

func (c *ProfileCache) fallback(sess *domain.Session) *domain.Profile {
	metrics.ProfileLoadsTotal.WithLabelValues("fallback").Inc()
	if p, ok := c.Cached(sess.SubjectID); ok {
		return p
	}
	return domain.PlaceholderProfile(sess)
}

func (c *ProfileCache) track(sub string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[sub] += delta
	if c.inflight[sub] <= 0 {
		delete(c.inflight, sub)
	}
}
