package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/pkg/logger"
	"github.com/bookwise/session-client/pkg/metrics"
)

const (
	defaultPrimaryTimeout   = 8 * time.Second
	defaultSecondaryTimeout = 8 * time.Second
	defaultProfileTimeout   = 10 * time.Second
	defaultSafetyTimeout    = 15 * time.Second
	defaultStaleAfter       = 30 * time.Second
)

// Options tunes the timeouts of the session service. Zero values fall back
// to the defaults.
type Options struct {
	PrimaryTimeout    time.Duration
	SecondaryTimeout  time.Duration
	ProfileTimeout    time.Duration
	SafetyTimeout     time.Duration
	ProfileStaleAfter time.Duration
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PrimaryTimeout <= 0 {
		o.PrimaryTimeout = defaultPrimaryTimeout
	}
	if o.SecondaryTimeout <= 0 {
		o.SecondaryTimeout = defaultSecondaryTimeout
	}
	if o.ProfileTimeout <= 0 {
		o.ProfileTimeout = defaultProfileTimeout
	}
	if o.SafetyTimeout <= 0 {
		o.SafetyTimeout = defaultSafetyTimeout
	}
	if o.ProfileStaleAfter <= 0 {
		o.ProfileStaleAfter = defaultStaleAfter
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

var _ ports.SessionService = (*SessionService)(nil)

// SessionService rehydrates, owns and mutates the client session.
type SessionService struct {
	state    *StateStore
	creds    ports.CredentialStore
	api      ports.AuthAPI
	provider ports.SessionProvider
	profiles *ProfileCache
	sources  []ports.SessionSource
	events   ports.EventQueue
	validate *validator.Validate
	opts     Options
	log      zerolog.Logger

	// mu serialises identity transitions: events, login, logout, refresh.
	mu sync.Mutex

	ctx         context.Context
	cancel      context.CancelFunc
	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
	bg          sync.WaitGroup
}

// NewSessionService wires the orchestrator. Sources are tried in order:
// the stored bearer credential first, then the secondary provider. Provider
// events are applied through events once rehydration has finished.
func NewSessionService(
	creds ports.CredentialStore,
	api ports.AuthAPI,
	provider ports.SessionProvider,
	profiles ports.ProfileRepository,
	events ports.EventQueue,
	opts Options,
	log zerolog.Logger,
) *SessionService {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &SessionService{
		state:    NewStateStore(),
		creds:    creds,
		api:      api,
		provider: provider,
		events:   events,
		profiles: NewProfileCache(profiles, opts.ProfileStaleAfter, opts.ProfileTimeout, opts.Now, log),
		validate: validator.New(),
		opts:     opts,
		log:      logger.Component(log, "session"),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.sources = []ports.SessionSource{
		NewPrimarySource(creds, api, opts.PrimaryTimeout, opts.Now, log),
		NewProviderSource(provider, opts.SecondaryTimeout),
	}
	return s
}

// State returns the current snapshot.
func (s *SessionService) State() domain.State {
	return s.state.Get()
}

// Subscribe returns a channel carrying the latest snapshot after every commit.
func (s *SessionService) Subscribe() (<-chan domain.State, func()) {
	return s.state.Subscribe()
}

// Start begins rehydration in the background and arms the safety timer.
// Only the first call has any effect.
func (s *SessionService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		context.AfterFunc(ctx, s.cancel)
		s.events.Start(s.ctx, s)

		go s.supervise()
		go func() {
			s.rehydrate(s.ctx)
			s.arm()
		}()
	})
}

// WaitInitialized blocks until a terminal decision has been committed.
func (s *SessionService) WaitInitialized(ctx context.Context) error {
	select {
	case <-s.state.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the event feed and background work. The queue is stopped
// before the feed is unsubscribed so a feed blocked on a full queue is
// released.
func (s *SessionService) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.events.Stop()
		s.mu.Lock()
		unsub := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		<-s.events.Done()
		s.bg.Wait()
	})
}

// supervise forces a terminal state if rehydration has not reached one in time.
func (s *SessionService) supervise() {
	timer := time.NewTimer(s.opts.SafetyTimeout)
	defer timer.Stop()

	select {
	case <-s.state.Ready():
	case <-s.ctx.Done():
	case <-timer.C:
		forced := false
		s.state.commit(func(st *domain.State) {
			if st.Initialized {
				return
			}
			forced = true
			st.Initialized = true
			st.Loading = false
			if st.Session == nil {
				st.Phase = domain.PhaseUnauthenticated
			}
		})
		if forced {
			metrics.SafetyTimeoutsTotal.WithLabelValues("global").Inc()
			s.log.Warn().Dur("timeout", s.opts.SafetyTimeout).Msg("rehydration did not finish in time, loading cleared")
		}
	}
}

// rehydrate runs the startup state machine. Every path, including a panic,
// leaves the state initialized and not loading.
func (s *SessionService) rehydrate(ctx context.Context) {
	started := s.opts.Now()
	epoch := s.state.Epoch()
	source, outcome := "none", "unauthenticated"

	defer func() {
		if r := recover(); r != nil {
			source, outcome = "none", "panic"
			s.log.Error().Interface("panic", r).Msg("rehydration aborted, degrading to logged out")
			if s.state.commitAt(epoch, clearIdentity("")) {
				s.profiles.Clear()
			}
		}
		s.state.commit(func(st *domain.State) {
			st.Initialized = true
			st.Loading = false
		})
		metrics.RehydrationsTotal.WithLabelValues(source, outcome).Inc()
		metrics.RehydrationDuration.Observe(time.Since(started).Seconds())
		s.log.Info().Str("source", source).Str("outcome", outcome).Msg("rehydration finished")
	}()

	rejected := false
	for _, src := range s.sources {
		phase := src.Phase()
		s.state.commitAt(epoch, func(st *domain.State) { st.Phase = phase })

		id, err := src.Attempt(ctx)
		if err == nil {
			if s.authenticate(epoch, id, src.Name()) {
				source, outcome = src.Name(), "authenticated"
			}
			return
		}

		kind := domain.Classify(err)
		if kind == domain.FailureAuthorization {
			rejected = true
		}
		metrics.SourceFailuresTotal.WithLabelValues(src.Name(), string(kind)).Inc()
		ev := s.log.Info()
		if kind == domain.FailureTransport || kind == domain.FailureUnexpected {
			ev = s.log.Warn()
		}
		ev.Err(err).Str("source", src.Name()).Str("kind", string(kind)).Msg("session source unavailable")
	}

	notice := ""
	if rejected {
		notice = domain.NoticeSessionExpired
	}
	if s.state.commitAt(epoch, clearIdentity(notice)) {
		s.profiles.Clear()
	}
}

// authenticate commits a session confirmed during rehydration and schedules
// the profile load. It reports false if the identity changed meanwhile.
func (s *SessionService) authenticate(epoch uint64, id *domain.Identity, source string) bool {
	sess := domain.NewSession(*id, source, s.opts.Now())
	if !s.state.commitAt(epoch, s.commitSession(sess)) {
		s.log.Info().Str("source", source).Msg("discarding stale rehydration result")
		return false
	}
	s.loadProfileAsync(epoch, sess, false)
	return true
}

// commitSession installs sess, keeping the current profile only if it
// belongs to the same subject.
func (s *SessionService) commitSession(sess *domain.Session) func(*domain.State) {
	return func(st *domain.State) {
		st.Phase = domain.PhaseAuthenticated
		st.Session = sess
		st.Loading = false
		st.Notice = ""
		if st.Profile == nil || st.Profile.SubjectID != sess.SubjectID {
			st.Profile = nil
			st.ProfileStatus = domain.ProfilePending
		}
	}
}

func clearIdentity(notice string) func(*domain.State) {
	return func(st *domain.State) {
		st.Phase = domain.PhaseUnauthenticated
		st.Session = nil
		st.Profile = nil
		st.ProfileStatus = domain.ProfileNone
		st.Loading = false
		st.Notice = notice
	}
}

// loadProfileAsync loads the profile without blocking the caller.
func (s *SessionService) loadProfileAsync(epoch uint64, sess *domain.Session, force bool) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		p, stale, err := s.profiles.Load(s.ctx, sess, force)
		if stale {
			return
		}
		s.applyProfile(epoch, sess, p, err)
	}()
}

// applyProfile commits p if the session it was loaded for is still current.
// A fallback never replaces a real profile already on display.
func (s *SessionService) applyProfile(epoch uint64, sess *domain.Session, p *domain.Profile, loadErr error) {
	s.state.commitAt(epoch, func(st *domain.State) {
		if st.Session == nil || st.Session.SubjectID != sess.SubjectID {
			return
		}
		if loadErr != nil && st.Profile != nil && !st.Profile.Placeholder && p.Placeholder {
			st.ProfileStatus = domain.ProfileReady
			return
		}
		st.Profile = p
		st.ProfileStatus = domain.ProfileReady
	})
}

// arm subscribes to provider change notifications once rehydration is done.
func (s *SessionService) arm() {
	if s.ctx.Err() != nil {
		return
	}
	unsub := s.provider.Subscribe(func(ev domain.AuthEvent) {
		s.events.Enqueue(ev)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		unsub()
		return
	}
	s.unsubscribe = unsub
	s.log.Debug().Msg("session change feed armed")
}
