package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/internal/infrastructure/queue"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubCreds struct {
	mu     sync.Mutex
	tok    string
	getErr error
	panic  bool
	clears int
}

func (c *stubCreds) Get(_ context.Context) (string, error) {
	if c.panic {
		panic("credential store exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok, c.getErr
}

func (c *stubCreds) Set(_ context.Context, tok string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tok = tok
	return nil
}

func (c *stubCreds) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tok = ""
	c.clears++
	return nil
}

func (c *stubCreds) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok
}

type stubAPI struct {
	mu          sync.Mutex
	verifyFn    func(ctx context.Context, tok string) (*domain.Identity, error)
	loginFn     func(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	refreshFn   func(ctx context.Context, tok string) (*domain.LoginResult, error)
	verifyCalls int
	loginCalls  int
	logoutCalls int
}

func (a *stubAPI) Verify(ctx context.Context, tok string) (*domain.Identity, error) {
	a.mu.Lock()
	a.verifyCalls++
	fn := a.verifyFn
	a.mu.Unlock()
	if fn == nil {
		return nil, &domain.CodeError{Code: domain.CodeTokenInvalid}
	}
	return fn(ctx, tok)
}

func (a *stubAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	a.mu.Lock()
	a.loginCalls++
	fn := a.loginFn
	a.mu.Unlock()
	return fn(ctx, creds)
}

func (a *stubAPI) Logout(_ context.Context, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logoutCalls++
	return nil
}

func (a *stubAPI) Refresh(ctx context.Context, tok string) (*domain.LoginResult, error) {
	return a.refreshFn(ctx, tok)
}

func (a *stubAPI) verifies() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifyCalls
}

type stubProvider struct {
	mu           sync.Mutex
	currentFn    func(ctx context.Context) (*domain.ProviderSession, error)
	refreshFn    func(ctx context.Context, s *domain.ProviderSession) (*domain.ProviderSession, error)
	currentCalls int
	signOuts     int
	handler      func(domain.AuthEvent)

	// stateAtArm, when set, is sampled as the feed is subscribed.
	stateAtArm  func() domain.State
	armedStates []domain.State
}

func (p *stubProvider) CurrentSession(ctx context.Context) (*domain.ProviderSession, error) {
	p.mu.Lock()
	p.currentCalls++
	fn := p.currentFn
	p.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrNoSession
	}
	return fn(ctx)
}

func (p *stubProvider) Refresh(ctx context.Context, s *domain.ProviderSession) (*domain.ProviderSession, error) {
	return p.refreshFn(ctx, s)
}

func (p *stubProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return nil
}

func (p *stubProvider) Subscribe(handler func(domain.AuthEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateAtArm != nil {
		p.armedStates = append(p.armedStates, p.stateAtArm())
	}
	p.handler = handler
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.handler = nil
	}
}

func (p *stubProvider) lookups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentCalls
}

func (p *stubProvider) armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler != nil
}

func (p *stubProvider) statesAtArm() []domain.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.State(nil), p.armedStates...)
}

func (p *stubProvider) emit(ev domain.AuthEvent) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	h(ev)
}

// floodingProvider pushes SIGNED_OUT events from its own goroutine as fast
// as the handler accepts them, until unsubscribed.
type floodingProvider struct {
	*stubProvider

	sent atomic.Int64
	stop chan struct{}
	wg   sync.WaitGroup
}

func newFloodingProvider() *floodingProvider {
	return &floodingProvider{stubProvider: &stubProvider{}, stop: make(chan struct{})}
}

func (p *floodingProvider) Subscribe(handler func(domain.AuthEvent)) func() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stop:
				return
			default:
			}
			handler(domain.NewAuthEvent(domain.EventSignedOut, nil))
			p.sent.Add(1)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(p.stop) })
		p.wg.Wait()
	}
}

type stubProfiles struct {
	mu      sync.Mutex
	gate    chan struct{}
	getErr  error
	records map[string]*domain.Profile
	calls   int
	created int
}

func newStubProfiles() *stubProfiles {
	return &stubProfiles{records: make(map[string]*domain.Profile)}
}

func (r *stubProfiles) GetProfile(ctx context.Context, sub string) (*domain.Profile, error) {
	r.mu.Lock()
	r.calls++
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.records[sub]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubProfiles) CreateProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	clone := *p
	r.records[p.SubjectID] = &clone
	return p, nil
}

func (r *stubProfiles) fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *stubProfiles) setGate(ch chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = ch
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mintToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"role":  role,
		"email": sub + "@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func providerSession(sub, role string) func(context.Context) (*domain.ProviderSession, error) {
	return func(context.Context) (*domain.ProviderSession, error) {
		return &domain.ProviderSession{
			AccessToken: "provider-access",
			ExpiresAt:   time.Now().Add(time.Hour),
			User:        domain.Identity{SubjectID: sub, Email: sub + "@example.com", Role: role},
		}, nil
	}
}

func newTestService(t *testing.T, creds *stubCreds, api *stubAPI, prov ports.SessionProvider, profiles *stubProfiles, opts Options) *SessionService {
	t.Helper()
	return newTestServiceWithQueue(t, creds, api, prov, profiles, queue.NewDispatcher(0, zerolog.Nop()), opts)
}

func newTestServiceWithQueue(t *testing.T, creds *stubCreds, api *stubAPI, prov ports.SessionProvider, profiles *stubProfiles, events ports.EventQueue, opts Options) *SessionService {
	t.Helper()
	svc := NewSessionService(creds, api, prov, profiles, events, opts, zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc
}

func startAndWait(t *testing.T, svc *SessionService) domain.State {
	t.Helper()
	svc.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := svc.WaitInitialized(ctx); err != nil {
		t.Fatalf("service did not initialize: %v", err)
	}
	return svc.State()
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
