package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/internal/core/token"
	"github.com/bookwise/session-client/pkg/logger"
)

// callWithTimeout runs fn on its own goroutine and abandons it once timeout
// elapses or ctx ends. A late result is dropped on the floor.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- result{zero, fmt.Errorf("panic in backend call: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", domain.ErrTransport, ctx.Err())
	}
}

// PrimarySource verifies the stored bearer credential against the backend.
type PrimarySource struct {
	creds    ports.CredentialStore
	verifier ports.TokenVerifier
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewPrimarySource builds the token-based session source.
func NewPrimarySource(creds ports.CredentialStore, verifier ports.TokenVerifier, timeout time.Duration, now func() time.Time, log zerolog.Logger) *PrimarySource {
	return &PrimarySource{creds: creds, verifier: verifier, timeout: timeout, now: now, log: logger.Component(log, "primary_source")}
}

func (p *PrimarySource) Name() string        { return domain.SourcePrimary }
func (p *PrimarySource) Phase() domain.Phase { return domain.PhaseCheckingPrimary }

// Attempt reads, validates and verifies the stored credential. Structural,
// expiry and authorization failures discard the credential; transport
// failures keep it for a later retry.
func (p *PrimarySource) Attempt(ctx context.Context) (*domain.Identity, error) {
	tok, err := p.creds.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read credential: %w", domain.ErrTransport, err)
	}

	claims, err := token.Inspect(tok, p.now())
	if err != nil {
		p.discard(ctx, tok, domain.Classify(err))
		return nil, err
	}

	id, err := callWithTimeout(ctx, p.timeout, func(ctx context.Context) (*domain.Identity, error) {
		return p.verifier.Verify(ctx, tok)
	})
	if err != nil {
		if kind := domain.Classify(err); kind == domain.FailureAuthorization {
			p.discard(ctx, tok, kind)
		}
		return nil, fmt.Errorf("verify credential: %w", err)
	}

	// The endpoint may confirm validity without echoing the identity.
	merged := claims.Identity()
	if id != nil {
		if id.SubjectID != "" {
			merged.SubjectID = id.SubjectID
		}
		if id.Role != "" {
			merged.Role = id.Role
		}
		if id.Email != "" {
			merged.Email = id.Email
		}
	}
	return &merged, nil
}

// discard clears the store unless another credential has replaced tok.
func (p *PrimarySource) discard(ctx context.Context, tok string, kind domain.FailureKind) {
	current, err := p.creds.Get(ctx)
	if err == nil && current != tok {
		return
	}
	if err := p.creds.Clear(ctx); err != nil {
		p.log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to clear credential")
		return
	}
	p.log.Debug().Str("kind", string(kind)).Msg("credential discarded")
}

// ProviderSource asks the secondary provider for an existing session.
type ProviderSource struct {
	provider ports.SessionProvider
	timeout  time.Duration
}

// NewProviderSource builds the provider-based session source.
func NewProviderSource(provider ports.SessionProvider, timeout time.Duration) *ProviderSource {
	return &ProviderSource{provider: provider, timeout: timeout}
}

func (p *ProviderSource) Name() string        { return domain.SourceSecondary }
func (p *ProviderSource) Phase() domain.Phase { return domain.PhaseCheckingSecondary }

func (p *ProviderSource) Attempt(ctx context.Context) (*domain.Identity, error) {
	sess, err := callWithTimeout(ctx, p.timeout, p.provider.CurrentSession)
	if err != nil {
		return nil, fmt.Errorf("provider session: %w", err)
	}
	if sess == nil || sess.User.SubjectID == "" {
		return nil, domain.ErrNoSession
	}
	id := sess.User
	return &id, nil
}
