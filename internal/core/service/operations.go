package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/token"
)

// Login authenticates against the primary backend and commits the session.
func (s *SessionService) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := s.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if res == nil || !res.Success || !token.IsStructurallyValid(res.Token) {
		return nil, domain.ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.creds.Set(ctx, res.Token); err != nil {
		return nil, fmt.Errorf("login: store credential: %w", err)
	}

	sess := domain.NewSession(identityFrom(res), domain.SourcePrimary, s.opts.Now())
	commit := s.commitSession(sess)
	epoch := s.state.rotate(func(st *domain.State) {
		commit(st)
		st.Initialized = true
	})
	s.loadProfileAsync(epoch, sess, false)

	s.log.Info().Str("subject_id", sess.SubjectID).Msg("logged in")
	return sess, nil
}

// Logout ends the session everywhere. Calling it again is a no-op on state.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.creds.Get(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("read credential during logout")
	}
	if !token.IsAbsent(tok) {
		if err := s.api.Logout(ctx, tok); err != nil {
			s.log.Warn().Err(err).Msg("backend logout failed")
		}
	}
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.Warn().Err(err).Msg("provider sign-out failed")
	}

	return s.signOutLocked(ctx, "")
}

// signOutLocked clears credential, profile cache and state. s.mu must be held.
func (s *SessionService) signOutLocked(ctx context.Context, notice string) error {
	clearErr := s.creds.Clear(ctx)
	if clearErr != nil {
		s.log.Error().Err(clearErr).Msg("failed to clear credential")
	}
	s.profiles.Clear()
	s.state.rotate(func(st *domain.State) {
		clearIdentity(notice)(st)
		st.Initialized = true
	})
	if clearErr != nil {
		return fmt.Errorf("logout: clear credential: %w", clearErr)
	}
	return nil
}

// RefreshProfile reloads the profile of the current session. Load failures
// are not returned; the cached or placeholder profile is served instead.
func (s *SessionService) RefreshProfile(ctx context.Context) (*domain.Profile, error) {
	st, epoch := s.state.Snapshot()
	if st.Session == nil {
		return nil, domain.ErrNotAuthenticated
	}

	p, stale, err := s.profiles.Load(ctx, st.Session, true)
	if !stale {
		s.applyProfile(epoch, st.Session, p, err)
	}
	return s.currentProfile(st.Session, p), nil
}

func (s *SessionService) currentProfile(sess *domain.Session, fallback *domain.Profile) *domain.Profile {
	st := s.state.Get()
	if st.Session != nil && st.Session.SubjectID == sess.SubjectID && st.Profile != nil {
		return st.Profile
	}
	return fallback
}

// HasRole reports whether the current user holds one of roles. A loaded
// profile's role wins over the role carried by the session.
func (s *SessionService) HasRole(roles ...string) bool {
	st := s.state.Get()
	if st.Session == nil {
		return false
	}
	role := st.Session.Role
	if st.Profile != nil && !st.Profile.Placeholder && st.Profile.Role != "" {
		role = st.Profile.Role
	}
	return slices.Contains(roles, role)
}

// RefreshCredential renews the active credential. A stored bearer credential
// is refreshed against the primary backend, which also re-validates a
// credential kept after a transport failure at startup. Without one, the
// provider session is refreshed. A rejection logs the user out.
func (s *SessionService) RefreshCredential(ctx context.Context) error {
	tok, err := s.creds.Get(ctx)
	if err != nil {
		return fmt.Errorf("refresh credential: %w: %w", domain.ErrTransport, err)
	}
	if !token.IsAbsent(tok) {
		return s.refreshPrimary(ctx, tok)
	}
	return s.refreshProvider(ctx)
}

func (s *SessionService) refreshPrimary(ctx context.Context, tok string) error {
	epoch := s.state.Epoch()

	res, err := callWithTimeout(ctx, s.opts.PrimaryTimeout, func(ctx context.Context) (*domain.LoginResult, error) {
		return s.api.Refresh(ctx, tok)
	})
	if err == nil && (res == nil || !res.Success || !token.IsStructurallyValid(res.Token)) {
		err = &domain.CodeError{Code: domain.CodeTokenInvalid}
	}
	if err != nil {
		return s.refreshFailed(ctx, epoch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Epoch() != epoch {
		return nil
	}
	if err := s.creds.Set(ctx, res.Token); err != nil {
		return fmt.Errorf("refresh credential: store: %w", err)
	}
	s.renewLocked(identityFrom(res), domain.SourcePrimary)
	return nil
}

func (s *SessionService) refreshProvider(ctx context.Context) error {
	epoch := s.state.Epoch()

	cur, err := callWithTimeout(ctx, s.opts.SecondaryTimeout, s.provider.CurrentSession)
	if errors.Is(err, domain.ErrNoSession) {
		return domain.ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("refresh credential: %w", err)
	}

	next, err := callWithTimeout(ctx, s.opts.SecondaryTimeout, func(ctx context.Context) (*domain.ProviderSession, error) {
		return s.provider.Refresh(ctx, cur)
	})
	if err != nil {
		return s.refreshFailed(ctx, epoch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Epoch() != epoch {
		return nil
	}
	s.renewLocked(next.User, domain.SourceSecondary)
	return nil
}

func (s *SessionService) refreshFailed(ctx context.Context, epoch uint64, err error) error {
	if domain.Classify(err) != domain.FailureAuthorization {
		return fmt.Errorf("refresh credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Epoch() == epoch {
		s.log.Info().Err(err).Msg("credential rejected on refresh, logging out")
		if clearErr := s.signOutLocked(ctx, domain.NoticeSessionExpired); clearErr != nil {
			s.log.Warn().Err(clearErr).Msg("sign-out after rejected refresh")
		}
	}
	return fmt.Errorf("refresh credential: %w", domain.ErrCredentialRejected)
}

// renewLocked updates the session in place after a credential renewal and
// revalidates the profile without dropping the one on display.
func (s *SessionService) renewLocked(id domain.Identity, source string) {
	cur, epoch := s.state.Snapshot()
	if cur.Session == nil || cur.Session.SubjectID != id.SubjectID {
		s.signInLocked(id, source)
		return
	}

	sess := domain.NewSession(id, source, cur.Session.AuthenticatedAt)
	s.state.commitAt(epoch, s.commitSession(sess))
	s.loadProfileAsync(epoch, sess, true)
}

// signInLocked commits a new identity without re-running rehydration.
func (s *SessionService) signInLocked(id domain.Identity, source string) {
	sess := domain.NewSession(id, source, s.opts.Now())
	cur, epoch := s.state.Snapshot()

	commit := s.commitSession(sess)
	if cur.Session != nil && cur.Session.SubjectID == sess.SubjectID {
		s.state.commitAt(epoch, commit)
	} else {
		epoch = s.state.rotate(commit)
	}
	s.loadProfileAsync(epoch, sess, false)
}

func identityFrom(res *domain.LoginResult) domain.Identity {
	id := res.Identity
	if id.SubjectID != "" && id.Role != "" {
		return id
	}
	claims, err := token.Decode(res.Token)
	if err != nil {
		return id
	}
	fromToken := claims.Identity()
	if id.SubjectID == "" {
		id.SubjectID = fromToken.SubjectID
	}
	if id.Role == "" {
		id.Role = fromToken.Role
	}
	if id.Email == "" {
		id.Email = fromToken.Email
	}
	return id
}
