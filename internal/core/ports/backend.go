package ports

import (
	"context"

	"github.com/bookwise/session-client/internal/core/domain"
)

// TokenVerifier is the primary bearer-credential verification endpoint.
// A rejected credential yields an error wrapping domain.ErrCredentialRejected;
// network failures wrap domain.ErrTransport. An accepted credential may come
// back with a nil identity when the endpoint does not echo the user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// AuthAPI is the primary backend's login surface.
type AuthAPI interface {
	TokenVerifier
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*domain.LoginResult, error)
}

// SessionProvider is the secondary session-managing provider.
type SessionProvider interface {
	// CurrentSession returns domain.ErrNoSession when no session exists.
	CurrentSession(ctx context.Context) (*domain.ProviderSession, error)
	Refresh(ctx context.Context, existing *domain.ProviderSession) (*domain.ProviderSession, error)
	SignOut(ctx context.Context) error
	// Subscribe delivers change notifications until the returned func is called.
	Subscribe(handler func(domain.AuthEvent)) (unsubscribe func())
}

// ProfileRepository is the profile-fetch endpoint.
type ProfileRepository interface {
	// GetProfile returns domain.ErrProfileNotFound when no record exists.
	GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, defaults *domain.Profile) (*domain.Profile, error)
}
