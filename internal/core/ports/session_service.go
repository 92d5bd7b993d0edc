package ports

import (
	"context"

	"github.com/bookwise/session-client/internal/core/domain"
)

// SessionService is what the rest of the application sees.
type SessionService interface {
	State() domain.State
	Subscribe() (<-chan domain.State, func())
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Logout(ctx context.Context) error
	RefreshProfile(ctx context.Context) (*domain.Profile, error)
	RefreshCredential(ctx context.Context) error
	HasRole(roles ...string) bool
}
