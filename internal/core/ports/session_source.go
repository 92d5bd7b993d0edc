package ports

import (
	"context"

	"github.com/bookwise/session-client/internal/core/domain"
)

// SessionSource is one entry in the orchestrator's ordered fallback list.
// Attempt either confirms an identity or returns an error that
// domain.Classify can place in the failure taxonomy.
type SessionSource interface {
	Name() string
	Phase() domain.Phase
	Attempt(ctx context.Context) (*domain.Identity, error)
}
