package ports

import (
	"context"

	"github.com/bookwise/session-client/internal/core/domain"
)

// EventHandler applies a single session-change event.
type EventHandler interface {
	Apply(ctx context.Context, event domain.AuthEvent) error
}

// EventQueue delivers session-change events to one handler in arrival order.
type EventQueue interface {
	Start(ctx context.Context, handler EventHandler)
	// Enqueue may block while the queue is full. It returns false once the
	// queue is stopped.
	Enqueue(event domain.AuthEvent) bool
	Stop()
	// Done is closed when the worker has exited.
	Done() <-chan struct{}
}
