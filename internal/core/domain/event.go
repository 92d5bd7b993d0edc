package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// AuthEventKind enumerates session-change notifications from the secondary provider.
type AuthEventKind string

const (
	EventSignedIn       AuthEventKind = "SIGNED_IN"
	EventSignedOut      AuthEventKind = "SIGNED_OUT"
	EventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// Valid reports whether k is a known event kind.
func (k AuthEventKind) Valid() bool {
	switch k {
	case EventSignedIn, EventSignedOut, EventTokenRefreshed, EventUserUpdated:
		return true
	}
	return false
}

// AuthEvent is a single session-change notification.
type AuthEvent struct {
	ID         string
	Kind       AuthEventKind
	Identity   *Identity // nil for SIGNED_OUT
	ReceivedAt time.Time
}

// NewAuthEvent stamps an event with a sortable id.
func NewAuthEvent(kind AuthEventKind, id *Identity) AuthEvent {
	return AuthEvent{
		ID:         ulid.Make().String(),
		Kind:       kind,
		Identity:   id,
		ReceivedAt: time.Now().UTC(),
	}
}
