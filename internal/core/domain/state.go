package domain

// Phase is the rehydration state machine position.
type Phase string

const (
	PhaseUninitialized     Phase = "uninitialized"
	PhaseCheckingPrimary   Phase = "checking_primary"
	PhaseCheckingSecondary Phase = "checking_secondary"
	PhaseAuthenticated     Phase = "authenticated"
	PhaseUnauthenticated   Phase = "unauthenticated"
)

// ProfileStatus sub-resolves the authenticated phase.
type ProfileStatus string

const (
	ProfileNone    ProfileStatus = ""
	ProfilePending ProfileStatus = "pending"
	ProfileReady   ProfileStatus = "ready"
)

// NoticeSessionExpired is the only error classification surfaced to users.
const NoticeSessionExpired = "session expired, please log in again"

// State is the read-only snapshot exposed to the rest of the application.
type State struct {
	Phase         Phase         `json:"phase"`
	Session       *Session      `json:"session,omitempty"`
	Profile       *Profile      `json:"profile,omitempty"`
	ProfileStatus ProfileStatus `json:"profile_status,omitempty"`
	Loading       bool          `json:"loading"`
	Initialized   bool          `json:"initialized"`
	Notice        string        `json:"notice,omitempty"`
}

// Authenticated reports whether a session is committed.
func (s State) Authenticated() bool {
	return s.Session != nil
}

// InitialState is the state before rehydration starts.
func InitialState() State {
	return State{Phase: PhaseUninitialized, Loading: true}
}
