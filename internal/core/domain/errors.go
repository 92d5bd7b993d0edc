package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrCredentialAbsent    = errors.New("credential absent")
	ErrCredentialMalformed = errors.New("credential malformed")
	ErrCredentialExpired   = errors.New("credential expired")
	// ErrCredentialRejected is an explicit backend rejection of a credential.
	ErrCredentialRejected = errors.New("credential rejected")
	ErrTransport          = errors.New("transport failure")
	ErrNoSession          = errors.New("no session")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrForbidden          = errors.New("access forbidden")
)

// Backend rejection codes.
const (
	CodeTokenInvalid = "AUTH_TOKEN_INVALID"
	CodeTokenExpired = "AUTH_TOKEN_EXPIRED"
)

// CodeError is a backend rejection carrying its error code.
type CodeError struct {
	Code string
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCredentialRejected, e.Code)
}

func (e *CodeError) Unwrap() error { return ErrCredentialRejected }

// FailureKind is the error taxonomy used by the orchestrator.
type FailureKind string

const (
	FailureNone          FailureKind = "none"
	FailureAbsent        FailureKind = "absent"
	FailureStructural    FailureKind = "structural"
	FailureExpired       FailureKind = "expired"
	FailureAuthorization FailureKind = "authorization"
	FailureTransport     FailureKind = "transport"
	FailureUnexpected    FailureKind = "unexpected"
)

// Classify maps an error onto the failure taxonomy.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrCredentialAbsent), errors.Is(err, ErrNoSession):
		return FailureAbsent
	case errors.Is(err, ErrCredentialMalformed):
		return FailureStructural
	case errors.Is(err, ErrCredentialExpired):
		return FailureExpired
	case errors.Is(err, ErrCredentialRejected):
		return FailureAuthorization
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return FailureTransport
	default:
		return FailureUnexpected
	}
}
