// Package token inspects bearer credentials without any I/O.
//
// Signatures are not checked here; that is the verification endpoint's job.
// The package only answers whether a credential is worth presenting at all.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookwise/session-client/internal/core/domain"
)

const (
	minLength = 16
	delimiter = "."
	segments  = 3
)

// sentinels are literal values left behind by careless serialisation.
var sentinels = map[string]struct{}{
	"":          {},
	"undefined": {},
	"null":      {},
}

// Claims is the payload carried by a bearer credential.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
}

// SubjectID returns the subject, preferring the registered "sub" claim.
func (c *Claims) SubjectID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Identity converts the claims into a domain identity.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{SubjectID: c.SubjectID(), Email: c.Email, Role: c.Role}
}

// IsAbsent reports whether tok is empty or one of the sentinel strings.
func IsAbsent(tok string) bool {
	_, ok := sentinels[strings.TrimSpace(tok)]
	return ok
}

// IsStructurallyValid reports whether tok looks like a three-segment bearer token.
func IsStructurallyValid(tok string) bool {
	if IsAbsent(tok) || len(tok) < minLength {
		return false
	}
	if !strings.Contains(tok, delimiter) {
		return false
	}
	parts := strings.Split(tok, delimiter)
	if len(parts) != segments {
		return false
	}
	for _, p := range parts[:2] {
		if p == "" {
			return false
		}
	}
	return true
}

// Decode extracts the payload of a structurally valid token.
// Any decode failure, or a payload missing subject, role or expiry, yields
// domain.ErrCredentialMalformed.
func Decode(tok string) (*Claims, error) {
	if !IsStructurallyValid(tok) {
		return nil, domain.ErrCredentialMalformed
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCredentialMalformed, err)
	}
	if claims.SubjectID() == "" || claims.Role == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: payload missing subject, role or exp", domain.ErrCredentialMalformed)
	}
	return claims, nil
}

// IsExpired reports whether tok has expired at now. A token that cannot be
// decoded is reported as expired so callers never trust it.
func IsExpired(tok string, now time.Time) bool {
	claims, err := Decode(tok)
	if err != nil {
		return true
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// Inspect classifies tok at now. It returns the decoded claims and nil for
// a usable token, otherwise one of domain.ErrCredentialAbsent,
// domain.ErrCredentialMalformed or domain.ErrCredentialExpired.
func Inspect(tok string, now time.Time) (*Claims, error) {
	if IsAbsent(tok) {
		return nil, domain.ErrCredentialAbsent
	}
	claims, err := Decode(tok)
	if err != nil {
		return nil, err
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return claims, domain.ErrCredentialExpired
	}
	return claims, nil
}
