package domain

import "time"

const (
	RoleAdmin        = "admin"
	RoleClient       = "client"
	RoleProfessional = "professional"
)

// Session source names.
const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
)

// Identity is what a session source confirms about the caller.
type Identity struct {
	SubjectID string `json:"id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
}

// Session is the externally visible authenticated identity.
// Values are never mutated after being committed; transitions replace them.
type Session struct {
	SubjectID       string    `json:"subject_id"`
	Email           string    `json:"email,omitempty"`
	Role            string    `json:"role"`
	Source          string    `json:"source"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// NewSession builds a Session from a confirmed identity.
func NewSession(id Identity, source string, at time.Time) *Session {
	return &Session{
		SubjectID:       id.SubjectID,
		Email:           id.Email,
		Role:            id.Role,
		Source:          source,
		AuthenticatedAt: at,
	}
}

// Profile is the backend-sourced user record, keyed 1:1 by subject id.
type Profile struct {
	SubjectID   string            `json:"subject_id" bson:"subject_id"`
	Email       string            `json:"email,omitempty" bson:"email,omitempty"`
	Role        string            `json:"role" bson:"role"`
	DisplayName string            `json:"display_name" bson:"display_name"`
	AvatarURL   string            `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Locale      string            `json:"locale,omitempty" bson:"locale,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty" bson:"preferences,omitempty"`
	// Placeholder marks a profile derived from the session because no
	// backend record could be loaded.
	Placeholder bool      `json:"placeholder,omitempty" bson:"-"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// PlaceholderProfile derives a minimal profile from a session.
func PlaceholderProfile(s *Session) *Profile {
	return &Profile{
		SubjectID:   s.SubjectID,
		Email:       s.Email,
		Role:        s.Role,
		DisplayName: displayNameFromEmail(s.Email),
		Placeholder: true,
	}
}

// DefaultProfile is the record created for a subject that has none yet.
func DefaultProfile(s *Session, now time.Time) *Profile {
	p := PlaceholderProfile(s)
	p.Placeholder = false
	p.CreatedAt = now
	p.UpdatedAt = now
	return p
}

func displayNameFromEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}

// Credentials are what a user submits to log in.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResult is the backend response to a login or refresh request.
type LoginResult struct {
	Success  bool     `json:"success"`
	Token    string   `json:"token"`
	Identity Identity `json:"user"`
}

// ProviderSession is the secondary provider's own session.
type ProviderSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expired reports whether the provider access token is past its expiry.
func (p *ProviderSession) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
