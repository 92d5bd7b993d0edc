// Package memory holds dev-only fallbacks used when Redis or MongoDB is not
// configured. Nothing here survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bookwise/session-client/internal/core/domain"
)

// CredentialStore keeps a credential in process memory.
type CredentialStore struct {
	mu  sync.RWMutex
	val string
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.val, nil
}

func (s *CredentialStore) Set(ctx context.Context, credential string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = credential
	return nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = ""
	return nil
}

// ProfileRepository keeps profiles in a map keyed by subject id.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]domain.Profile)}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[subjectID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

// CreateProfile stores defaults unless a profile already exists, in which
// case the existing one is returned.
func (r *ProfileRepository) CreateProfile(ctx context.Context, defaults *domain.Profile) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[defaults.SubjectID]; ok {
		return &p, nil
	}
	p := *defaults
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
	}
	r.profiles[p.SubjectID] = p
	return &p, nil
}
