package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Credential slots.
const (
	SlotBearer   = "bearer"
	SlotProvider = "provider"
)

// CredentialStore persists one credential per client instance and slot.
// Key format: credential:<instance_id>:<slot>
type CredentialStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewCredentialStore creates a CredentialStore. A ttl of zero keeps the
// credential until it is cleared.
func NewCredentialStore(client *redis.Client, instanceID, slot string, ttl time.Duration) *CredentialStore {
	return &CredentialStore{
		client: client,
		key:    fmt.Sprintf("credential:%s:%s", instanceID, slot),
		ttl:    ttl,
	}
}

// Get returns the stored credential or "" when none is stored.
func (s *CredentialStore) Get(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("credential get: %w", err)
	}
	return v, nil
}

// Set overwrites the credential in a single command.
func (s *CredentialStore) Set(ctx context.Context, credential string) error {
	if err := s.client.Set(ctx, s.key, credential, s.ttl).Err(); err != nil {
		return fmt.Errorf("credential set: %w", err)
	}
	return nil
}

// Clear removes the credential. Deleting a missing key is not an error.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("credential clear: %w", err)
	}
	return nil
}
