package ports

import "context"

// CredentialStore holds the current bearer credential for one client instance.
// Get returns "" when nothing is stored. Set overwrites atomically; Clear is
// idempotent.
type CredentialStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}
