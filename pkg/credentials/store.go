package credentials

import "context"

// Store is the durable, authoritative credential store. Implementations must
// enforce username uniqueness themselves; callers may pre-check existence but the
// constraint that matters lives in the backend.
type Store interface {
	// GetByUsername returns the credential for username, or ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*Credential, error)

	// Create inserts a new credential. Returns ErrConflict if the username is
	// already taken.
	Create(ctx context.Context, username, secret string, isSuperuser bool) error

	// Delete removes the credential for username. Returns ErrNotFound if no such
	// record exists. Deletion is hard: absence afterwards means "does not exist".
	Delete(ctx context.Context, username string) error

	// List returns every live credential.
	List(ctx context.Context) ([]*Credential, error)

	// HealthCheck verifies backend connectivity.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
