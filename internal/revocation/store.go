// Package revocation tracks refresh tokens that were explicitly logged out.
// The index is sparse: only revoked jtis get an entry, and entries expire
// once the token they shadow would have failed its own expiry check.
package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyRevoked reports an insert for a jti that already has a record.
// Logout is deliberately not idempotent; a repeat is a replay signal.
var ErrAlreadyRevoked = errors.New("jti already revoked")

// Record is the value stored per revoked jti.
type Record struct {
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Store is the revocation index consumed by the session service.
type Store interface {
	// IsRevoked reports whether a record exists for the jti. Errors are
	// infrastructure failures, never "is revoked".
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Revoke inserts a record if absent. The insert must be atomic across
	// processes: two concurrent calls yield one success and one
	// ErrAlreadyRevoked.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}
