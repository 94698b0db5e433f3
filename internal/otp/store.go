// Package otp holds short-lived prove-you-hold-a-secret entries: 6-digit
// email verification codes and the reset-grant tokens minted after a
// successful code check. One store serves both because both are a single-use
// secret valid for a short window.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrExpired covers both "expired" and "never requested". The store does not
// distinguish them, so callers cannot probe which identifiers have pending
// codes.
var ErrExpired = errors.New("code expired or absent")

// CodeLength is the number of digits in a generated verification code.
const CodeLength = 6

// Store is the ephemeral code store consumed by the session service.
type Store interface {
	// Issue upserts the entry; a prior live code for the same key is
	// silently replaced, so only the most recent code verifies.
	Issue(ctx context.Context, key, value string, ttl time.Duration) error
	// Verify compares the candidate against the live entry. An absent key
	// fails with ErrExpired.
	Verify(ctx context.Context, key, candidate string) (bool, error)
	// Lookup returns the live entry's value, ErrExpired when absent. Used
	// for reset grants, where the stored value is the proven email.
	Lookup(ctx context.Context, key string) (string, error)
	// Consume deletes the entry after a successful verification.
	Consume(ctx context.Context, key string) error
}

// ResetKey derives the store key for a reset-grant token.
func ResetKey(token string) string {
	return "resetToken:" + token
}

// GenerateCode returns a zero-padded 6-digit code from a CSPRNG.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
