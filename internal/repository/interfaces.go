package repository

import (
	"context"
	"errors"

	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
)

// ErrNotFound is returned when no row matches a lookup.
var ErrNotFound = errors.New("not found")

// UserRepository exposes persistence for user accounts.
type UserRepository interface {
	FindByUsernameOrEmail(ctx context.Context, identifier string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// Save persists mutable fields: enabled flag, password hash, profile.
	Save(ctx context.Context, user domain.User) error
}
