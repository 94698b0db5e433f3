package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
)

// Compile-time interface assertion.
var _ UserRepository = (*PostgresUserRepo)(nil)

const userColumns = `id, username, email, password_hash, first_name, last_name, avatar_url, enabled, provider, provider_id, roles, created_at, updated_at`

// PostgresUserRepo implements UserRepository over pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) FindByUsernameOrEmail(ctx context.Context, identifier string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = lower($1) LIMIT 1`
	return r.queryOne(ctx, "find user", query, strings.TrimSpace(identifier))
}

func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 LIMIT 1`
	return r.queryOne(ctx, "find user by username", query, strings.TrimSpace(username))
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1) LIMIT 1`
	return r.queryOne(ctx, "find user by email", query, strings.TrimSpace(email))
}

func (r *PostgresUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, strings.TrimSpace(username))
}

func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = lower($1))`, strings.TrimSpace(email))
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
INSERT INTO users (id, username, email, password_hash, first_name, last_name, avatar_url, enabled, provider, provider_id, roles)
VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Enabled,
		user.Provider,
		user.ProviderID,
		user.Roles,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) Save(ctx context.Context, user domain.User) error {
	const query = `
UPDATE users
SET password_hash = $2,
    first_name = $3,
    last_name = $4,
    avatar_url = $5,
    enabled = $6,
    roles = $7,
    updated_at = now()
WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		user.ID,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Enabled,
		user.Roles,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save user: %w", ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) queryOne(ctx context.Context, op, query string, args ...any) (domain.User, error) {
	row := r.db.QueryRow(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *PostgresUserRepo) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return found, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.AvatarURL,
		&u.Enabled,
		&u.Provider,
		&u.ProviderID,
		&u.Roles,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}
