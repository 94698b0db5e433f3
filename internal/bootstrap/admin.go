package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/VanHoang0612/Mochi-Chat/internal/config"
	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
	"github.com/VanHoang0612/Mochi-Chat/internal/password"
	"github.com/VanHoang0612/Mochi-Chat/internal/repository"
)

// EnsureAdmin creates a default admin user for dev/e2e if missing. The seed is
// skipped entirely when no admin credentials are configured.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := users.Create(ctx, domain.User{
		ID:           node.Generate().Int64(),
		Username:     cfg.AdminUsername,
		Email:        email,
		PasswordHash: hashed,
		FirstName:    "Admin",
		Enabled:      true,
		Provider:     domain.ProviderLocal,
		Roles:        []string{domain.RoleUser, domain.RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
