// Package bootstrap seeds initial data on startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/config"
	"github.com/fernlabs/authgate/internal/domain"
	"github.com/fernlabs/authgate/internal/service"
)

// EnsureAdmin creates the configured admin account if missing. It is a no-op
// when ADMIN_USERNAME is unset.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, accounts *service.AccountService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, accounts, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, accounts *service.AccountService, logger *zap.Logger) error {
	if cfg.AdminUsername == "" {
		return nil
	}

	account, err := accounts.Register(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if errors.Is(err, domain.ErrUsernameTaken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap admin account: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin account created",
			zap.String("username", account.Username),
			zap.Int64("account_id", account.ID),
		)
	}
	return nil
}
