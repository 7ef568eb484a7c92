package repository

import (
	"context"
	"time"

	"github.com/fernlabs/authgate/internal/domain"
)

// AccountRepository exposes persistence for accounts.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (domain.Account, error)
	GetByID(ctx context.Context, id int64) (domain.Account, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
}

// RefreshTokenRepository handles refresh-token persistence.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	// UpdateToken replaces the opaque string and expiry of an existing row,
	// used when rotation is enabled.
	UpdateToken(ctx context.Context, id int64, token string, expiry time.Time) error
	// DeleteByAccountID removes every token for the account and reports how
	// many rows went away.
	DeleteByAccountID(ctx context.Context, accountID int64) (int64, error)
}
