package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fernlabs/authgate/internal/domain"
)

// Compile-time interface assertions.
var (
	_ AccountRepository      = (*PostgresAccountRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

const uniqueViolation = "23505"

// PostgresAccountRepo implements AccountRepository over pgx.
type PostgresAccountRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: pool}
}

const selectAccountSQL = `SELECT id, username, password_hash, status, created_at, updated_at FROM accounts`

func (r *PostgresAccountRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRow(ctx, selectAccountSQL+` WHERE username = $1`, username)
	return scanAccount(row, "get account by username")
}

func (r *PostgresAccountRepo) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	row := r.db.QueryRow(ctx, selectAccountSQL+` WHERE id = $1`, id)
	return scanAccount(row, "get account by id")
}

const insertAccountSQL = `INSERT INTO accounts (id, username, password_hash, status)
VALUES ($1, $2, $3, $4)
RETURNING id, username, password_hash, status, created_at, updated_at`

func (r *PostgresAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := r.db.QueryRow(ctx, insertAccountSQL,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.Status,
	)

	created, err := scanAccount(row, "create account")
	if err != nil {
		// The UNIQUE constraint is the backstop for the register pre-check
		// race window.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Account{}, domain.ErrUsernameTaken
		}
		return domain.Account{}, err
	}
	return created, nil
}

func scanAccount(row pgx.Row, op string) (domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository over pgx.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (id, account_id, token, expiry_date)
VALUES ($1, $2, $3, $4)
RETURNING id, account_id, token, expiry_date, created_at`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL,
		token.ID,
		token.AccountID,
		token.Token,
		token.ExpiryDate,
	)

	var t domain.RefreshToken
	if err := row.Scan(&t.ID, &t.AccountID, &t.Token, &t.ExpiryDate, &t.CreatedAt); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return t, nil
}

func (r *PostgresRefreshTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	const query = `SELECT id, account_id, token, expiry_date, created_at FROM refresh_tokens WHERE token = $1`

	var t domain.RefreshToken
	if err := r.db.QueryRow(ctx, query, token).Scan(&t.ID, &t.AccountID, &t.Token, &t.ExpiryDate, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefreshToken{}, domain.ErrNotFound
		}
		return domain.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

func (r *PostgresRefreshTokenRepo) UpdateToken(ctx context.Context, id int64, token string, expiry time.Time) error {
	const query = `UPDATE refresh_tokens SET token = $2, expiry_date = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, token, expiry)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) DeleteByAccountID(ctx context.Context, accountID int64) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE account_id = $1`

	tag, err := r.db.Exec(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
