package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/domain"
	"github.com/fernlabs/authgate/internal/jwt"
	"github.com/fernlabs/authgate/internal/repository"
)

// TokenPair is the login and refresh response body.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenConfig carries the refresh-token policy knobs.
type RefreshTokenConfig struct {
	TTL        time.Duration
	TokenBytes int
	// Rotate replaces the token string on each successful refresh.
	Rotate bool
	// RevokeOnLogin keeps at most one live token per account.
	RevokeOnLogin bool
}

// RefreshTokenService issues, validates, and revokes the opaque long-lived
// tokens backing the refresh flow.
type RefreshTokenService struct {
	tokens   repository.RefreshTokenRepository
	accounts repository.AccountRepository
	codec    *jwt.Codec
	node     *snowflake.Node
	cfg      RefreshTokenConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// RefreshOption customizes a RefreshTokenService.
type RefreshOption func(*RefreshTokenService)

// WithRefreshClock overrides the time source, used by tests.
func WithRefreshClock(now func() time.Time) RefreshOption {
	return func(s *RefreshTokenService) {
		s.now = now
	}
}

// NewRefreshTokenService wires dependencies.
func NewRefreshTokenService(tokens repository.RefreshTokenRepository, accounts repository.AccountRepository, codec *jwt.Codec, node *snowflake.Node, cfg RefreshTokenConfig, logger *zap.Logger, opts ...RefreshOption) *RefreshTokenService {
	s := &RefreshTokenService{
		tokens:   tokens,
		accounts: accounts,
		codec:    codec,
		node:     node,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/fernlabs/authgate/internal/service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores and returns a new refresh token for the account. When
// RevokeOnLogin is set, outstanding tokens are deleted first so the account
// holds a single live token.
func (s *RefreshTokenService) Issue(ctx context.Context, accountID int64) (domain.RefreshToken, error) {
	ctx, span := s.startSpan(ctx, "RefreshTokenService.Issue")
	defer span.End()

	if s.cfg.RevokeOnLogin {
		if _, err := s.tokens.DeleteByAccountID(ctx, accountID); err != nil {
			span.RecordError(err)
			return domain.RefreshToken{}, fmt.Errorf("revoke prior tokens: %w", err)
		}
	}

	token := domain.RefreshToken{
		ID:         s.node.Generate().Int64(),
		AccountID:  accountID,
		Token:      randomString(s.cfg.TokenBytes),
		ExpiryDate: s.now().Add(s.cfg.TTL),
	}

	created, err := s.tokens.Create(ctx, token)
	if err != nil {
		span.RecordError(err)
		return domain.RefreshToken{}, fmt.Errorf("persist refresh token: %w", err)
	}

	s.audit("refresh_token.issued", "account_id", accountID, "token_id", created.ID)
	return created, nil
}

// Find resolves a token string to its stored row, mapping absence to
// domain.ErrTokenNotFound.
func (s *RefreshTokenService) Find(ctx context.Context, token string) (domain.RefreshToken, error) {
	stored, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RefreshToken{}, domain.ErrTokenNotFound
		}
		return domain.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return stored, nil
}

// VerifyNotExpired checks the token's expiry. An expired token deletes every
// token for its account before reporting domain.ErrTokenExpired: expired
// rows are self-erasing on first touch.
func (s *RefreshTokenService) VerifyNotExpired(ctx context.Context, token domain.RefreshToken) error {
	if !token.ExpiredAt(s.now()) {
		return nil
	}

	if _, err := s.tokens.DeleteByAccountID(ctx, token.AccountID); err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	s.audit("refresh_token.expired", "account_id", token.AccountID, "token_id", token.ID)
	return domain.ErrTokenExpired
}

// RefreshAccessToken exchanges a valid refresh token for a new access token.
// Unless rotation is enabled the presented refresh token string is echoed
// back unchanged.
func (s *RefreshTokenService) RefreshAccessToken(ctx context.Context, tokenString string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "RefreshTokenService.RefreshAccessToken")
	defer span.End()

	stored, err := s.Find(ctx, tokenString)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.VerifyNotExpired(ctx, stored); err != nil {
		return TokenPair{}, err
	}

	account, err := s.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("refresh load account: %w", err)
	}

	access, err := s.codec.Mint(account.Username)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("mint access token: %w", err)
	}

	refresh := stored.Token
	if s.cfg.Rotate {
		next := randomString(s.cfg.TokenBytes)
		if err := s.tokens.UpdateToken(ctx, stored.ID, next, s.now().Add(s.cfg.TTL)); err != nil {
			span.RecordError(err)
			return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
		}
		refresh = next
	}

	s.audit("refresh_token.used", "account_id", account.ID, "token_id", stored.ID, "rotated", s.cfg.Rotate)
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RevokeAllForAccount deletes every refresh token for the account; used on
// logout.
func (s *RefreshTokenService) RevokeAllForAccount(ctx context.Context, accountID int64) error {
	ctx, span := s.startSpan(ctx, "RefreshTokenService.RevokeAllForAccount")
	defer span.End()

	deleted, err := s.tokens.DeleteByAccountID(ctx, accountID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke tokens: %w", err)
	}

	s.audit("refresh_token.revoked", "account_id", accountID, "deleted", deleted)
	return nil
}

func (s *RefreshTokenService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *RefreshTokenService) audit(event string, attrs ...any) {
	logger := s.logger
	if logger == nil {
		logger = zap.L()
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func randomString(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
