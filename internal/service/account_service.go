// Package service contains the application services for accounts and
// refresh tokens.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/domain"
	"github.com/fernlabs/authgate/internal/jwt"
	pw "github.com/fernlabs/authgate/internal/password"
	"github.com/fernlabs/authgate/internal/repository"
)

// AccountService handles registration and credential verification.
type AccountService struct {
	accounts repository.AccountRepository
	node     *snowflake.Node
	codec    *jwt.Codec
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAccountService wires dependencies.
func NewAccountService(accounts repository.AccountRepository, node *snowflake.Node, codec *jwt.Codec, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		node:     node,
		codec:    codec,
		logger:   logger,
		tracer:   otel.Tracer("github.com/fernlabs/authgate/internal/service"),
	}
}

// Register creates a new account after checking username availability. The
// pre-check keeps the common case friendly; the store's UNIQUE constraint
// closes the race window.
func (s *AccountService) Register(ctx context.Context, username, password string) (domain.Account, error) {
	ctx, span := s.startSpan(ctx, "AccountService.Register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Account{}, fmt.Errorf("empty username or password: %w", domain.ErrBadPassword)
	}

	_, err := s.accounts.GetByUsername(ctx, username)
	if err == nil {
		return domain.Account{}, domain.ErrUsernameTaken
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return domain.Account{}, fmt.Errorf("register lookup: %w", err)
	}

	hash, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := domain.Account{
		ID:           s.node.Generate().Int64(),
		Username:     username,
		PasswordHash: hash,
		Status:       domain.StatusActive,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return domain.Account{}, domain.ErrUsernameTaken
		}
		span.RecordError(err)
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.audit("account.registered", "account_id", created.ID, "username", created.Username)
	return created, nil
}

// Login verifies credentials and mints an access token for the account.
// The returned error distinguishes unknown user, bad password, and disabled
// account; callers must collapse those into one uniform response.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, domain.Account, error) {
	ctx, span := s.startSpan(ctx, "AccountService.Login")
	defer span.End()

	account, err := s.authenticate(ctx, username, password)
	if err != nil {
		if domain.AuthenticationFailure(err) {
			s.audit("login.failed", "username", username, "reason", err.Error())
			return "", domain.Account{}, err
		}
		span.RecordError(err)
		return "", domain.Account{}, fmt.Errorf("authenticate: %w", err)
	}

	access, err := s.codec.Mint(account.Username)
	if err != nil {
		span.RecordError(err)
		return "", domain.Account{}, fmt.Errorf("mint access token: %w", err)
	}

	s.audit("login.success", "account_id", account.ID, "username", account.Username)
	return access, account, nil
}

func (s *AccountService) authenticate(ctx context.Context, username, password string) (domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, domain.ErrUnknownUser
		}
		return domain.Account{}, err
	}
	if account.Disabled() {
		return domain.Account{}, domain.ErrAccountDisabled
	}

	ok, err := pw.Verify(password, account.PasswordHash)
	if err != nil || !ok {
		return domain.Account{}, domain.ErrBadPassword
	}
	return account, nil
}

// FindByUsername looks an account up, returning domain.ErrNotFound when
// absent.
func (s *AccountService) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return s.accounts.GetByUsername(ctx, username)
}

// FindByID looks an account up by id, returning domain.ErrNotFound when
// absent.
func (s *AccountService) FindByID(ctx context.Context, id int64) (domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *AccountService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AccountService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
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

func (s *AccountService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
