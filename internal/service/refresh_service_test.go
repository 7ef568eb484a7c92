package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/domain"
	"github.com/fernlabs/authgate/internal/service"
)

func newRefreshService(t *testing.T, tokens *fakeTokenRepo, accounts *fakeAccountRepo, cfg service.RefreshTokenConfig, opts ...service.RefreshOption) *service.RefreshTokenService {
	t.Helper()
	if cfg.TTL == 0 {
		cfg.TTL = 720 * time.Hour
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = 32
	}
	return service.NewRefreshTokenService(tokens, accounts, newTestCodec(t), newTestNode(t), cfg, zap.NewNop(), opts...)
}

func seedAccount(t *testing.T, accounts *fakeAccountRepo) domain.Account {
	t.Helper()
	svc := newAccountService(t, accounts)
	account, err := svc.Register(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	return account
}

func TestIssueStoresToken(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)

	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 720 * time.Hour
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{TTL: ttl},
		service.WithRefreshClock(func() time.Time { return issued }))

	token, err := svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)
	require.NotZero(t, token.ID)
	require.Equal(t, account.ID, token.AccountID)
	require.Len(t, token.Token, 64)
	require.Equal(t, issued.Add(ttl), token.ExpiryDate)
	require.Equal(t, 1, tokens.count())
}

func TestIssueTokensAreUnique(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{})

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		token, err := svc.Issue(context.Background(), account.ID)
		require.NoError(t, err)
		_, dup := seen[token.Token]
		require.False(t, dup, "duplicate refresh token at draw %d", i)
		seen[token.Token] = struct{}{}
	}
}

func TestIssueRevokeOnLoginKeepsOneToken(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{RevokeOnLogin: true})

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(context.Background(), account.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 1, tokens.count())
}

func TestRefreshAccessTokenEchoesSameToken(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{})

	issued, err := svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)

	pair, err := svc.RefreshAccessToken(context.Background(), issued.Token)
	require.NoError(t, err)
	require.Equal(t, issued.Token, pair.RefreshToken)
	require.NotEmpty(t, pair.AccessToken)

	codec := newTestCodec(t)
	claims, err := codec.VerifyAndDecode(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.Username, claims.Subject)
}

func TestRefreshAccessTokenRotates(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{Rotate: true})

	issued, err := svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)

	pair, err := svc.RefreshAccessToken(context.Background(), issued.Token)
	require.NoError(t, err)
	require.NotEqual(t, issued.Token, pair.RefreshToken)

	// The old string no longer resolves; the rotated one does.
	_, err = svc.RefreshAccessToken(context.Background(), issued.Token)
	require.ErrorIs(t, err, domain.ErrTokenNotFound)

	_, err = svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	seedAccount(t, accounts)
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{})

	_, err := svc.RefreshAccessToken(context.Background(), "no-such-token")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestExpiredTokenPurgesAccountTokens(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{TTL: ttl},
		service.WithRefreshClock(func() time.Time { return now }))

	first, err := svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, 2, tokens.count())

	// Exactly at expiry the token is already dead, and the first touch
	// erases every token the account holds.
	now = now.Add(ttl)
	_, err = svc.RefreshAccessToken(context.Background(), first.Token)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
	require.Equal(t, 0, tokens.count())

	_, err = svc.RefreshAccessToken(context.Background(), second.Token)
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRevokeAllForAccount(t *testing.T) {
	tokens := newFakeTokenRepo()
	accounts := newFakeAccountRepo()
	account := seedAccount(t, accounts)
	svc := newRefreshService(t, tokens, accounts, service.RefreshTokenConfig{})

	issued, err := svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), account.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForAccount(context.Background(), account.ID))
	require.Equal(t, 0, tokens.count())

	_, err = svc.RefreshAccessToken(context.Background(), issued.Token)
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}
