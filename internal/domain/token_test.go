package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernlabs/authgate/internal/domain"
)

func TestRefreshTokenExpiryIsExclusive(t *testing.T) {
	expiry := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token := domain.RefreshToken{ExpiryDate: expiry}

	require.False(t, token.ExpiredAt(expiry.Add(-time.Second)))
	require.True(t, token.ExpiredAt(expiry))
	require.True(t, token.ExpiredAt(expiry.Add(time.Second)))
}

func TestAccountDisabled(t *testing.T) {
	require.False(t, domain.Account{Status: domain.StatusActive}.Disabled())
	require.True(t, domain.Account{Status: domain.StatusDisabled}.Disabled())
}
