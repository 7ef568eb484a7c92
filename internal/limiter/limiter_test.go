package limiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernlabs/authgate/internal/limiter"
)

func TestMemoryLocksAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	m := limiter.NewMemory(3, 5*time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, m.Failure(ctx, "alice", "10.0.0.1"))
		allowed, err := m.Allow(ctx, "alice", "10.0.0.1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	require.NoError(t, m.Failure(ctx, "alice", "10.0.0.1"))
	allowed, err := m.Allow(ctx, "alice", "10.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestMemoryScopesByUsernameAndIP(t *testing.T) {
	ctx := context.Background()
	m := limiter.NewMemory(1, 5*time.Minute)

	require.NoError(t, m.Failure(ctx, "alice", "10.0.0.1"))

	allowed, err := m.Allow(ctx, "alice", "10.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = m.Allow(ctx, "alice", "10.0.0.2")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = m.Allow(ctx, "bob", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestMemorySuccessClearsFailures(t *testing.T) {
	ctx := context.Background()
	m := limiter.NewMemory(2, 5*time.Minute)

	require.NoError(t, m.Failure(ctx, "alice", "10.0.0.1"))
	require.NoError(t, m.Success(ctx, "alice", "10.0.0.1"))
	require.NoError(t, m.Failure(ctx, "alice", "10.0.0.1"))

	allowed, err := m.Allow(ctx, "alice", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestMemoryDisabledWhenMaxFailuresZero(t *testing.T) {
	ctx := context.Background()
	m := limiter.NewMemory(0, 5*time.Minute)

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Failure(ctx, "alice", "10.0.0.1"))
	}
	allowed, err := m.Allow(ctx, "alice", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)
}
