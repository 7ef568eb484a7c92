// Package limiter throttles failed login attempts per (username, client IP).
package limiter

import (
	"context"
	"sync"
	"time"
)

// Limiter counts login failures and locks a (username, ip) pair out after
// too many in a row.
type Limiter interface {
	// Allow reports whether a login attempt may proceed.
	Allow(ctx context.Context, username, ip string) (bool, error)
	// Failure records a failed attempt.
	Failure(ctx context.Context, username, ip string) error
	// Success clears the failure count.
	Success(ctx context.Context, username, ip string) error
}

type memoryEntry struct {
	failures int
	until    time.Time
}

// Memory is the in-process Limiter used when redis is not configured.
type Memory struct {
	maxFailures int
	lockout     time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemory creates an in-memory limiter. maxFailures <= 0 disables limiting.
func NewMemory(maxFailures int, lockout time.Duration) *Memory {
	return &Memory{
		maxFailures: maxFailures,
		lockout:     lockout,
		now:         time.Now,
		entries:     make(map[string]*memoryEntry),
	}
}

func (m *Memory) Allow(ctx context.Context, username, ip string) (bool, error) {
	if m.maxFailures <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key(username, ip)]
	if !ok {
		return true, nil
	}
	if entry.until.IsZero() || !entry.until.After(m.now()) {
		return true, nil
	}
	return false, nil
}

func (m *Memory) Failure(ctx context.Context, username, ip string) error {
	if m.maxFailures <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(username, ip)
	entry, ok := m.entries[k]
	if !ok {
		entry = &memoryEntry{}
		m.entries[k] = entry
	}
	entry.failures++
	if entry.failures >= m.maxFailures {
		entry.until = m.now().Add(m.lockout)
		entry.failures = 0
	}
	return nil
}

func (m *Memory) Success(ctx context.Context, username, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key(username, ip))
	return nil
}

func key(username, ip string) string {
	return username + "|" + ip
}
