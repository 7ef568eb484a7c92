package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/fernlabs/authgate/internal/domain"
)

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[int64]domain.Account)}
}

func (r *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *fakeAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == account.Username {
			return domain.Account{}, domain.ErrUsernameTaken
		}
	}
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = account
	return account, nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[int64]domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[int64]domain.RefreshToken)}
}

func (r *fakeTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.CreatedAt = time.Now().UTC()
	r.tokens[token.ID] = token
	return token, nil
}

func (r *fakeTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return domain.RefreshToken{}, domain.ErrNotFound
}

func (r *fakeTokenRepo) UpdateToken(ctx context.Context, id int64, token string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Token = token
	t.ExpiryDate = expiry
	r.tokens[id] = t
	return nil
}

func (r *fakeTokenRepo) DeleteByAccountID(ctx context.Context, accountID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, t := range r.tokens {
		if t.AccountID == accountID {
			delete(r.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
