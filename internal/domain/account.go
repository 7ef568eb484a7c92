package domain

import "time"

// Account statuses.
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

// Account is a registered user. The password hash is the argon2id encoded
// form, never the plaintext.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Disabled reports whether the account may not authenticate.
func (a Account) Disabled() bool {
	return a.Status == StatusDisabled
}
