package domain

import "time"

// RefreshToken persists the long-lived opaque credential exchanged for new
// access tokens. The token string is the external identifier and must be
// unguessable.
type RefreshToken struct {
	ID         int64
	AccountID  int64
	Token      string
	ExpiryDate time.Time
	CreatedAt  time.Time
}

// ExpiredAt reports whether the token is no longer valid at now.
// Validity is exclusive of the expiry instant itself.
func (t RefreshToken) ExpiredAt(now time.Time) bool {
	return !t.ExpiryDate.After(now)
}
