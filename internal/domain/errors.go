// Package domain holds the core entities and the sentinel errors used for
// stable error mapping across layers.
package domain

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken indicates a registration with a username that is
	// already in use.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUnknownUser indicates a login for a username with no account.
	ErrUnknownUser = errors.New("unknown user")

	// ErrBadPassword indicates a login with the wrong password.
	ErrBadPassword = errors.New("bad password")

	// ErrAccountDisabled indicates a login against a disabled account.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrTokenNotFound indicates a refresh token string with no stored row.
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrTokenExpired indicates a refresh token past its expiry. The row is
	// purged as a side effect of the check that raises this.
	ErrTokenExpired = errors.New("refresh token expired")
)

// AuthenticationFailure reports whether err is one of the credential-check
// failures that must surface uniformly at the HTTP boundary.
func AuthenticationFailure(err error) bool {
	return errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrBadPassword) ||
		errors.Is(err, ErrAccountDisabled)
}
