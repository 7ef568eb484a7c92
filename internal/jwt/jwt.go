// Package jwt implements the access-token codec: minting and verifying the
// short-lived signed bearer credential. Verification is self-contained and
// never touches the store.
package jwt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Verification failures, ordered from least to most trustworthy input:
// a token can be structurally broken, carry a bad signature, or be a
// genuine token past its expiry.
var (
	ErrMalformed        = errors.New("malformed access token")
	ErrInvalidSignature = errors.New("invalid access token signature")
	ErrExpired          = errors.New("access token expired")
)

var allowedAlgorithms = []gojose.SignatureAlgorithm{gojose.HS256}

// Codec signs and verifies access tokens with a single HS256 key derived
// once from the configured secret. Rotating the secret invalidates every
// outstanding access token.
type Codec struct {
	key       []byte
	accessTTL time.Duration
	now       func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source, used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec derives the signing key from secret and returns a ready codec.
func NewCodec(secret string, accessTTL time.Duration, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	c := &Codec{key: key[:], accessTTL: accessTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint produces a signed token asserting subject until now+TTL.
func (c *Codec) Mint(subject string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := c.now().UTC()
	claims := gojwt.Claims{
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(c.accessTTL)),
	}

	token, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// VerifyAndDecode checks structure, signature, and expiry, returning the
// claims on success. Expiry is exclusive: a token checked exactly at its
// expiry instant is already expired.
func (c *Codec) VerifyAndDecode(token string) (*gojwt.Claims, error) {
	parsed, err := gojwt.ParseSigned(token, allowedAlgorithms)
	if err != nil {
		return nil, ErrMalformed
	}

	var claims gojwt.Claims
	if err := parsed.Claims(c.key, &claims); err != nil {
		return nil, ErrInvalidSignature
	}

	if claims.Expiry == nil {
		return nil, ErrMalformed
	}
	if !claims.Expiry.Time().After(c.now()) {
		return nil, ErrExpired
	}

	return &claims, nil
}
