// Package password implements one-way credential hashing with argon2id.
// The encoded hash embeds the algorithm parameters and salt, so stored
// hashes stay verifiable if the defaults are retuned later.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

var defaults = params{
	memory:  64 * 1024,
	time:    3,
	threads: 2,
	keyLen:  32,
	saltLen: 16,
}

var errInvalidHash = errors.New("invalid password hash")

// Hash returns the argon2id hash of plaintext in the standard encoded form.
func Hash(plaintext string) (string, error) {
	salt := make([]byte, defaults.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(plaintext), salt, defaults.time, defaults.memory, defaults.threads, defaults.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		defaults.memory,
		defaults.time,
		defaults.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks plaintext against an encoded hash. A malformed hash verifies
// as false with an error; a plain mismatch is (false, nil).
func Verify(plaintext, encoded string) (bool, error) {
	p, salt, want, err := decode(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(plaintext), salt, p.time, p.memory, p.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decode(encoded string) (params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params{}, nil, nil, errInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params{}, nil, nil, errInvalidHash
	}

	var p params
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil || threads == 0 || threads > 255 {
		return params{}, nil, nil, errInvalidHash
	}
	p.threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params{}, nil, nil, errInvalidHash
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params{}, nil, nil, errInvalidHash
	}

	return p, salt, sum, nil
}
