// Package auth implements credential token generation and hashing.
//
// A raw token is "atl_" followed by 64 lowercase hex characters (32 random
// bytes). It is returned to the caller exactly once at issuance; the store
// only ever sees its SHA-256 fingerprint (unique, used for lookup) and a
// bcrypt hash (verified after the fingerprint match).
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Prefix is the fixed, recognizable token prefix. Values that do not
// start with it are rejected before any store lookup.
const Prefix = "atl_"

const (
	secretBytes = 32
	rawLen      = len(Prefix) + 2*secretBytes

	// VisibleLen is how many leading characters of the raw token are kept
	// for display. 12 chars = prefix + 8 hex, not enough to reconstruct
	// anything.
	VisibleLen = 12
)

// Generate returns a new random raw token.
func Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(b), nil
}

// WellFormed reports whether raw has the expected prefix, length and
// hex alphabet. A malformed value never reaches the store.
func WellFormed(raw string) bool {
	if len(raw) != rawLen || raw[:len(Prefix)] != Prefix {
		return false
	}
	for i := len(Prefix); i < len(raw); i++ {
		c := raw[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Fingerprint returns the hex SHA-256 digest of the raw token. This is the
// unique store lookup key; it is one-way, so listing credentials can never
// reveal the token itself.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashSecret returns a bcrypt hash of the raw token for storage.
func HashSecret(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifySecret reports whether raw matches the stored bcrypt hash.
func VerifySecret(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// VisiblePrefix returns the display prefix of a raw token.
func VisiblePrefix(raw string) string {
	if len(raw) < VisibleLen {
		return raw
	}
	return raw[:VisibleLen]
}
