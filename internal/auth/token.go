package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// NewToken returns a 256-bit bearer token from a cryptographically secure
// source, hex encoded. The caller sees it exactly once; only its hash is
// persisted.
func NewToken() (string, error) {
	var b [tokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token. A one-way
// cryptographic hash here is a correctness requirement: the stored value must
// not be invertible to the bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenHashEqual compares two token hashes in constant time.
func tokenHashEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
