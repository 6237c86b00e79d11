package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix marks an opaque API key. A presented credential with this prefix
// takes the key path in the verifier; anything else is treated as a JWT.
const KeyPrefix = "docamy_"

// GenerateKey returns a new high-entropy API key with the recognized prefix.
// The plaintext is shown to the caller once and never stored.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashKey returns the hex sha256 digest of an API key, the only form that
// is persisted. Lookup by exact digest avoids any byte-wise comparison of
// secret material.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HasKeyPrefix reports whether the credential looks like an opaque API key.
func HasKeyPrefix(credential string) bool {
	return strings.HasPrefix(credential, KeyPrefix)
}
