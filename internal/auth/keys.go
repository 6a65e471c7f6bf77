// Package auth issues and hashes user API keys. Only the hash is stored;
// the raw key is shown to the user once, at registration.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix marks hubcredo API keys so they are recognizable in configs and logs.
const KeyPrefix = "hc_"

// keyBytes is the amount of randomness in a generated key.
const keyBytes = 24

// GenerateKey returns a new random API key.
func GenerateKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

// HashKey returns a SHA-256 hash of the key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
