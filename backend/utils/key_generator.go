package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// GenerateKey returns length random bytes, hex encoded.
func GenerateKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be a positive integer")
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// Fingerprint is a short, non-reversible tag for a secret, safe to log.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}
