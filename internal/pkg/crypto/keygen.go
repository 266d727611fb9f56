// Package crypto provides random secret generation for the admin tooling.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

const (
	// TokenSecretSize is the number of random bytes in a generated token
	// signing secret.
	TokenSecretSize = 32

	// DefaultPasswordLength is the length of generated account passwords.
	DefaultPasswordLength = 20

	// passwordChars excludes look-alike characters (0/O, 1/l/I).
	passwordChars = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

// ErrInvalidLength indicates a non-positive length was requested.
var ErrInvalidLength = errors.New("length must be positive")

// GenerateTokenSecret returns a random 32-byte secret as 64 hex characters,
// suitable for auth.token_secret.
func GenerateTokenSecret() (string, error) {
	key := make([]byte, TokenSecretSize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GeneratePassword returns a random password of the given length.
func GeneratePassword(length int) (string, error) {
	return generateRandomString(length, passwordChars)
}

// generateRandomString draws each character uniformly from charset.
func generateRandomString(length int, charset string) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	result := make([]byte, length)
	limit := big.NewInt(int64(len(charset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
