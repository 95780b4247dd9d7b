package mockapi

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const refreshOpaqueByteLength = 32

var refreshTokenRandomSource io.Reader = rand.Reader

// NewRefreshTokenID returns a fresh identifier for a refresh token row.
func NewRefreshTokenID() string {
	return uuid.NewString()
}

// GenerateRefreshOpaque returns a random opaque token and its storage hash.
func GenerateRefreshOpaque() (string, string, error) {
	randomBytes := make([]byte, refreshOpaqueByteLength)
	if _, err := io.ReadFull(refreshTokenRandomSource, randomBytes); err != nil {
		return "", "", fmt.Errorf("refresh_store.random: %w", err)
	}
	opaque := base64.RawURLEncoding.EncodeToString(randomBytes)
	return opaque, HashRefreshOpaque(opaque), nil
}

// HashRefreshOpaque is the value stored in place of the opaque token.
func HashRefreshOpaque(opaque string) string {
	sum := sha256.Sum256([]byte(opaque))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
