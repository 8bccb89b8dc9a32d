package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// apiKeyPrefix marks form API keys so they are recognizable in logs and configs.
const apiKeyPrefix = "fgk_"

// GenerateAPIKey creates a new random form API key string.
func GenerateAPIKey() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(secret), nil
}

// LooksLikeAPIKey reports whether token has the form API key shape.
func LooksLikeAPIKey(token string) bool {
	return strings.HasPrefix(token, apiKeyPrefix) && len(token) == len(apiKeyPrefix)+64
}
