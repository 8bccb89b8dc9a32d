package security

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the bcrypt work factor.
const bcryptCost = 12

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MatchFormPassword checks a submitted password against a form's stored
// password, which is either a bcrypt hash or legacy plaintext.
func MatchFormPassword(stored, submitted string) bool {
	if stored == "" || submitted == "" {
		return false
	}
	if isBcryptHash(stored) {
		return CheckPassword(stored, submitted)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
