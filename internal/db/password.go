package db

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ResetSentinel is stored in place of a password hash after an admin
// reset; the next password the account presents replaces it.
const ResetSentinel = "%RESET_PASSWORD"

// HashPassword hashes a cleartext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the presented password matches the
// stored hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
