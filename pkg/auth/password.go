package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Raising the cost later is safe; existing hashes carry their own factor.
const hashCost = bcrypt.DefaultCost

// HashPassword derives a bcrypt hash for storage.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
func VerifyPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
