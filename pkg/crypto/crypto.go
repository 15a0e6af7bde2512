package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost factor used when none is configured.
const DefaultHashCost = 10

// Hasher wraps bcrypt with a configurable cost factor.
type Hasher struct {
	cost int
}

// NewHasher builds a password hasher. Costs outside the bcrypt range fall
// back to DefaultHashCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a bcrypt hash of the supplied password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares the hashed password with the plaintext candidate. bcrypt
// performs the comparison in constant time.
func (h *Hasher) Verify(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: token length must be positive")
	}

	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
