package auth

import "golang.org/x/crypto/bcrypt"

// Hasher defines password verification contract.
type Hasher interface {
	Compare(hash, password string) error
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct{}

// NewBcryptHasher returns a bcrypt-backed password verifier.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{}
}

// Compare checks if provided password matches stored hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
