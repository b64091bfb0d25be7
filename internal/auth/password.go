package auth

import (
	"golang.org/x/crypto/bcrypt"

	"funds_tracker/internal/usecase"
)

// BcryptHasher hashes passwords with bcrypt at the given cost
type BcryptHasher struct {
	Cost int
}

var _ usecase.PasswordHasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
