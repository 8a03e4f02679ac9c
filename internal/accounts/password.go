package accounts

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/swelljoe/wthrdash/internal/apperror"
)

// DefaultCost is the bcrypt work factor used outside of tests.
const DefaultCost = 12

// maxPasswordBytes is the bcrypt input limit. Longer input would be silently
// truncated, so it is rejected instead.
const maxPasswordBytes = 72

var errInvalidPassword = errors.New("invalid password")

type passwordHasher struct {
	cost int
}

func (p passwordHasher) hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", apperror.ValidationFailed("password", fmt.Sprintf("Password must be %d bytes or fewer", maxPasswordBytes))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

func (p passwordHasher) verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errInvalidPassword
		}
		return fmt.Errorf("comparing password hash: %w", err)
	}
	return nil
}
