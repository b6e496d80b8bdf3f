package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/Kasis11/budgetly/errors"
)

// PasswordCost is the bcrypt work factor for new hashes. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

var ErrPasswordMismatch = errors.New("password does not match")

func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", appErrors.Invalid("password: Ensure this field has no more than %d bytes.", MAX_PASSWORD_LENGTH)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword returns ErrPasswordMismatch when plain does not produce hashed.
func CheckPassword(hashed string, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}
