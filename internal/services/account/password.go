package account

import (
	"errors"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/password"
)

func checkPassword(pw, confirm string) error {
	switch err := password.CheckNew(pw, confirm); {
	case errors.Is(err, password.ErrTooShort):
		return apperr.Validation("Password is too short.", map[string]string{
			"password": "Ensure this field has at least 6 characters.",
		})
	case errors.Is(err, password.ErrMismatch):
		return apperr.Validation("Passwords do not match.", map[string]string{
			"password": "Passwords do not match.",
		})
	default:
		return err
	}
}

func hashPassword(pw string) (string, error) {
	return password.GetHash(pw)
}

func comparePassword(hash, pw string) error {
	return password.CompareHash(hash, pw)
}
