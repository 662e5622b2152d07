// Package password реализует хеширование и проверку паролей через bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength минимальная длина пароля.
const MinLength = 6

var (
	// ErrUnusable у пользователя нет пароля (вход только через провайдера).
	ErrUnusable = errors.New("password is not set")
	// ErrTooShort пароль короче MinLength.
	ErrTooShort = errors.New("password is too short")
	// ErrMismatch пароль и подтверждение не совпадают.
	ErrMismatch = errors.New("passwords do not match")
)

// GetHash принимает пароль пользователя и возвращает его bcrypt-хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt-хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if originalHash == "" {
		return fmt.Errorf("%s: %w", op, ErrUnusable)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckNew проверяет новый пароль и его подтверждение.
func CheckNew(password, confirm string) error {
	if len(password) < MinLength {
		return ErrTooShort
	}
	if password != confirm {
		return ErrMismatch
	}
	return nil
}
