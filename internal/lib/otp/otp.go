// Package otp генерирует одноразовые числовые коды.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// DefaultLength длина кода по умолчанию.
const DefaultLength = 6

// Generate возвращает код из length цифр без ведущего нуля.
func Generate(length int) (string, error) {
	const op = "otp.Generate"
	if length <= 0 || length > 18 {
		length = DefaultLength
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(low, big.NewInt(10)), low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return n.Add(n, low).String(), nil
}

// Code код вместе со сроком действия.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// Issue генерирует код, действующий ttl начиная с now.
func Issue(length int, ttl time.Duration, now time.Time) (Code, error) {
	value, err := Generate(length)
	if err != nil {
		return Code{}, err
	}
	return Code{Value: value, ExpiresAt: now.Add(ttl)}, nil
}
