// Package phone разбирает и нормализует телефонные номера в формат E.164.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalid номер не удалось разобрать или он не существует в плане нумерации.
var ErrInvalid = errors.New("invalid phone number")

// Normalize приводит номер к E.164. Номер без кода страны разбирается
// относительно defaultRegion (ISO 3166-1 alpha-2).
func Normalize(raw, defaultRegion string) (string, error) {
	const op = "phone.Normalize"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrInvalid, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalid)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// IsE164 сообщает, похожа ли строка на номер в формате E.164.
func IsE164(s string) bool {
	if len(s) < 8 || len(s) > 16 || s[0] != '+' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
