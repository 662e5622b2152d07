// Package jwt реализует выпуск и разбор JWT токенов сервиса.
//
// Maker выпускает пару access/refresh токенов и одноразовый токен сброса
// пароля, а также проверяет подпись, срок действия и тип токена.
package jwt

import (
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Типы токенов, записываемые в claim token_type.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeReset   = "password_reset"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GeneratePair выпускает access и refresh токены пользователя.
	GeneratePair(user *models.User) (*models.TokenPair, error)
	// GenerateResetToken выпускает токен сброса пароля с уникальным jti.
	GenerateResetToken(user *models.User) (token, jti string, err error)
	// ParseToken проверяет токен и его тип, возвращает claims.
	ParseToken(tokenStr, wantType string) (*CustomClaims, error)
	// ResetTTL время жизни токена сброса пароля.
	ResetTTL() time.Duration
}

// MakerImpl реализует Maker с подписью HS256.
type MakerImpl struct {
	secretKey  string
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// Options сроки жизни токенов и издатель.
type Options struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и сроков жизни.
func NewJWTMaker(secretKey string, opts Options) *MakerImpl {
	return &MakerImpl{
		secretKey:  secretKey,
		issuer:     opts.Issuer,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		resetTTL:   opts.ResetTTL,
		now:        time.Now,
	}
}

// ResetTTL возвращает время жизни токена сброса пароля.
func (j *MakerImpl) ResetTTL() time.Duration {
	return j.resetTTL
}
