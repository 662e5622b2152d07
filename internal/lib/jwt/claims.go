package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// ErrWrongTokenType токен подписан верно, но предназначен для другого использования.
var ErrWrongTokenType = errors.New("wrong token type")

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (j *MakerImpl) sign(user *models.User, tokenType, jti string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := CustomClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// GeneratePair выпускает access и refresh токены.
func (j *MakerImpl) GeneratePair(user *models.User) (*models.TokenPair, error) {
	const op = "jwt.GeneratePair"
	access, err := j.sign(user, TokenTypeAccess, "", j.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := j.sign(user, TokenTypeRefresh, uuid.NewString(), j.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.TokenPair{Access: access, Refresh: refresh}, nil
}

// GenerateResetToken выпускает токен сброса пароля. jti нужен, чтобы
// погасить токен после первого использования.
func (j *MakerImpl) GenerateResetToken(user *models.User) (string, string, error) {
	const op = "jwt.GenerateResetToken"
	jti := uuid.NewString()
	token, err := j.sign(user, TokenTypeReset, jti, j.resetTTL)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, jti, nil
}

// ParseToken парсит JWT токен, проверяет подпись, срок и тип.
func (j *MakerImpl) ParseToken(tokenStr, wantType string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if wantType != "" && claims.TokenType != wantType {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongTokenType)
	}
	return claims, nil
}
