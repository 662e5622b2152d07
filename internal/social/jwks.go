// Package social проверяет токены внешних провайдеров входа.
//
// Google и Apple выдают подписанные ID-токены, которые проверяются по
// опубликованному JWKS. Microsoft выдаёт access-токен, по которому данные
// пользователя запрашиваются у Graph API.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Адреса JWKS и издатели провайдеров.
const (
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	AppleJWKSURL  = "https://appleid.apple.com/auth/keys"
)

var (
	googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}
	appleIssuers  = []string{"https://appleid.apple.com"}
)

var (
	// ErrNotConfigured провайдер не настроен (нет client id).
	ErrNotConfigured = errors.New("social provider is not configured")
	// ErrInvalidIssuer токен выпущен не тем издателем.
	ErrInvalidIssuer = errors.New("invalid token issuer")
)

// IDTokenClaims поля ID-токена, нужные для входа.
type IDTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWKSVerifier проверяет ID-токены, подписанные ключами из JWKS.
// Набор ключей загружается при первой проверке и обновляется в фоне.
type JWKSVerifier struct {
	provider string
	jwksURL  string
	audience string
	issuers  []string
	log      *slog.Logger

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

// NewGoogleVerifier создаёт проверку ID-токенов Google.
func NewGoogleVerifier(clientID, jwksURL string, log *slog.Logger) *JWKSVerifier {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	return newJWKSVerifier("google", clientID, jwksURL, googleIssuers, log)
}

// NewAppleVerifier создаёт проверку identity-токенов Apple.
func NewAppleVerifier(clientID, jwksURL string, log *slog.Logger) *JWKSVerifier {
	if jwksURL == "" {
		jwksURL = AppleJWKSURL
	}
	return newJWKSVerifier("apple", clientID, jwksURL, appleIssuers, log)
}

func newJWKSVerifier(provider, audience, jwksURL string, issuers []string, log *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{
		provider: provider,
		jwksURL:  jwksURL,
		audience: audience,
		issuers:  issuers,
		log:      log.With(slog.String("provider", provider)),
	}
}

// Verify проверяет подпись, срок, аудиторию и издателя токена.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*models.SocialIdentity, error) {
	const op = "social.JWKSVerifier.Verify"

	if v.audience == "" {
		return nil, fmt.Errorf("%s: %s: %w", op, v.provider, ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwks, err := v.keys()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims := &IDTokenClaims{}
	_, err = jwt.ParseWithClaims(token, claims, jwks.Keyfunc,
		jwt.WithAudience(v.audience),
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidIssuer, claims.Issuer)
	}

	return &models.SocialIdentity{Email: claims.Email, FullName: claims.Name}, nil
}

func (v *JWKSVerifier) keys() (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}

	jwks, err := keyfunc.Get(v.jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			v.log.Warn("failed to refresh jwks", sl.Err(err))
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks %s: %w", v.jwksURL, err)
	}
	v.jwks = jwks
	return jwks, nil
}

// Close останавливает фоновое обновление ключей.
func (v *JWKSVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
		v.jwks = nil
	}
}
