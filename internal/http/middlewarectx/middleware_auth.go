// Package middlewarectx содержит HTTP middleware API: проверку JWT,
// проверку прав администратора и ограничение частоты запросов.
//
// JWTMiddleware проверяет access-токен из заголовка Authorization и кладёт
// его claims в контекст запроса. В случае ошибки отвечает 401.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// ClaimsKey ключ claims access-токена в контексте.
const ClaimsKey Key = "claims"

// TokenParser проверяет JWT.
type TokenParser interface {
	ParseToken(tokenStr, wantType string) (*jwt.CustomClaims, error)
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return tok, tok != ""
}

// JWTMiddleware возвращает HTTP middleware, который проверяет access-токен.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr, ok := BearerToken(r)
			if !ok {
				log.Info("missing or invalid authorization header")
				response.Fail(w, r, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
				return
			}

			claims, err := parser.ParseToken(tokenStr, jwt.TokenTypeAccess)
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				response.Fail(w, r, http.StatusUnauthorized, "Given token not valid for any token type.", nil)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, положенные JWTMiddleware.
func ClaimsFrom(ctx context.Context) (*jwt.CustomClaims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwt.CustomClaims)
	return c, ok && c != nil
}

// UserID возвращает идентификатор пользователя из контекста, 0 если его нет.
func UserID(ctx context.Context) int64 {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.UserID
	}
	return 0
}

// WithClaims кладёт claims в контекст. Используется в тестах обработчиков.
func WithClaims(ctx context.Context, c *jwt.CustomClaims) context.Context {
	return context.WithValue(ctx, ClaimsKey, c)
}
