package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// UserLoader загружает пользователя по идентификатору.
type UserLoader interface {
	Profile(ctx context.Context, userID int64) (*models.User, error)
}

// RequireAdmin пропускает только пользователей с ролью admin (is_staff).
func RequireAdmin(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				response.Fail(w, r, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
				return
			}
			if claims.Role != models.RoleAdmin {
				log.Info("admin access denied", slog.Int64("user_id", claims.UserID))
				response.Fail(w, r, http.StatusForbidden, "You do not have permission to perform this action.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperuser пропускает только суперпользователей. Флаг читается из базы,
// так как в токене его нет.
func RequireSuperuser(users UserLoader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				response.Fail(w, r, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
				return
			}
			u, err := users.Profile(r.Context(), claims.UserID)
			if err != nil {
				response.Error(w, r, log, err)
				return
			}
			if !u.IsSuperuser {
				log.Info("superuser access denied", slog.Int64("user_id", claims.UserID))
				response.Fail(w, r, http.StatusForbidden, "You do not have permission to perform this action.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
