// Package dashboard реализует HTTP-обработчики админ-панели.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Service описывает операции админ-панели.
type Service interface {
	Overview(ctx context.Context, page models.Page) (*models.DashboardOverview, models.PageInfo, error)
	UserDetail(ctx context.Context, id int64) (*models.UserWithSubscriptions, error)
}

// Handler обработчики админ-панели.
type Handler struct {
	log *slog.Logger
	svc Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// Overview godoc
// @Summary Сводка админ-панели
// @Description Счётчики пользователей, суммарная выручка и страница пользователей с подписками.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы (до 100)"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /dashboard [get]
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.Overview"
	log := h.log.With(slog.String("op", op), slog.String("request_id", middleware.GetReqID(r.Context())))

	page, err := response.ParsePage(r)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	overview, info, err := h.svc.Overview(r.Context(), page)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OKWithExtra(w, r, http.StatusOK, "Dashboard data fetched successfully.", overview, info)
}

// UserDetail godoc
// @Summary Пользователь с историей подписок
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /dashboard/users/{id} [get]
func (h *Handler) UserDetail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.UserDetail"
	log := h.log.With(slog.String("op", op), slog.String("request_id", middleware.GetReqID(r.Context())))

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, r, log, apperr.New(apperr.KindNotFound, "User not found."))
		return
	}
	u, err := h.svc.UserDetail(r.Context(), id)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "User details fetched successfully.", u)
}
