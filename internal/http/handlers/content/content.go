// Package content реализует HTTP-обработчики статических страниц,
// обращений и отзывов.
package content

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Service описывает операции контента.
type Service interface {
	Page(ctx context.Context, slug string) (*models.ContentPage, error)
	SavePage(ctx context.Context, slug string, in models.ContentPageInput) (*models.ContentPage, bool, error)
	CreateQuery(ctx context.Context, in models.ContactQuery) (*models.ContactQuery, error)
	ListQueries(ctx context.Context) ([]models.ContactQuery, error)
	GetQuery(ctx context.Context, id int64) (*models.ContactQuery, error)
	ShareThought(ctx context.Context, userID int64, text string) (*models.Thought, error)
	ListThoughts(ctx context.Context) ([]models.Thought, error)
}

// Handler обработчики контента.
type Handler struct {
	log      *slog.Logger
	svc      Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc, validate: response.NewValidator()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// ThoughtRequest тело отзыва.
type ThoughtRequest struct {
	Thoughts string `json:"thoughts" validate:"required,max=5000"`
}

// GetPage godoc
// @Summary Страница контента
// @Tags Content
// @Produce json
// @Param slug path string true "privacy-policy | about-us | terms-conditions"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /content/{slug} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.GetPage")

	p, err := h.svc.Page(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Content fetched successfully.", p)
}

// SavePage godoc
// @Summary Создание или обновление страницы
// @Description PUT и PATCH ведут себя одинаково: меняются только переданные поля.
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "privacy-policy | about-us | terms-conditions"
// @Param request body models.ContentPageInput true "Поля страницы"
// @Success 200 {object} response.Response
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /content/{slug} [put]
// @Router /content/{slug} [patch]
func (h *Handler) SavePage(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.SavePage")

	var in models.ContentPageInput
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	p, created, err := h.svc.SavePage(r.Context(), chi.URLParam(r, "slug"), in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if created {
		response.OK(w, r, http.StatusCreated, "Content created successfully.", p)
		return
	}
	response.OK(w, r, http.StatusOK, "Content updated successfully.", p)
}

// CreateQuery godoc
// @Summary Обращение через форму обратной связи
// @Tags Content
// @Accept json
// @Produce json
// @Param request body models.ContactQuery true "Обращение"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /queries [post]
func (h *Handler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.CreateQuery")

	var in models.ContactQuery
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	q, err := h.svc.CreateQuery(r.Context(), in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("contact query received", slog.Int64("query_id", q.ID))
	response.OK(w, r, http.StatusCreated, "Your query has been submitted successfully.", q)
}

// ListQueries godoc
// @Summary Все обращения
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /queries [get]
func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.ListQueries")

	out, err := h.svc.ListQueries(r.Context())
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if out == nil {
		out = []models.ContactQuery{}
	}
	response.OK(w, r, http.StatusOK, "Queries fetched successfully.", out)
}

// GetQuery godoc
// @Summary Обращение по ID
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID обращения"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /queries/{id} [get]
func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.GetQuery")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, r, log, apperr.New(apperr.KindNotFound, "Query not found."))
		return
	}
	q, err := h.svc.GetQuery(r.Context(), id)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Query fetched successfully.", q)
}

// ShareThought godoc
// @Summary Отзыв пользователя
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ThoughtRequest true "Отзыв"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /thoughts [post]
func (h *Handler) ShareThought(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.ShareThought")

	var req ThoughtRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	th, err := h.svc.ShareThought(r.Context(), middlewarectx.UserID(r.Context()), req.Thoughts)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, "Thank you for sharing your thoughts.", th)
}

// ListThoughts godoc
// @Summary Отзывы пользователей
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /thoughts [get]
func (h *Handler) ListThoughts(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.content.ListThoughts")

	out, err := h.svc.ListThoughts(r.Context())
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if out == nil {
		out = []models.Thought{}
	}
	response.OK(w, r, http.StatusOK, "Thoughts fetched successfully.", out)
}
