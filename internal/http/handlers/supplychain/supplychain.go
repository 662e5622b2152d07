// Package supplychain реализует HTTP-обработчики поставщиков, ресурсов,
// задач и уведомлений. Все записи видны только их владельцу.
package supplychain

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
	scsvc "github.com/magabrotheeeer/marketplace-backend/internal/services/supplychain"
)

// Service описывает операции цепочки поставок.
type Service interface {
	ListSuppliers(ctx context.Context, supervisorID int64) ([]models.Supplier, error)
	GetSupplier(ctx context.Context, supervisorID, id int64) (*models.Supplier, error)
	CreateSupplier(ctx context.Context, supervisorID int64, in models.SupplierInput) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, supervisorID, id int64, in models.SupplierInput) (*models.Supplier, error)
	DeleteSupplier(ctx context.Context, supervisorID, id int64) error

	ListResources(ctx context.Context, supervisorID int64) ([]models.Resource, error)
	GetResource(ctx context.Context, supervisorID, id int64) (*models.Resource, error)
	CreateResource(ctx context.Context, supervisorID int64, in models.ResourceInput) (*models.Resource, error)
	UpdateResource(ctx context.Context, supervisorID, id int64, in models.ResourceInput) (*models.Resource, error)
	DeleteResource(ctx context.Context, supervisorID, id int64) error

	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ByStatus(ctx context.Context, q scsvc.ReportQuery) (*models.TaskReport, error)

	ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (*models.Notification, error)
}

// Handler обработчики цепочки поставок.
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
		slog.Int64("user_id", middlewarectx.UserID(r.Context())),
	)
}

// idParam читает числовой {id}; нечисловой id означает отсутствующую запись.
func idParam(r *http.Request, notFoundMsg string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindNotFound, notFoundMsg)
	}
	return id, nil
}

// ListSuppliers godoc
// @Summary Поставщики текущего пользователя
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /suppliers [get]
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.ListSuppliers")

	out, err := h.svc.ListSuppliers(r.Context(), middlewarectx.UserID(r.Context()))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if out == nil {
		out = []models.Supplier{}
	}
	response.OK(w, r, http.StatusOK, "Suppliers fetched successfully.", out)
}

// GetSupplier godoc
// @Summary Поставщик по ID
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID поставщика"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /suppliers/{id} [get]
func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.GetSupplier")

	id, err := idParam(r, "Supplier not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	s, err := h.svc.GetSupplier(r.Context(), middlewarectx.UserID(r.Context()), id)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Supplier fetched successfully.", s)
}

// CreateSupplier godoc
// @Summary Создание поставщика
// @Description Создаёт поставщика и уведомление владельцу.
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SupplierInput true "Поставщик"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /suppliers [post]
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.CreateSupplier")

	var in models.SupplierInput
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	s, err := h.svc.CreateSupplier(r.Context(), middlewarectx.UserID(r.Context()), in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, "Supplier created successfully.", s)
}

// UpdateSupplier godoc
// @Summary Обновление поставщика
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID поставщика"
// @Param request body models.SupplierInput true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /suppliers/{id} [patch]
func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.UpdateSupplier")

	id, err := idParam(r, "Supplier not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	var in models.SupplierInput
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	s, err := h.svc.UpdateSupplier(r.Context(), middlewarectx.UserID(r.Context()), id, in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Supplier updated successfully.", s)
}

// DeleteSupplier godoc
// @Summary Удаление поставщика
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID поставщика"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /suppliers/{id} [delete]
func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.DeleteSupplier")

	id, err := idParam(r, "Supplier not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.svc.DeleteSupplier(r.Context(), middlewarectx.UserID(r.Context()), id); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Supplier deleted successfully.", nil)
}

// ListResources godoc
// @Summary Ресурсы текущего пользователя
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /resources [get]
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.ListResources")

	out, err := h.svc.ListResources(r.Context(), middlewarectx.UserID(r.Context()))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if out == nil {
		out = []models.Resource{}
	}
	response.OK(w, r, http.StatusOK, "Resources fetched successfully.", out)
}

// GetResource godoc
// @Summary Ресурс по ID
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID ресурса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /resources/{id} [get]
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.GetResource")

	id, err := idParam(r, "Resource not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	res, err := h.svc.GetResource(r.Context(), middlewarectx.UserID(r.Context()), id)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Resource fetched successfully.", res)
}

// CreateResource godoc
// @Summary Создание ресурса
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ResourceInput true "Ресурс"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /resources [post]
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.CreateResource")

	var in models.ResourceInput
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	res, err := h.svc.CreateResource(r.Context(), middlewarectx.UserID(r.Context()), in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, "Resource created successfully.", res)
}

// UpdateResource godoc
// @Summary Обновление ресурса
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID ресурса"
// @Param request body models.ResourceInput true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /resources/{id} [patch]
func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.UpdateResource")

	id, err := idParam(r, "Resource not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	var in models.ResourceInput
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	res, err := h.svc.UpdateResource(r.Context(), middlewarectx.UserID(r.Context()), id, in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Resource updated successfully.", res)
}

// DeleteResource godoc
// @Summary Удаление ресурса
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID ресурса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /resources/{id} [delete]
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.DeleteResource")

	id, err := idParam(r, "Resource not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.svc.DeleteResource(r.Context(), middlewarectx.UserID(r.Context()), id); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Resource deleted successfully.", nil)
}
