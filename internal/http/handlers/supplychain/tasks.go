package supplychain

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	scsvc "github.com/magabrotheeeer/marketplace-backend/internal/services/supplychain"
)

// ListTasks godoc
// @Summary Все задачи
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.ListTasks")

	out, err := h.svc.ListTasks(r.Context())
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if out == nil {
		out = []models.Task{}
	}
	response.OK(w, r, http.StatusOK, "Tasks fetched successfully.", out)
}

// GetTask godoc
// @Summary Задача по ID
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID задачи"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.GetTask")

	t, err := h.svc.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Task fetched successfully.", t)
}

// TaskStatus godoc
// @Summary Отчёт по задачам
// @Description Фильтр по статусу и дате создания. Приоритет: date, затем period, затем year и month.
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param status query string false "Pending | Accepted | Done"
// @Param date query string false "YYYY-MM-DD"
// @Param period query string false "today | week | month"
// @Param year query int false "Год"
// @Param month query int false "Месяц 1-12"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /task/status [get]
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.TaskStatus")

	q := r.URL.Query()
	report, err := h.svc.ByStatus(r.Context(), scsvc.ReportQuery{
		Status: q.Get("status"),
		Date:   q.Get("date"),
		Period: q.Get("period"),
		Year:   q.Get("year"),
		Month:  q.Get("month"),
	})
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if report.Tasks == nil {
		report.Tasks = []models.Task{}
	}
	response.OK(w, r, http.StatusOK, "Task report fetched successfully.", report)
}

// ListNotifications godoc
// @Summary Уведомления текущего пользователя
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.ListNotifications")

	out, err := h.svc.ListNotifications(r.Context(), middlewarectx.UserID(r.Context()))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if out == nil {
		out = []models.Notification{}
	}
	response.OK(w, r, http.StatusOK, "Notifications fetched successfully.", out)
}

// MarkRead godoc
// @Summary Отметить уведомление прочитанным
// @Tags SupplyChain
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID уведомления"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /notifications/{id}/read [patch]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.supplychain.MarkRead")

	id, err := idParam(r, "Notification not found.")
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	n, err := h.svc.MarkRead(r.Context(), middlewarectx.UserID(r.Context()), id)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Notification marked as read.", n)
}
