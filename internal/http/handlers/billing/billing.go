// Package billing реализует HTTP-обработчики тарифов, оплаты и вебхука
// платёжного провайдера.
package billing

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// SignatureHeader заголовок с подписью вебхука.
const SignatureHeader = "Stripe-Signature"

// maxWebhookBody предел размера тела вебхука.
const maxWebhookBody = 64 << 10

// Service описывает операции оплаты, нужные обработчикам.
type Service interface {
	ListPlans(ctx context.Context, page models.Page) ([]models.Plan, int64, error)
	CreatePlan(ctx context.Context, in models.PlanCreate) (*models.Plan, error)
	StartCheckout(ctx context.Context, user *models.User, planID int64) (*models.CheckoutSession, error)
	ListMySubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error)
	Cancel(ctx context.Context, userID int64) error
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

// UserLoader загружает пользователя для оформления оплаты.
type UserLoader interface {
	Profile(ctx context.Context, userID int64) (*models.User, error)
}

// Handler обработчики оплаты.
type Handler struct {
	log      *slog.Logger
	svc      Service
	users    UserLoader
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service, users UserLoader) *Handler {
	return &Handler{log: log, svc: svc, users: users, validate: response.NewValidator()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// CheckoutRequest тело запроса оплаты.
type CheckoutRequest struct {
	PlanID int64 `json:"plan_id" validate:"required,gt=0"`
}

// ListPlans godoc
// @Summary Список тарифов
// @Tags Billing
// @Produce json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы (до 100)"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /plans [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.ListPlans")

	page, err := response.ParsePage(r)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	plans, count, err := h.svc.ListPlans(r.Context(), page)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OKWithExtra(w, r, http.StatusOK, "Plans fetched successfully.", plans, models.NewPageInfo(page, count))
}

// CreatePlan godoc
// @Summary Создание тарифа
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PlanCreate true "Тариф"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /plans [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.CreatePlan")

	var in models.PlanCreate
	if err := response.Decode(r, h.validate, &in); err != nil {
		response.Error(w, r, log, err)
		return
	}
	plan, err := h.svc.CreatePlan(r.Context(), in)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("plan created", slog.Int64("plan_id", plan.ID))
	response.OK(w, r, http.StatusCreated, "Plan created successfully.", plan)
}

// Checkout godoc
// @Summary Оформление оплаты тарифа
// @Description Возвращает ссылку на страницу оплаты. Подписка появится после подтверждения оплаты вебхуком.
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckoutRequest true "Тариф"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /checkout [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.Checkout")

	var req CheckoutRequest
	if err := response.Decode(r, h.validate, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	user, err := h.users.Profile(r.Context(), middlewarectx.UserID(r.Context()))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	session, err := h.svc.StartCheckout(r.Context(), user, req.PlanID)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Checkout session created.", session)
}

// MySubscriptions godoc
// @Summary Подписки текущего пользователя
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /my-subscriptions [get]
func (h *Handler) MySubscriptions(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.MySubscriptions")

	subs, err := h.svc.ListMySubscriptions(r.Context(), middlewarectx.UserID(r.Context()))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	response.OK(w, r, http.StatusOK, "Subscriptions fetched successfully.", subs)
}

// Cancel godoc
// @Summary Отмена активной подписки
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /cancel-subscription [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.Cancel")

	if err := h.svc.Cancel(r.Context(), middlewarectx.UserID(r.Context())); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, "Subscription cancelled successfully.", nil)
}

// Webhook godoc
// @Summary Вебхук платёжного провайдера
// @Tags Billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /stripe/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.Webhook")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid payload"})
		return
	}
	defer r.Body.Close()

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		render.JSON(w, r, map[string]bool{"received": true})
	case apperr.KindOf(err) == apperr.KindInvalidSignature:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid signature"})
	default:
		log.Error("webhook processing failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Processing failed"})
	}
}
