// Package billing координирует тарифы, оплату подписок через платёжного
// провайдера и сверку локальных подписок по его вебхукам.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// PlanRepository хранилище тарифов.
type PlanRepository interface {
	ListPlans(ctx context.Context, page models.Page) ([]models.Plan, int64, error)
	ListAllPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	GetPlanForUpdate(ctx context.Context, id int64) (*models.Plan, error)
	CreatePlan(ctx context.Context, in models.PlanCreate) (*models.Plan, error)
	UpsertPlanByName(ctx context.Context, in models.PlanCreate) (*models.Plan, error)
	SetPlanRemoteIDs(ctx context.Context, id int64, productID, priceID string) error
}

// SubscriptionRepository хранилище подписок.
type SubscriptionRepository interface {
	LockUser(ctx context.Context, id int64) error
	DeactivateOtherActive(ctx context.Context, userID int64, exceptRemoteID string, now time.Time) (int64, error)
	UpsertSubscriptionByRemoteID(ctx context.Context, in storage.UpsertRemoteSubscription) (*models.Subscription, error)
	GetSubscriptionByRemoteID(ctx context.Context, remoteID string, forUpdate bool) (*models.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	GetActiveSubscriptionForUpdate(ctx context.Context, userID int64) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id int64, active bool, endDate *time.Time) error
	ListUserSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// TxRunner выполняет функцию в транзакции, передавая её через контекст.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Processor порт платёжного провайдера.
type Processor interface {
	CreateProduct(ctx context.Context, name string) (string, error)
	CreatePrice(ctx context.Context, productID string, amount int64) (string, error)
	CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*models.CheckoutSession, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	ConstructEvent(payload []byte, signatureHeader string) (*paymentprovider.Event, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Options адреса возврата после оплаты.
type Options struct {
	SuccessURL string
	CancelURL  string
}

// URLsFromFrontend строит адреса возврата от адреса фронтенда.
func URLsFromFrontend(frontendURL string) Options {
	base := strings.TrimRight(frontendURL, "/")
	return Options{
		SuccessURL: base + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + "/cancel",
	}
}

// BillingService реализует операции тарифов и подписок.
type BillingService struct {
	plans     PlanRepository
	subs      SubscriptionRepository
	tx        TxRunner
	processor Processor
	events    EventPublisher
	metrics   *metrics.Metrics
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewBillingService создает новый экземпляр BillingService.
func NewBillingService(
	plans PlanRepository,
	subs SubscriptionRepository,
	tx TxRunner,
	processor Processor,
	events EventPublisher,
	m *metrics.Metrics,
	opts Options,
	log *slog.Logger,
) *BillingService {
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &BillingService{
		plans:     plans,
		subs:      subs,
		tx:        tx,
		processor: processor,
		events:    events,
		metrics:   m,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// SubscriptionChangedEvent событие об изменении подписки пользователя.
type SubscriptionChangedEvent struct {
	UserID         int64  `json:"user_id"`
	SubscriptionID int64  `json:"subscription_id"`
	PlanID         int64  `json:"plan_id"`
	Active         bool   `json:"active"`
	Reason         string `json:"reason"`
}

// ListPlans возвращает страницу тарифов, упорядоченных по цене.
func (s *BillingService) ListPlans(ctx context.Context, page models.Page) ([]models.Plan, int64, error) {
	const op = "billing.ListPlans"
	plans, count, err := s.plans.ListPlans(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return plans, count, nil
}

// CreatePlan создаёт тариф. Идентификаторы у провайдера появятся при первой оплате.
func (s *BillingService) CreatePlan(ctx context.Context, in models.PlanCreate) (*models.Plan, error) {
	const op = "billing.CreatePlan"
	p, err := s.plans.CreatePlan(ctx, in)
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.Validation("Plan already exists.", map[string]string{"name": "subscription plan with this name already exists."})
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan created", sl.Op(op), slog.Int64("plan_id", p.ID), slog.String("name", p.Name))
	return p, nil
}

// SeedPlans создаёт или обновляет тарифы по имени.
func (s *BillingService) SeedPlans(ctx context.Context, in []models.PlanCreate) ([]models.Plan, error) {
	const op = "billing.SeedPlans"
	out := make([]models.Plan, 0, len(in))
	for _, p := range in {
		plan, err := s.plans.UpsertPlanByName(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, p.Name, err)
		}
		out = append(out, *plan)
	}
	return out, nil
}

// EnsureRemotePlan возвращает идентификатор цены тарифа у провайдера, создавая
// продукт и цену при первом обращении. Строка тарифа заблокирована на время
// создания, поэтому параллельные вызовы создают одну пару продукт/цена.
func (s *BillingService) EnsureRemotePlan(ctx context.Context, planID int64) (string, error) {
	const op = "billing.EnsureRemotePlan"
	log := s.log.With(sl.Op(op), slog.Int64("plan_id", planID))

	var priceID string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		plan, err := s.plans.GetPlanForUpdate(ctx, planID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "Plan not found.")
		}
		if err != nil {
			return err
		}
		if plan.StripePriceID != "" {
			priceID = plan.StripePriceID
			return nil
		}

		productID := plan.StripeProductID
		if productID == "" {
			productID, err = s.processor.CreateProduct(ctx, plan.Name)
			if err != nil {
				log.Error("failed to create remote product", sl.Err(err))
				return apperr.Wrap(apperr.KindUpstream, "Payment provider error.", err)
			}
		}
		priceID, err = s.processor.CreatePrice(ctx, productID, plan.AmountMinorUnits())
		if err != nil {
			log.Error("failed to create remote price", sl.Err(err))
			return apperr.Wrap(apperr.KindUpstream, "Payment provider error.", err)
		}
		if err := s.plans.SetPlanRemoteIDs(ctx, plan.ID, productID, priceID); err != nil {
			return err
		}
		log.Info("remote plan created", slog.String("product_id", productID), slog.String("price_id", priceID))
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return "", err
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return priceID, nil
}

// SyncPlans вызывает EnsureRemotePlan для каждого тарифа.
func (s *BillingService) SyncPlans(ctx context.Context) (map[string]string, error) {
	const op = "billing.SyncPlans"
	plans, err := s.plans.ListAllPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make(map[string]string, len(plans))
	for _, p := range plans {
		priceID, err := s.EnsureRemotePlan(ctx, p.ID)
		if err != nil {
			return out, fmt.Errorf("%s: %s: %w", op, p.Name, err)
		}
		out[p.Name] = priceID
	}
	return out, nil
}

// StartCheckout создаёт сессию оплаты тарифа. Локальные подписки не меняются:
// их создаёт вебхук после оплаты.
func (s *BillingService) StartCheckout(ctx context.Context, user *models.User, planID int64) (*models.CheckoutSession, error) {
	const op = "billing.StartCheckout"
	log := s.log.With(sl.Op(op), slog.Int64("user_id", user.ID), slog.Int64("plan_id", planID))

	if _, err := s.plans.GetPlan(ctx, planID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Plan not found.")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	priceID, err := s.EnsureRemotePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		paymentprovider.MetaUserID: strconv.FormatInt(user.ID, 10),
		paymentprovider.MetaPlanID: strconv.FormatInt(planID, 10),
	}
	current, err := s.subs.GetActiveSubscription(ctx, user.ID)
	switch {
	case err == nil && current.StripeSubscriptionID != nil:
		metadata[paymentprovider.MetaCurrentSubscriptionID] = *current.StripeSubscriptionID
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.processor.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		CustomerEmail: user.Email,
		PriceID:       priceID,
		SuccessURL:    s.opts.SuccessURL,
		CancelURL:     s.opts.CancelURL,
		Metadata:      metadata,
	})
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		return nil, apperr.Wrap(apperr.KindUpstream, "Payment provider error.", err)
	}
	log.Info("checkout session created", slog.String("session_id", session.SessionID))
	return session, nil
}

// ListMySubscriptions возвращает подписки пользователя с тарифами, новые первыми.
func (s *BillingService) ListMySubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "billing.ListMySubscriptions"
	subs, err := s.subs.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Cancel отменяет активную подписку пользователя. Сначала подписка отменяется у
// провайдера; при его ошибке локальная строка остаётся активной.
func (s *BillingService) Cancel(ctx context.Context, userID int64) error {
	const op = "billing.Cancel"
	log := s.log.With(sl.Op(op), slog.Int64("user_id", userID))

	var cancelled *models.Subscription
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.LockUser(ctx, userID); err != nil {
			return err
		}
		sub, err := s.subs.GetActiveSubscriptionForUpdate(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "No active subscription found.")
		}
		if err != nil {
			return err
		}

		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID != "" {
			if err := s.processor.CancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID); err != nil {
				log.Error("failed to cancel remote subscription", sl.Err(err))
				return apperr.Wrap(apperr.KindUpstream, "Payment provider error.", err)
			}
		}

		now := s.now()
		if err := s.subs.UpdateSubscriptionStatus(ctx, sub.ID, false, &now); err != nil {
			return err
		}
		sub.Active = false
		sub.EndDate = &now
		cancelled = sub
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("subscription cancelled", slog.Int64("subscription_id", cancelled.ID))
	s.publish(ctx, cancelled, "cancelled")
	return nil
}

func (s *BillingService) publish(ctx context.Context, sub *models.Subscription, reason string) {
	err := s.events.Publish(ctx, rabbitmq.RoutingSubscriptionChanged, SubscriptionChangedEvent{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		Active:         sub.Active,
		Reason:         reason,
	})
	if err != nil {
		s.log.Warn("failed to publish subscription event", sl.Err(err))
	}
}
