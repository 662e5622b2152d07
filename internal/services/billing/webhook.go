package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// HandleWebhook проверяет подпись события провайдера и сверяет по нему
// локальные подписки. Событие с неверной подписью не обрабатывается.
// Ошибка обработки возвращается, чтобы провайдер доставил событие повторно.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	const op = "billing.HandleWebhook"
	log := s.log.With(sl.Op(op))

	event, err := s.processor.ConstructEvent(payload, signatureHeader)
	if errors.Is(err, paymentprovider.ErrInvalidSignature) {
		log.Warn("webhook verification failed", sl.Err(err))
		s.observe("unknown", metrics.ResultError)
		return apperr.Wrap(apperr.KindInvalidSignature, "Invalid signature", err)
	}
	if err != nil {
		log.Error("failed to decode webhook event", sl.Err(err))
		s.observe("unknown", metrics.ResultError)
		return apperr.Wrap(apperr.KindInvalidUpstreamResponse, "Malformed event.", err)
	}
	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	log.Info("webhook received")

	switch {
	case event.Type == paymentprovider.EventCheckoutCompleted && event.Checkout != nil:
		err = s.checkoutCompleted(ctx, log, event.Checkout)
	case strings.HasPrefix(event.Type, paymentprovider.EventSubscriptionsPrefix) && event.Subscription != nil:
		err = s.subscriptionChanged(ctx, log, event.Subscription)
	default:
		log.Info("unhandled event type")
		s.observe(event.Type, metrics.ResultIgnored)
		return nil
	}

	if err != nil {
		log.Error("webhook processing failed", sl.Err(err))
		s.observe(event.Type, metrics.ResultError)
		if _, ok := apperr.As(err); ok {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.observe(event.Type, metrics.ResultOK)
	return nil
}

// checkoutCompleted в одной транзакции блокирует пользователя, деактивирует
// прочие его подписки и создаёт или активирует подписку по её идентификатору.
func (s *BillingService) checkoutCompleted(ctx context.Context, log *slog.Logger, c *paymentprovider.CheckoutCompleted) error {
	userID, errUser := strconv.ParseInt(c.Metadata[paymentprovider.MetaUserID], 10, 64)
	planID, errPlan := strconv.ParseInt(c.Metadata[paymentprovider.MetaPlanID], 10, 64)
	if errUser != nil || errPlan != nil {
		return apperr.Validation("Invalid checkout metadata.", map[string]string{
			"metadata": "user_id and plan_id must be integers",
		})
	}
	if c.SubscriptionID == "" {
		return apperr.Validation("Checkout session has no subscription.", map[string]string{
			"subscription": "This field is required.",
		})
	}

	var sub *models.Subscription
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.LockUser(ctx, userID); err != nil {
			return err
		}
		now := s.now()
		n, err := s.subs.DeactivateOtherActive(ctx, userID, c.SubscriptionID, now)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("previous subscriptions deactivated", slog.Int64("count", n))
		}
		sub, err = s.subs.UpsertSubscriptionByRemoteID(ctx, storage.UpsertRemoteSubscription{
			UserID:     userID,
			PlanID:     planID,
			RemoteID:   c.SubscriptionID,
			CustomerID: c.CustomerID,
			Now:        now,
		})
		return err
	})
	if err != nil {
		return err
	}

	log.Info("subscription activated",
		slog.Int64("subscription_id", sub.ID), slog.Int64("user_id", userID), slog.Int64("plan_id", planID))
	s.publish(ctx, sub, "checkout_completed")
	return nil
}

// subscriptionChanged переносит статус подписки провайдера на локальную строку.
// Неизвестная подписка пропускается.
func (s *BillingService) subscriptionChanged(ctx context.Context, log *slog.Logger, c *paymentprovider.SubscriptionChange) error {
	log = log.With(slog.String("remote_id", c.ID), slog.String("status", c.Status))

	existing, err := s.subs.GetSubscriptionByRemoteID(ctx, c.ID, false)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("subscription not found locally")
		return nil
	}
	if err != nil {
		return err
	}

	var (
		sub     *models.Subscription
		changed bool
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.LockUser(ctx, existing.UserID); err != nil {
			return err
		}
		locked, err := s.subs.GetSubscriptionByRemoteID(ctx, c.ID, true)
		if err != nil {
			return err
		}
		sub = locked

		active := models.ProviderStatusIsActive(c.Status)
		now := s.now()
		if active && !sub.Active {
			if _, err := s.subs.DeactivateOtherActive(ctx, sub.UserID, c.ID, now); err != nil {
				return err
			}
		}
		endDate := sub.EndDate
		if models.ProviderStatusEnds(c.Status) {
			endDate = &now
		}
		if err := s.subs.UpdateSubscriptionStatus(ctx, sub.ID, active, endDate); err != nil {
			return err
		}
		changed = sub.Active != active
		log.Info("subscription status updated",
			slog.Int64("subscription_id", sub.ID), slog.Bool("was_active", sub.Active), slog.Bool("active", active))
		sub.Active = active
		sub.EndDate = endDate
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.publish(ctx, sub, "provider_status_"+c.Status)
	}
	return nil
}

func (s *BillingService) observe(eventType, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhookEvents.WithLabelValues(eventType, result).Inc()
}
