package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

const subscriptionColumns = `s.id, s.user_id, s.plan_id, s.start_date, s.end_date, s.active,
	s.stripe_subscription_id, s.stripe_customer_id, s.created_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		sub                models.Subscription
		endDate            sql.NullTime
		remoteID, customer sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.StartDate, &endDate, &sub.Active,
		&remoteID, &customer, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.EndDate = nullTime(endDate)
	sub.StripeSubscriptionID = nullString(remoteID)
	sub.StripeCustomerID = nullString(customer)
	return &sub, nil
}

// UpsertRemoteSubscription параметры записи подписки по идентификатору у провайдера.
type UpsertRemoteSubscription struct {
	UserID     int64
	PlanID     int64
	RemoteID   string
	CustomerID string
	Now        time.Time
}

// DeactivateOtherActive деактивирует все активные подписки пользователя,
// кроме подписки с указанным идентификатором у провайдера.
func (s *Storage) DeactivateOtherActive(ctx context.Context, userID int64, exceptRemoteID string, now time.Time) (int64, error) {
	const op = "storage.DeactivateOtherActive"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE user_subscriptions SET active = FALSE, end_date = $3
		WHERE user_id = $1 AND active
			AND (stripe_subscription_id IS NULL OR stripe_subscription_id <> $2)`,
		userID, exceptRemoteID, now)
	if err != nil {
		return 0, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.changed(ctx, EntitySubscriptions)
	}
	return n, nil
}

// UpsertSubscriptionByRemoteID создаёт или активирует подписку по идентификатору у провайдера.
// Повторная доставка одного события не создаёт вторую строку.
func (s *Storage) UpsertSubscriptionByRemoteID(ctx context.Context, in UpsertRemoteSubscription) (*models.Subscription, error) {
	const op = "storage.UpsertSubscriptionByRemoteID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO user_subscriptions AS s
			(user_id, plan_id, start_date, end_date, active, stripe_subscription_id, stripe_customer_id)
		VALUES ($1, $2, $3, NULL, TRUE, $4, NULLIF($5, ''))
		ON CONFLICT (stripe_subscription_id) WHERE stripe_subscription_id IS NOT NULL DO UPDATE SET
			user_id = EXCLUDED.user_id,
			plan_id = EXCLUDED.plan_id,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			start_date = EXCLUDED.start_date,
			end_date = NULL,
			active = TRUE
		RETURNING `+subscriptionColumns,
		in.UserID, in.PlanID, in.Now, in.RemoteID, in.CustomerID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	s.changed(ctx, EntitySubscriptions)
	return sub, nil
}

// GetSubscriptionByRemoteID ищет подписку по идентификатору у провайдера.
// При forUpdate строка блокируется до конца транзакции.
func (s *Storage) GetSubscriptionByRemoteID(ctx context.Context, remoteID string, forUpdate bool) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByRemoteID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions s WHERE s.stripe_subscription_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx, query, remoteID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// GetActiveSubscriptionForUpdate возвращает активную подписку пользователя и блокирует её.
func (s *Storage) GetActiveSubscriptionForUpdate(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscriptionForUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM user_subscriptions s
		WHERE s.user_id = $1 AND s.active
		ORDER BY s.start_date DESC, s.id DESC
		LIMIT 1
		FOR UPDATE`, userID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// GetActiveSubscription возвращает активную подписку пользователя без блокировки.
func (s *Storage) GetActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM user_subscriptions s
		WHERE s.user_id = $1 AND s.active
		ORDER BY s.start_date DESC, s.id DESC
		LIMIT 1`, userID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// UpdateSubscriptionStatus выставляет флаг активности и дату окончания подписки.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id int64, active bool, endDate *time.Time) error {
	const op = "storage.UpdateSubscriptionStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE user_subscriptions SET active = $2, end_date = COALESCE($3, end_date) WHERE id = $1`,
		id, active, endDate)
	if err != nil {
		return mapErr(op, err)
	}
	if err = affected(op, res); err != nil {
		return err
	}
	s.changed(ctx, EntitySubscriptions)
	return nil
}

// ListUserSubscriptions возвращает подписки пользователя с тарифами, новые первыми.
func (s *Storage) ListUserSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "storage.ListUserSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+subscriptionColumns+`,
			p.id, p.name, p.price::float8, p.features::text, p.stripe_product_id, p.stripe_price_id,
			p.created_at, p.updated_at
		FROM user_subscriptions s
		JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.user_id = $1
		ORDER BY s.start_date DESC, s.id DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		var (
			sub                models.Subscription
			endDate            sql.NullTime
			remoteID, customer sql.NullString
			plan               models.Plan
			features           []byte
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.StartDate, &endDate, &sub.Active,
			&remoteID, &customer, &sub.CreatedAt,
			&plan.ID, &plan.Name, &plan.Price, &features, &plan.StripeProductID, &plan.StripePriceID,
			&plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.EndDate = nullTime(endDate)
		sub.StripeSubscriptionID = nullString(remoteID)
		sub.StripeCustomerID = nullString(customer)
		plan.Features = features
		sub.Plan = &plan
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// SumActiveEarnings суммирует цены тарифов активных подписок.
func (s *Storage) SumActiveEarnings(ctx context.Context) (float64, error) {
	const op = "storage.SumActiveEarnings"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var total float64
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.price), 0)::float8
		FROM user_subscriptions s
		JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.active`).Scan(&total)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return total, nil
}
