package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

const planColumns = `id, name, price::float8, features::text, stripe_product_id, stripe_price_id, created_at, updated_at`

func scanPlan(row scanner) (*models.Plan, error) {
	var (
		p        models.Plan
		features []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &features, &p.StripeProductID, &p.StripePriceID,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Features = json.RawMessage(features)
	return &p, nil
}

func featuresOrEmpty(f json.RawMessage) string {
	if len(f) == 0 {
		return "[]"
	}
	return string(f)
}

// ListPlans возвращает страницу тарифов по возрастанию цены.
func (s *Storage) ListPlans(ctx context.Context, page models.Page) ([]models.Plan, int64, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}

	var count int64
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM subscription_plans`).Scan(&count); err != nil {
		return nil, 0, mapErr(op, err)
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans ORDER BY price, id LIMIT $1 OFFSET $2`,
		page.Size, page.Offset())
	if err != nil {
		return nil, 0, mapErr(op, err)
	}
	defer rows.Close()

	plans := make([]models.Plan, 0, page.Size)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		plans = append(plans, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return plans, count, nil
}

// ListAllPlans возвращает все тарифы.
func (s *Storage) ListAllPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "storage.ListAllPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price, id`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plans = append(plans, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// GetPlan возвращает тариф по идентификатору.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPlan(s.q(ctx).QueryRowContext(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// GetPlanForUpdate возвращает тариф и блокирует его строку до конца транзакции.
func (s *Storage) GetPlanForUpdate(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlanForUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPlan(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// CreatePlan создаёт тариф без идентификаторов платёжного провайдера.
func (s *Storage) CreatePlan(ctx context.Context, in models.PlanCreate) (*models.Plan, error) {
	const op = "storage.CreatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPlan(s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO subscription_plans (name, price, features)
		VALUES ($1, $2, $3::jsonb)
		RETURNING `+planColumns, in.Name, in.Price, featuresOrEmpty(in.Features)))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// UpsertPlanByName создаёт тариф или обновляет цену и возможности существующего.
func (s *Storage) UpsertPlanByName(ctx context.Context, in models.PlanCreate) (*models.Plan, error) {
	const op = "storage.UpsertPlanByName"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPlan(s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO subscription_plans (name, price, features)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (name) DO UPDATE SET
			price = EXCLUDED.price,
			features = EXCLUDED.features,
			stripe_price_id = CASE WHEN subscription_plans.price <> EXCLUDED.price
				THEN '' ELSE subscription_plans.stripe_price_id END,
			updated_at = now()
		RETURNING `+planColumns, in.Name, in.Price, featuresOrEmpty(in.Features)))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

// SetPlanRemoteIDs сохраняет идентификаторы продукта и цены у платёжного провайдера.
func (s *Storage) SetPlanRemoteIDs(ctx context.Context, id int64, productID, priceID string) error {
	const op = "storage.SetPlanRemoteIDs"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE subscription_plans SET stripe_product_id = $2, stripe_price_id = $3, updated_at = now()
		WHERE id = $1`, id, productID, priceID)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}
