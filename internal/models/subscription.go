package models

import (
	"encoding/json"
	"math"
	"time"
)

// Названия тарифов.
const (
	PlanBasic      = "Basic"
	PlanPro        = "Pro"
	PlanEnterprise = "Enterprise"
)

// Plan тарифный план. Идентификаторы у платёжного провайдера
// заполняются лениво при первой оплате.
type Plan struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Price           float64         `json:"price"`
	Features        json.RawMessage `json:"features"`
	StripeProductID string          `json:"stripe_product_id,omitempty"`
	StripePriceID   string          `json:"stripe_price_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AmountMinorUnits цена в минимальных единицах валюты (центах).
func (p *Plan) AmountMinorUnits() int64 {
	return int64(math.Round(p.Price * 100))
}

// PlanCreate данные для создания тарифа администратором.
type PlanCreate struct {
	Name     string          `json:"name" validate:"required,oneof=Basic Pro Enterprise"`
	Price    float64         `json:"price" validate:"required,gt=0"`
	Features json.RawMessage `json:"features"`
}

// Subscription подписка пользователя на тариф.
type Subscription struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	PlanID               int64      `json:"plan_id"`
	Plan                 *Plan      `json:"plan,omitempty"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              *time.Time `json:"end_date"`
	Active               bool       `json:"active"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     *string    `json:"stripe_customer_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// CheckoutSession ссылка на оплату у платёжного провайдера.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// Статусы подписки у платёжного провайдера.
const (
	ProviderStatusActive   = "active"
	ProviderStatusTrialing = "trialing"
	ProviderStatusCanceled = "canceled"
	ProviderStatusUnpaid   = "unpaid"
)

// ProviderStatusIsActive сообщает, считается ли статус провайдера активной подпиской.
func ProviderStatusIsActive(status string) bool {
	return status == ProviderStatusActive || status == ProviderStatusTrialing
}

// ProviderStatusEnds сообщает, завершает ли статус подписку.
func ProviderStatusEnds(status string) bool {
	return status == ProviderStatusCanceled || status == ProviderStatusUnpaid
}
