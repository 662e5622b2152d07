package paymentprovider

import "errors"

// Ключи метаданных сессии оплаты.
const (
	MetaUserID                = "user_id"
	MetaPlanID                = "plan_id"
	MetaCurrentSubscriptionID = "current_subscription_id"
)

// Типы событий провайдера, которые обрабатывает сервис.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionsPrefix = "customer.subscription."
)

// ErrInvalidSignature подпись вебхука не совпала или устарела.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrMalformedEvent подпись верна, но тело события не разбирается.
var ErrMalformedEvent = errors.New("malformed webhook event")

// CheckoutParams параметры создания сессии оплаты подписки.
type CheckoutParams struct {
	CustomerEmail string
	PriceID       string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Event проверенное событие вебхука.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutCompleted
	Subscription *SubscriptionChange
}

// CheckoutCompleted данные завершённой сессии оплаты.
type CheckoutCompleted struct {
	SessionID      string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// SubscriptionChange новое состояние подписки у провайдера.
type SubscriptionChange struct {
	ID         string
	Status     string
	CustomerID string
}
