// Package paymentprovider реализует работу с платёжным провайдером Stripe:
// продукты и цены тарифов, сессии оплаты, отмену подписки и проверку вебхуков.
package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// Client адаптер Stripe. Повторов нет: ошибка провайдера возвращается сразу.
type Client struct {
	api           *client.API
	webhookSecret string
	currency      string
	interval      string
}

// Options параметры клиента.
type Options struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	Interval      string
	// Backends нужен тестам, чтобы направить запросы на локальный сервер.
	Backends *stripe.Backends
}

// NewClient создаёт клиента Stripe.
func NewClient(opts Options) *Client {
	if opts.Currency == "" {
		opts.Currency = string(stripe.CurrencyUSD)
	}
	if opts.Interval == "" {
		opts.Interval = string(stripe.PriceRecurringIntervalMonth)
	}
	return &Client{
		api:           client.New(opts.SecretKey, opts.Backends),
		webhookSecret: opts.WebhookSecret,
		currency:      strings.ToLower(opts.Currency),
		interval:      opts.Interval,
	}
}

// CreateProduct создаёт продукт и возвращает его идентификатор.
func (c *Client) CreateProduct(ctx context.Context, name string) (string, error) {
	const op = "paymentprovider.CreateProduct"
	params := &stripe.ProductParams{Name: stripe.String(name)}
	params.Context = ctx

	product, err := c.api.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return product.ID, nil
}

// CreatePrice создаёт рекуррентную цену продукта. amount в минимальных единицах валюты.
func (c *Client) CreatePrice(ctx context.Context, productID string, amount int64) (string, error) {
	const op = "paymentprovider.CreatePrice"
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amount),
		Currency:   stripe.String(c.currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(c.interval),
		},
	}
	params.Context = ctx

	price, err := c.api.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return price.ID, nil
}

// CreateCheckoutSession создаёт сессию оплаты подписки на одну позицию.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*models.CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(p.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.CheckoutSession{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// CancelAtPeriodEnd помечает подписку к отмене в конце оплаченного периода.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	const op = "paymentprovider.CancelAtPeriodEnd"
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConstructEvent проверяет подпись вебхука и разбирает событие.
// Несовпадение подписи возвращает ErrInvalidSignature, тело, которое
// не разбирается при верной подписи, возвращает ErrMalformedEvent.
func (c *Client) ConstructEvent(payload []byte, signatureHeader string) (*Event, error) {
	const op = "paymentprovider.ConstructEvent"

	err := webhook.ValidatePayloadWithTolerance(payload, signatureHeader, c.webhookSecret, webhook.DefaultTolerance)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	var raw stripe.Event
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedEvent, err)
	}

	event := &Event{ID: raw.ID, Type: string(raw.Type)}
	if raw.Data == nil {
		return event, nil
	}

	switch {
	case event.Type == EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%s: %w: checkout session: %v", op, ErrMalformedEvent, err)
		}
		completed := &CheckoutCompleted{SessionID: session.ID, Metadata: session.Metadata}
		if session.Subscription != nil {
			completed.SubscriptionID = session.Subscription.ID
		}
		if session.Customer != nil {
			completed.CustomerID = session.Customer.ID
		}
		event.Checkout = completed
	case strings.HasPrefix(event.Type, EventSubscriptionsPrefix):
		var sub stripe.Subscription
		if err := json.Unmarshal(raw.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w: subscription: %v", op, ErrMalformedEvent, err)
		}
		change := &SubscriptionChange{ID: sub.ID, Status: string(sub.Status)}
		if sub.Customer != nil {
			change.CustomerID = sub.Customer.ID
		}
		event.Subscription = change
	}
	return event, nil
}
