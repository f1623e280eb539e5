package client

import (
	"context"
	"errors"
	"fmt"
	"portfolio-api/internal/config"

	"github.com/stripe/stripe-go/v81"
	stripeapi "github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	// GetCheckoutSession fetches the session with its line items expanded.
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	// ListSubscriptionItems returns the subscription's items with price.product expanded.
	ListSubscriptionItems(ctx context.Context, subscriptionID string) ([]*stripe.SubscriptionItem, error)
	// DeleteSubscriptionItem removes an item from future billing without proration.
	DeleteSubscriptionItem(ctx context.Context, itemID string) error
	UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error
	GetCustomerEmail(ctx context.Context, customerID string) (string, error)
	// ConstructEvent verifies the signature header against the exact payload bytes
	// before decoding. Verification failures wrap ErrInvalidSignature.
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeClientImpl struct {
	api           *stripeapi.API
	webhookSecret string
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	return newStripeClient(cfg, nil)
}

// newStripeClient with nil backends uses the SDK's default HTTP backends.
func newStripeClient(cfg *config.Stripe, backends *stripe.Backends) *stripeClientImpl {
	return &stripeClientImpl{
		api:           stripeapi.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess, nil
}

func (c *stripeClientImpl) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	sess, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get checkout session %s: %w", sessionID, err)
	}
	return sess, nil
}

func (c *stripeClientImpl) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

func (c *stripeClientImpl) ListSubscriptionItems(ctx context.Context, subscriptionID string) ([]*stripe.SubscriptionItem, error) {
	params := &stripe.SubscriptionItemListParams{
		Subscription: stripe.String(subscriptionID),
	}
	params.Context = ctx
	params.AddExpand("data.price.product")

	var items []*stripe.SubscriptionItem
	iter := c.api.SubscriptionItems.List(params)
	for iter.Next() {
		items = append(items, iter.SubscriptionItem())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list subscription items %s: %w", subscriptionID, err)
	}
	return items, nil
}

func (c *stripeClientImpl) DeleteSubscriptionItem(ctx context.Context, itemID string) error {
	params := &stripe.SubscriptionItemParams{
		ProrationBehavior: stripe.String("none"),
	}
	params.Context = ctx

	if _, err := c.api.SubscriptionItems.Del(itemID, params); err != nil {
		return fmt.Errorf("stripe: delete subscription item %s: %w", itemID, err)
	}
	return nil
}

func (c *stripeClientImpl) UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe: update subscription %s metadata: %w", subscriptionID, err)
	}
	return nil
}

func (c *stripeClientImpl) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("stripe: get customer %s: %w", customerID, err)
	}
	if cust.Deleted {
		return "", nil
	}
	return cust.Email, nil
}

func (c *stripeClientImpl) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
