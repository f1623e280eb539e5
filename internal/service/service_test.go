package service

import (
	"context"
	"encoding/json"
	"fmt"
	"portfolio-api/internal/client"
	"portfolio-api/internal/model"
	"portfolio-api/internal/repository"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test_secret"

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type mockStripeClient struct {
	mock.Mock
}

func (m *mockStripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if s, ok := args.Get(0).(*stripe.CheckoutSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if s, ok := args.Get(0).(*stripe.CheckoutSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if s, ok := args.Get(0).(*stripe.Subscription); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStripeClient) ListSubscriptionItems(ctx context.Context, subscriptionID string) ([]*stripe.SubscriptionItem, error) {
	args := m.Called(ctx, subscriptionID)
	if items, ok := args.Get(0).([]*stripe.SubscriptionItem); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStripeClient) DeleteSubscriptionItem(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

func (m *mockStripeClient) UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	return m.Called(ctx, subscriptionID, metadata).Error(0)
}

func (m *mockStripeClient) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

// ConstructEvent runs the real signature check against testWebhookSecret.
func (m *mockStripeClient) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, testWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", client.ErrInvalidSignature, err)
	}
	return event, nil
}

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) Configured() bool { return true }

func (m *mockTracker) CreateIssue(ctx context.Context, issue *client.Issue) (*client.CreatedIssue, error) {
	args := m.Called(ctx, issue)
	if created, ok := args.Get(0).(*client.CreatedIssue); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, client.Migrate(db))
	return db
}

type fixture struct {
	db        *gorm.DB
	orders    repository.OrderRepository
	events    repository.WebhookEventRepository
	stripe    *mockStripeClient
	tracker   *mockTracker
	orderSvc  *orderServiceImpl
	notifier  NotificationService
	webhooks  WebhookService
	reconcile *feeReconcilerImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{
		db:      db,
		orders:  repository.NewOrderRepository(db),
		events:  repository.NewWebhookEventRepository(db),
		stripe:  &mockStripeClient{},
		tracker: &mockTracker{},
	}

	log := zap.NewNop()
	f.orderSvc = NewOrderService(f.stripe, f.orders, "Harley Gilpin", log).(*orderServiceImpl)
	f.orderSvc.now = func() time.Time { return fixedNow }
	f.notifier = NewNotificationService(f.tracker, true, true, log)
	f.reconcile = NewFeeReconciler(f.stripe, log).(*feeReconcilerImpl)
	f.reconcile.now = func() time.Time { return fixedNow }
	f.webhooks = NewWebhookService(f.stripe, f.orderSvc, f.notifier, f.reconcile, f.events, log)

	return f
}

func (f *fixture) seedOrder(t *testing.T, id uint, status model.OrderStatus, sessionID string) *model.Order {
	t.Helper()

	order := &model.Order{
		ID:               id,
		TierName:         "Pro Build",
		Price:            decimal.NewFromInt(100),
		ClientName:       "Jo Client",
		ClientEmail:      "jo@example.com",
		ProjectDetails:   "Marketing site",
		Status:           status,
		AgreementContent: "draft agreement",
	}
	if sessionID != "" {
		order.StripeSessionID = &sessionID
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func (f *fixture) reload(t *testing.T, id uint) *model.Order {
	t.Helper()

	order, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

// signedEvent builds an event envelope around object and signs it with the test secret.
func signedEvent(t *testing.T, id, eventType string, object any, previous map[string]any) ([]byte, string) {
	t.Helper()

	data := map[string]any{"object": object}
	if previous != nil {
		data["previous_attributes"] = previous
	}
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     fixedNow.Unix(),
		"data":        data,
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}
