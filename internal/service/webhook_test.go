package service

import (
	"context"
	"errors"
	"portfolio-api/internal/client"
	"portfolio-api/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

func checkoutCompletedObject(sessionID, orderID string) map[string]any {
	return map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"mode":           "payment",
		"payment_status": "paid",
		"amount_total":   10000,
		"metadata":       map[string]string{model.MetaOrderID: orderID},
	}
}

func (f *fixture) eventCount(t *testing.T) int64 {
	t.Helper()

	var n int64
	require.NoError(t, f.db.Model(&model.WebhookEvent{}).Count(&n).Error)
	return n
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, 42, model.OrderStatusPending, "cs_42")

	payload, header := signedEvent(t, "evt_1", "checkout.session.completed", checkoutCompletedObject("cs_42", "42"), nil)

	tests := []struct {
		name      string
		payload   []byte
		signature string
	}{
		{"tampered body", append(append([]byte{}, payload[:len(payload)-1]...), ' ', '}'), header},
		{"missing header", payload, ""},
		{"garbage header", payload, "t=1,v1=deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.webhooks.HandleWebhook(ctx, tt.payload, tt.signature)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}

	assert.Equal(t, model.OrderStatusPending, f.reload(t, 42).Status)
	assert.Zero(t, f.eventCount(t))
	f.tracker.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything)
}

func TestHandleWebhook_CheckoutCompletedReachesOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, 42, model.OrderStatusPending, "cs_42")

	f.tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(issue *client.Issue) bool {
		return issue.Title == "New Project: Jo Client - Pro Build" && issue.Priority == client.PriorityHigh
	})).Return(nil, errors.New("linear is down"))

	payload, header := signedEvent(t, "evt_42", "checkout.session.completed", checkoutCompletedObject("cs_42", "42"), nil)
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))

	order := f.reload(t, 42)
	assert.Equal(t, model.OrderStatusOnboardingStarted, order.Status)
	assert.Contains(t, order.AgreementContent, "Order #42")
	assert.Contains(t, order.AgreementContent, "$100 USD")
	f.tracker.AssertNumberOfCalls(t, "CreateIssue", 1)

	// redelivery of the same event is skipped outright
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))
	f.tracker.AssertNumberOfCalls(t, "CreateIssue", 1)

	// a fresh event for an onboarded order creates no second issue
	payload, header = signedEvent(t, "evt_43", "checkout.session.completed", checkoutCompletedObject("cs_42", "42"), nil)
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))
	f.tracker.AssertNumberOfCalls(t, "CreateIssue", 1)
	assert.Equal(t, model.OrderStatusOnboardingStarted, f.reload(t, 42).Status)
}

func TestHandleWebhook_CheckoutCompletedAfterVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, 7, model.OrderStatusPending, "cs_7")

	f.stripe.On("GetCheckoutSession", mock.Anything, "cs_7").Return(paidSession("cs_7", "7", 5000), nil)
	verified, err := f.orderSvc.VerifyOrder(ctx, "cs_7")
	require.NoError(t, err)

	f.tracker.On("CreateIssue", mock.Anything, mock.Anything).
		Return(&client.CreatedIssue{ID: "iss_1", URL: "https://linear.app/x/issue/1"}, nil)

	payload, header := signedEvent(t, "evt_7", "checkout.session.completed", checkoutCompletedObject("cs_7", "7"), nil)
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))

	order := f.reload(t, 7)
	assert.Equal(t, model.OrderStatusOnboardingStarted, order.Status)
	assert.Equal(t, verified.AgreementContent, order.AgreementContent)
	f.tracker.AssertNumberOfCalls(t, "CreateIssue", 1)
}

func TestHandleWebhook_CheckoutCompletedUnknownOrder(t *testing.T) {
	f := newFixture(t)

	payload, header := signedEvent(t, "evt_9", "checkout.session.completed", checkoutCompletedObject("cs_9", "999"), nil)
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))

	var event model.WebhookEvent
	require.NoError(t, f.db.First(&event, "event_id = ?", "evt_9").Error)
	assert.False(t, event.Processed())
	assert.Contains(t, event.Error, "order not found")
	assert.Equal(t, "cs_9", event.ObjectID)
}

func TestHandleWebhook_SubscriptionDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, 12, model.OrderStatusOnboardingStarted, "cs_12")

	f.stripe.On("GetCustomerEmail", mock.Anything, "cus_12").Return("jo@example.com", nil)
	f.tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(issue *client.Issue) bool {
		return issue.Title == "URGENT: Hosting Canceled - Order #12" &&
			issue.Priority == client.PriorityUrgent
	})).Return(&client.CreatedIssue{ID: "iss_2"}, nil)

	payload, header := signedEvent(t, "evt_del", "customer.subscription.deleted", map[string]any{
		"id":       "sub_12",
		"object":   "subscription",
		"customer": "cus_12",
		"metadata": map[string]string{model.MetaOrderID: "12", model.MetaHostingTier: "basic"},
	}, nil)
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))

	assert.Equal(t, model.OrderStatusHostingCanceled, f.reload(t, 12).Status)
	f.tracker.AssertExpectations(t)

	issue := f.tracker.Calls[0].Arguments.Get(1).(*client.Issue)
	assert.Contains(t, issue.Description, "User (jo@example.com)")
	assert.Contains(t, issue.Description, "Hosting Tier: basic")
	assert.Contains(t, issue.Description, "Subscription ID: sub_12")
}

func TestHandleWebhook_SubscriptionDeletedWithoutOrder(t *testing.T) {
	f := newFixture(t)

	f.tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(issue *client.Issue) bool {
		return issue.Title == "URGENT: Hosting Canceled - Order #Unknown"
	})).Return(&client.CreatedIssue{ID: "iss_3"}, nil)

	payload, header := signedEvent(t, "evt_del2", "customer.subscription.deleted", map[string]any{
		"id":     "sub_x",
		"object": "subscription",
	}, nil)
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))
	f.tracker.AssertExpectations(t)
	f.stripe.AssertNotCalled(t, "GetCustomerEmail", mock.Anything, mock.Anything)
}

func TestHandleWebhook_CancellationScheduled(t *testing.T) {
	f := newFixture(t)
	periodEnd := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

	f.tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(issue *client.Issue) bool {
		return issue.Title == "Warning: Hosting Cancellation Scheduled - Order #12"
	})).Return(&client.CreatedIssue{ID: "iss_4"}, nil)

	payload, header := signedEvent(t, "evt_upd", "customer.subscription.updated", map[string]any{
		"id":                   "sub_12",
		"object":               "subscription",
		"cancel_at_period_end": true,
		"current_period_end":   periodEnd.Unix(),
		"metadata":             map[string]string{model.MetaOrderID: "12", model.MetaHostingTier: "basic"},
	}, map[string]any{"cancel_at_period_end": false})
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))

	f.tracker.AssertExpectations(t)
	issue := f.tracker.Calls[0].Arguments.Get(1).(*client.Issue)
	assert.Contains(t, issue.Description, "**"+periodEnd.Local().Format(agreementDateLayout)+"**")
}

func TestHandleWebhook_UnrelatedSubscriptionUpdate(t *testing.T) {
	f := newFixture(t)

	payload, header := signedEvent(t, "evt_upd2", "customer.subscription.updated", map[string]any{
		"id":                   "sub_12",
		"object":               "subscription",
		"cancel_at_period_end": true,
	}, map[string]any{"quantity": 1})
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))

	f.tracker.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything)
}

func TestHandleWebhook_PaymentFailed(t *testing.T) {
	f := newFixture(t)

	f.tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(issue *client.Issue) bool {
		return issue.Title == "URGENT: Payment Failed - jo@example.com ($25)"
	})).Return(&client.CreatedIssue{ID: "iss_5"}, nil)

	payload, header := signedEvent(t, "evt_fail", "invoice.payment_failed", map[string]any{
		"id":                 "in_fail",
		"object":             "invoice",
		"customer_email":     "jo@example.com",
		"amount_due":         2500,
		"billing_reason":     "subscription_cycle",
		"hosted_invoice_url": "https://invoice.stripe.com/i/in_fail",
	}, nil)
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))

	f.tracker.AssertExpectations(t)
	issue := f.tracker.Calls[0].Arguments.Get(1).(*client.Issue)
	assert.Contains(t, issue.Description, "[View Invoice in Stripe](https://invoice.stripe.com/i/in_fail)")
}

func TestHandleWebhook_InvoicePaidRenewalIsNoop(t *testing.T) {
	f := newFixture(t)

	payload, header := signedEvent(t, "evt_cycle", "invoice.paid", map[string]any{
		"id":             "in_2",
		"object":         "invoice",
		"billing_reason": "subscription_cycle",
		"subscription":   "sub_1",
	}, nil)
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))

	f.stripe.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	f.stripe.AssertNotCalled(t, "DeleteSubscriptionItem", mock.Anything, mock.Anything)
	f.stripe.AssertNotCalled(t, "UpdateSubscriptionMetadata", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_InvoicePaidRemovesFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stripe.On("GetSubscription", mock.Anything, "sub_1").Return(&stripe.Subscription{
		ID:       "sub_1",
		Metadata: map[string]string{model.MetaIncludesOneTimeService: model.OneTimeServicePending},
	}, nil)
	f.stripe.On("ListSubscriptionItems", mock.Anything, "sub_1").Return([]*stripe.SubscriptionItem{
		subscriptionItem("si_fee", "Starter", model.RoleOneTimeService),
		subscriptionItem("si_hosting", "Basic Hosting", model.RoleRecurringHosting),
	}, nil)
	f.stripe.On("DeleteSubscriptionItem", mock.Anything, "si_fee").Return(nil)
	f.stripe.On("UpdateSubscriptionMetadata", mock.Anything, "sub_1", removedTags).Return(nil)

	payload, header := signedEvent(t, "evt_first", "invoice.paid", map[string]any{
		"id":             "in_1",
		"object":         "invoice",
		"billing_reason": "subscription_create",
		"subscription":   "sub_1",
	}, nil)
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))

	// redelivery is answered from the event log
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))

	f.stripe.AssertNumberOfCalls(t, "GetSubscription", 1)
	f.stripe.AssertNumberOfCalls(t, "DeleteSubscriptionItem", 1)
	f.stripe.AssertExpectations(t)
}

func TestHandleWebhook_ReconciliationFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stripe.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("api unavailable")).Once()

	payload, header := signedEvent(t, "evt_retry", "invoice.paid", map[string]any{
		"id":             "in_1",
		"object":         "invoice",
		"billing_reason": "subscription_create",
		"subscription":   "sub_1",
	}, nil)
	err := f.webhooks.HandleWebhook(ctx, payload, header)
	require.ErrorIs(t, err, ErrReconciliation)

	// the failed attempt does not block the redelivery
	f.stripe.On("GetSubscription", mock.Anything, "sub_1").Return(&stripe.Subscription{
		ID:       "sub_1",
		Metadata: map[string]string{model.MetaIncludesOneTimeService: model.OneTimeServiceRemoved},
	}, nil).Once()
	require.NoError(t, f.webhooks.HandleWebhook(ctx, payload, header))

	var event model.WebhookEvent
	require.NoError(t, f.db.First(&event, "event_id = ?", "evt_retry").Error)
	assert.True(t, event.Processed())
	assert.Empty(t, event.Error)
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	f := newFixture(t)

	payload, header := signedEvent(t, "evt_misc", "customer.created", map[string]any{
		"id":     "cus_1",
		"object": "customer",
	}, nil)
	require.NoError(t, f.webhooks.HandleWebhook(context.Background(), payload, header))
	assert.Equal(t, int64(1), f.eventCount(t))
}
