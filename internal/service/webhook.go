package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"portfolio-api/internal/client"
	"portfolio-api/internal/logger"
	"portfolio-api/internal/metrics"
	"portfolio-api/internal/model"
	"portfolio-api/internal/repository"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

type WebhookService interface {
	// HandleWebhook verifies payload against signature and dispatches the event.
	// Only signature failures (ErrInvalidSignature) and reconciliation failures
	// (ErrReconciliation) are returned; every other handler error is logged.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type webhookServiceImpl struct {
	stripeClient     client.StripeClient
	orderService     OrderService
	notifier         NotificationService
	reconciler       FeeReconciler
	webhookEventRepo repository.WebhookEventRepository
	logger           *zap.Logger
}

func NewWebhookService(
	stripeClient client.StripeClient,
	orderService OrderService,
	notifier NotificationService,
	reconciler FeeReconciler,
	webhookEventRepo repository.WebhookEventRepository,
	logger *zap.Logger,
) WebhookService {
	return &webhookServiceImpl{
		stripeClient:     stripeClient,
		orderService:     orderService,
		notifier:         notifier,
		reconciler:       reconciler,
		webhookEventRepo: webhookEventRepo,
		logger:           logger,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.stripeClient.ConstructEvent(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	eventType := string(event.Type)
	log := logger.FromContext(ctx, s.logger).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", eventType),
	)
	ctx = logger.WithContext(ctx, log)

	processed, err := s.webhookEventRepo.IsProcessed(ctx, event.ID)
	if err != nil {
		log.Warn("lookup webhook event", zap.Error(err))
	}
	if processed {
		log.Info("webhook event already processed")
		metrics.WebhookEvents.WithLabelValues(eventType, "duplicate").Inc()
		return nil
	}

	handlerErr := s.dispatch(ctx, &event)

	objectID, _ := event.Data.Object["id"].(string)
	if err := s.webhookEventRepo.Record(ctx, event.ID, eventType, objectID, handlerErr); err != nil {
		log.Warn("record webhook event", zap.Error(err))
	}

	switch {
	case handlerErr == nil:
		metrics.WebhookEvents.WithLabelValues(eventType, "processed").Inc()
		return nil
	case errors.Is(handlerErr, ErrReconciliation):
		metrics.WebhookEvents.WithLabelValues(eventType, "retry").Inc()
		log.Error("fee reconciliation failed", zap.Error(handlerErr))
		return handlerErr
	default:
		metrics.WebhookEvents.WithLabelValues(eventType, "failed").Inc()
		log.Error("handle webhook event", zap.Error(handlerErr))
		return nil
	}
}

func (s *webhookServiceImpl) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, &sess)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleSubscriptionDeleted(ctx, &sub)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleSubscriptionUpdated(ctx, &sub, event.Data.PreviousAttributes)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		s.notifier.NotifyPaymentFailed(ctx, invoice.CustomerEmail, invoice.AmountDue, string(invoice.BillingReason), invoice.HostedInvoiceURL)
		return nil

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		_, err := s.reconciler.RemoveOneTimeFee(ctx, &invoice)
		return err

	default:
		logger.FromContext(ctx, s.logger).Debug("unhandled event type")
		return nil
	}
}

// handleCheckoutCompleted confirms payment, then raises the onboarding issue
// and advances the order whether or not the issue could be created.
func (s *webhookServiceImpl) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	log := logger.FromContext(ctx, s.logger).With(zap.String("session_id", sess.ID))

	orderID, ok := orderIDFromMetadata(sess.Metadata)
	if !ok {
		log.Info("no orderId in session metadata")
		return nil
	}
	log = log.With(zap.Uint("order_id", orderID))

	order, err := s.orderService.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == model.OrderStatusPending {
		order, err = s.orderService.ConfirmPayment(ctx, order, sess)
		if err != nil {
			return err
		}
	}

	if order.Status != model.OrderStatusPaid {
		log.Info("order already past onboarding, skipping notification",
			zap.String("status", string(order.Status)),
		)
		return nil
	}

	s.notifier.NotifyNewProject(ctx, order)

	moved, err := s.orderService.StartOnboarding(ctx, order.ID)
	if err != nil {
		return err
	}
	if moved {
		log.Info("order moved to onboarding_started")
	}
	return nil
}

func (s *webhookServiceImpl) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	log := logger.FromContext(ctx, s.logger).With(zap.String("subscription_id", sub.ID))

	orderRef := sub.Metadata[model.MetaOrderID]
	var transitionErr error
	if orderID, ok := orderIDFromMetadata(sub.Metadata); ok {
		moved, err := s.orderService.CancelHosting(ctx, orderID)
		switch {
		case err != nil:
			transitionErr = err
		case moved:
			log.Info("order moved to hosting_canceled", zap.Uint("order_id", orderID))
		default:
			log.Warn("order not in a cancellable status", zap.Uint("order_id", orderID))
		}
	}

	customerEmail := ""
	if sub.Customer != nil && sub.Customer.ID != "" {
		email, err := s.stripeClient.GetCustomerEmail(ctx, sub.Customer.ID)
		if err != nil {
			log.Warn("lookup customer email", zap.Error(err))
		}
		customerEmail = email
	}

	s.notifier.NotifyHostingCanceled(ctx, orderRef, customerEmail, sub.Metadata[model.MetaHostingTier], sub.ID)
	return transitionErr
}

func (s *webhookServiceImpl) handleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription, previous map[string]interface{}) error {
	if _, changed := previous["cancel_at_period_end"]; !changed || !sub.CancelAtPeriodEnd {
		return nil
	}

	effective := time.Unix(sub.CurrentPeriodEnd, 0)
	if sub.CancelAt > 0 {
		effective = time.Unix(sub.CancelAt, 0)
	}

	logger.FromContext(ctx, s.logger).Info("subscription cancellation scheduled",
		zap.String("subscription_id", sub.ID),
		zap.Time("effective", effective),
	)

	s.notifier.NotifyCancellationScheduled(ctx, sub.Metadata[model.MetaOrderID], sub.Metadata[model.MetaHostingTier], effective)
	return nil
}
