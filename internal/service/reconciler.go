package service

import (
	"context"
	"fmt"
	"portfolio-api/internal/client"
	"portfolio-api/internal/metrics"
	"portfolio-api/internal/model"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// FeeReconciler strips the bundled one-time service fee from a hosting
// subscription once its first invoice is paid.
type FeeReconciler interface {
	// RemoveOneTimeFee reports whether an item was removed. Errors wrap ErrReconciliation.
	RemoveOneTimeFee(ctx context.Context, invoice *stripe.Invoice) (bool, error)
}

type feeReconcilerImpl struct {
	stripeClient client.StripeClient
	logger       *zap.Logger
	now          func() time.Time
}

func NewFeeReconciler(stripeClient client.StripeClient, logger *zap.Logger) FeeReconciler {
	return &feeReconcilerImpl{
		stripeClient: stripeClient,
		logger:       logger,
		now:          time.Now,
	}
}

func (r *feeReconcilerImpl) RemoveOneTimeFee(ctx context.Context, invoice *stripe.Invoice) (bool, error) {
	if invoice.BillingReason != stripe.InvoiceBillingReasonSubscriptionCreate {
		return false, nil
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return false, nil
	}
	subID := invoice.Subscription.ID
	log := r.logger.With(zap.String("subscription_id", subID), zap.String("invoice_id", invoice.ID))

	sub, err := r.stripeClient.GetSubscription(ctx, subID)
	if err != nil {
		return false, r.fail(err)
	}

	if sub.Metadata[model.MetaIncludesOneTimeService] != model.OneTimeServicePending {
		log.Debug("subscription has no pending one-time fee",
			zap.String("tag", sub.Metadata[model.MetaIncludesOneTimeService]),
		)
		metrics.FeeRemovals.WithLabelValues("skipped").Inc()
		return false, nil
	}

	items, err := r.stripeClient.ListSubscriptionItems(ctx, subID)
	if err != nil {
		return false, r.fail(err)
	}

	removed := false
	if fee := findOneTimeServiceItem(items); fee != nil {
		if err := r.stripeClient.DeleteSubscriptionItem(ctx, fee.ID); err != nil {
			return false, r.fail(err)
		}
		removed = true
		log.Info("removed one-time fee from subscription", zap.String("item_id", fee.ID))
	} else {
		log.Warn("no one-time fee item left on subscription, tagging as reconciled")
	}

	if err := r.stripeClient.UpdateSubscriptionMetadata(ctx, subID, map[string]string{
		model.MetaIncludesOneTimeService:  model.OneTimeServiceRemoved,
		model.MetaOneTimeServiceRemovedAt: r.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return false, r.fail(err)
	}

	metrics.FeeRemovals.WithLabelValues("removed").Inc()
	return removed, nil
}

func (r *feeReconcilerImpl) fail(err error) error {
	metrics.FeeRemovals.WithLabelValues("failed").Inc()
	return fmt.Errorf("%w: %w", ErrReconciliation, err)
}

// findOneTimeServiceItem prefers the structured role tag written at checkout
// and falls back to the product name for subscriptions created without it.
func findOneTimeServiceItem(items []*stripe.SubscriptionItem) *stripe.SubscriptionItem {
	for _, item := range items {
		if itemRole(item) == model.RoleOneTimeService {
			return item
		}
	}

	for _, item := range items {
		if itemRole(item) == model.RoleRecurringHosting {
			continue
		}
		name := itemName(item)
		if name != "" && !strings.Contains(strings.ToLower(name), "hosting") {
			return item
		}
	}
	return nil
}

func itemRole(item *stripe.SubscriptionItem) string {
	if item.Price == nil || item.Price.Product == nil {
		return ""
	}
	return item.Price.Product.Metadata[model.MetaLineItemRole]
}

func itemName(item *stripe.SubscriptionItem) string {
	if item.Price != nil && item.Price.Product != nil && item.Price.Product.Name != "" {
		return item.Price.Product.Name
	}
	if item.Price != nil && item.Price.Nickname != "" {
		return item.Price.Nickname
	}
	return ""
}
