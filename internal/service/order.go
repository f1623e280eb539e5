package service

import (
	"context"
	"errors"
	"fmt"
	"portfolio-api/internal/client"
	"portfolio-api/internal/metrics"
	"portfolio-api/internal/model"
	"portfolio-api/internal/repository"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService owns every status transition after checkout.
type OrderService interface {
	// VerifyOrder is the client-polled confirmation path after the checkout redirect.
	VerifyOrder(ctx context.Context, sessionID string) (*model.Order, error)
	// ConfirmPayment moves a pending order to paid and stores the final agreement.
	// It returns the order as stored, whichever confirmation path won.
	ConfirmPayment(ctx context.Context, order *model.Order, sess *stripe.CheckoutSession) (*model.Order, error)
	StartOnboarding(ctx context.Context, orderID uint) (bool, error)
	CancelHosting(ctx context.Context, orderID uint) (bool, error)
	FindOrder(ctx context.Context, orderID uint) (*model.Order, error)
	BlockedDates(ctx context.Context) ([]string, error)
	LatestOrder(ctx context.Context) (*model.Order, error)
}

type orderServiceImpl struct {
	stripeClient client.StripeClient
	orderRepo    repository.OrderRepository
	provider     string
	logger       *zap.Logger
	now          func() time.Time
}

func NewOrderService(
	stripeClient client.StripeClient,
	orderRepo repository.OrderRepository,
	provider string,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		stripeClient: stripeClient,
		orderRepo:    orderRepo,
		provider:     provider,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *orderServiceImpl) VerifyOrder(ctx context.Context, sessionID string) (*model.Order, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", ErrInvalidInput)
	}

	sess, err := s.stripeClient.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	paid := sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	subscribed := sess.Mode == stripe.CheckoutSessionModeSubscription && sess.Subscription != nil
	if !paid && !subscribed {
		return nil, &PaymentIncompleteError{
			PaymentStatus: string(sess.PaymentStatus),
			Mode:          string(sess.Mode),
		}
	}

	order, err := s.resolveOrder(ctx, sess)
	if err != nil {
		return nil, err
	}

	if order.Status.Confirmed() {
		return order, nil
	}

	return s.ConfirmPayment(ctx, order, sess)
}

// resolveOrder matches the session to its order by metadata id, falling back to
// the stored session id when the metadata is missing or points elsewhere.
func (s *orderServiceImpl) resolveOrder(ctx context.Context, sess *stripe.CheckoutSession) (*model.Order, error) {
	if id, ok := orderIDFromMetadata(sess.Metadata); ok {
		order, err := s.FindOrder(ctx, id)
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		if order != nil && order.SessionID() == sess.ID {
			return order, nil
		}
	}

	order, err := s.orderRepo.FindBySessionID(ctx, sess.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order by session: %w", err)
	}
	return order, nil
}

func (s *orderServiceImpl) ConfirmPayment(ctx context.Context, order *model.Order, sess *stripe.CheckoutSession) (*model.Order, error) {
	if !model.CanTransition(order.Status, model.OrderStatusPaid) {
		s.logger.Info("order not awaiting payment",
			zap.Uint("order_id", order.ID),
			zap.String("status", string(order.Status)),
		)
		return s.FindOrder(ctx, order.ID)
	}

	description := order.TierName
	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 && sess.LineItems.Data[0].Description != "" {
		description = sess.LineItems.Data[0].Description
	}

	agreement, err := renderFinalAgreement(s.provider, s.now(), order.ID, description, sess.AmountTotal)
	if err != nil {
		return nil, err
	}

	moved, err := s.orderRepo.Transition(ctx, order.ID, model.OrderStatusPaid, map[string]interface{}{
		"agreement_content": agreement,
	})
	if err != nil {
		return nil, fmt.Errorf("mark order %d paid: %w", order.ID, err)
	}

	if !moved {
		// the other confirmation path got there first
		s.logger.Info("order already confirmed",
			zap.Uint("order_id", order.ID),
			zap.String("session_id", sess.ID),
		)
		return s.FindOrder(ctx, order.ID)
	}

	metrics.OrderTransitions.WithLabelValues(string(model.OrderStatusPaid)).Inc()
	s.logger.Info("order marked as paid",
		zap.Uint("order_id", order.ID),
		zap.String("session_id", sess.ID),
		zap.Int64("amount_total", sess.AmountTotal),
	)

	confirmed := *order
	confirmed.Status = model.OrderStatusPaid
	confirmed.AgreementContent = agreement
	return &confirmed, nil
}

func (s *orderServiceImpl) StartOnboarding(ctx context.Context, orderID uint) (bool, error) {
	return s.transition(ctx, orderID, model.OrderStatusOnboardingStarted)
}

func (s *orderServiceImpl) CancelHosting(ctx context.Context, orderID uint) (bool, error) {
	return s.transition(ctx, orderID, model.OrderStatusHostingCanceled)
}

func (s *orderServiceImpl) transition(ctx context.Context, orderID uint, to model.OrderStatus) (bool, error) {
	moved, err := s.orderRepo.Transition(ctx, orderID, to, nil)
	if err != nil {
		return false, fmt.Errorf("move order %d to %s: %w", orderID, to, err)
	}
	if moved {
		metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	}
	return moved, nil
}

func (s *orderServiceImpl) FindOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderID, err)
	}
	return order, nil
}

var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func (s *orderServiceImpl) BlockedDates(ctx context.Context) ([]string, error) {
	deadlines, err := s.orderRepo.ListActiveDeadlines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}

	blocked := make([]string, 0, len(deadlines))
	for _, d := range deadlines {
		if isDate(d) {
			blocked = append(blocked, d)
		}
	}
	return blocked, nil
}

func isDate(v string) bool {
	v = strings.TrimSpace(v)
	for _, layout := range deadlineLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func (s *orderServiceImpl) LatestOrder(ctx context.Context) (*model.Order, error) {
	order, err := s.orderRepo.Latest(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest order: %w", err)
	}
	return order, nil
}

func orderIDFromMetadata(metadata map[string]string) (uint, bool) {
	raw := metadata[model.MetaOrderID]
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
