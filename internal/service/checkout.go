package service

import (
	"context"
	"fmt"
	"net/url"
	"portfolio-api/internal/client"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/metrics"
	"portfolio-api/internal/model"
	"portfolio-api/internal/repository"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

type CheckoutService interface {
	// CreateCheckoutSession inserts a pending order and opens a hosted checkout
	// session for it. origin is the site the customer is redirected back to.
	CreateCheckoutSession(ctx context.Context, req *dto.CheckoutRequest, origin string) (*dto.CheckoutResponse, error)
}

type checkoutServiceImpl struct {
	stripeClient client.StripeClient
	orderRepo    repository.OrderRepository
	currency     string
	provider     string
	logger       *zap.Logger
	now          func() time.Time
}

func NewCheckoutService(
	stripeClient client.StripeClient,
	orderRepo repository.OrderRepository,
	currency string,
	provider string,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		stripeClient: stripeClient,
		orderRepo:    orderRepo,
		currency:     currency,
		provider:     provider,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *checkoutServiceImpl) CreateCheckoutSession(ctx context.Context, req *dto.CheckoutRequest, origin string) (*dto.CheckoutResponse, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	hostingName := ""
	if req.HasHosting() {
		hostingName = req.HostingName
	}
	agreement, err := renderDraftAgreement(s.provider, s.now(), req.ClientName, req.TierName, req.Price, hostingName)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		TierName:         req.TierName,
		Price:            req.Price,
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		ProjectDetails:   req.ProjectDetails,
		Status:           model.OrderStatusPending,
		AgreementContent: agreement,
		HostingPrice:     decimal.Zero,
	}
	if req.Deadline != "" {
		deadline := req.Deadline
		order.Deadline = &deadline
	}
	if req.HasHosting() {
		hostingTier := req.HostingTier
		order.HostingTier = &hostingTier
		order.HostingPrice = req.HostingPrice
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("store order in db: %w", err)
	}

	params := buildCheckoutSessionParams(order, req, origin, s.currency)

	sess, err := s.stripeClient.CreateCheckoutSession(ctx, params)
	if err != nil {
		// the pending row stays behind; a retry creates a fresh one
		metrics.CheckoutFailures.Inc()
		s.logger.Error("create checkout session",
			zap.Uint("order_id", order.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.orderRepo.SetSessionID(ctx, order.ID, sess.ID); err != nil {
		metrics.CheckoutFailures.Inc()
		return nil, fmt.Errorf("store session id: %w", err)
	}

	mode := string(stripe.CheckoutSessionModePayment)
	if req.HasHosting() {
		mode = string(stripe.CheckoutSessionModeSubscription)
	}
	metrics.OrdersCreated.WithLabelValues(mode).Inc()

	s.logger.Info("checkout session created",
		zap.Uint("order_id", order.ID),
		zap.String("session_id", sess.ID),
		zap.String("mode", mode),
	)

	return &dto.CheckoutResponse{
		URL:     sess.URL,
		OrderID: order.ID,
	}, nil
}

func validateCheckout(req *dto.CheckoutRequest) error {
	switch {
	case strings.TrimSpace(req.TierName) == "":
		return fmt.Errorf("%w: tierName is required", ErrInvalidInput)
	case !req.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case strings.TrimSpace(req.ClientName) == "":
		return fmt.Errorf("%w: clientName is required", ErrInvalidInput)
	case strings.TrimSpace(req.ClientEmail) == "":
		return fmt.Errorf("%w: clientEmail is required", ErrInvalidInput)
	}

	if req.HasHosting() {
		if strings.TrimSpace(req.HostingName) == "" {
			return fmt.Errorf("%w: hostingName is required with hostingTier", ErrInvalidInput)
		}
		if !req.HostingPrice.IsPositive() {
			return fmt.Errorf("%w: hostingPrice must be positive with hostingTier", ErrInvalidInput)
		}
	}
	return nil
}

// buildCheckoutSessionParams maps an order to session params. Without hosting it
// is a single one-time item in payment mode. With hosting the service fee and
// the monthly hosting item share one subscription-mode session and the
// subscription is tagged so the fee can be stripped after the first invoice.
func buildCheckoutSessionParams(order *model.Order, req *dto.CheckoutRequest, origin, currency string) *stripe.CheckoutSessionParams {
	orderID := strconv.FormatUint(uint64(order.ID), 10)
	origin = strings.TrimSuffix(origin, "/")

	serviceItem := &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(order.TierName),
				Description: stripe.String(fmt.Sprintf("Project execution for %s", order.ClientName)),
				Metadata: map[string]string{
					model.MetaLineItemRole: model.RoleOneTimeService,
				},
			},
			UnitAmount: stripe.Int64(toCents(order.Price)),
		},
		Quantity: stripe.Int64(1),
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{serviceItem},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(origin + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(origin + "/checkout?tier=" + url.QueryEscape(req.TierID)),
		CustomerEmail:      stripe.String(order.ClientEmail),
	}

	hostingTier := model.NoHostingTier
	if order.HasHosting() {
		hostingTier = *order.HostingTier

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.HostingName),
					Description: stripe.String(fmt.Sprintf("Monthly hosting and maintenance for %s", order.ClientName)),
					Metadata: map[string]string{
						model.MetaLineItemRole: model.RoleRecurringHosting,
					},
				},
				UnitAmount: stripe.Int64(toCents(order.HostingPrice)),
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
				},
			},
			Quantity: stripe.Int64(1),
		})
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				model.MetaOrderID:                orderID,
				model.MetaHostingTier:            hostingTier,
				model.MetaIncludesOneTimeService: model.OneTimeServicePending,
			},
		}
	}

	params.AddMetadata(model.MetaOrderID, orderID)
	params.AddMetadata(model.MetaHostingTier, hostingTier)

	return params
}
