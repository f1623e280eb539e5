package service

import (
	"context"
	"errors"
	"fmt"
	"portfolio-api/internal/client"
	"portfolio-api/internal/metrics"
	"portfolio-api/internal/model"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NotificationService raises operator issues in the tracker. The Notify*
// methods are best-effort: failures are logged and counted, never returned.
type NotificationService interface {
	NotifyNewProject(ctx context.Context, order *model.Order)
	NotifyHostingCanceled(ctx context.Context, orderRef, customerEmail, hostingTier, subscriptionID string)
	NotifyCancellationScheduled(ctx context.Context, orderRef, hostingTier string, effective time.Time)
	NotifyPaymentFailed(ctx context.Context, customerEmail string, amountDue int64, billingReason, invoiceURL string)

	TrackerConfigured() (hasKey, hasTeam bool)
	SendDebugNewProject(ctx context.Context, order *model.Order) (*client.CreatedIssue, error)
	SendTestIssue(ctx context.Context) (*client.CreatedIssue, error)
}

type notificationServiceImpl struct {
	tracker client.IssueTrackerClient
	hasKey  bool
	hasTeam bool
	logger  *zap.Logger
}

func NewNotificationService(tracker client.IssueTrackerClient, hasKey, hasTeam bool, logger *zap.Logger) NotificationService {
	return &notificationServiceImpl{
		tracker: tracker,
		hasKey:  hasKey,
		hasTeam: hasTeam,
		logger:  logger,
	}
}

func (s *notificationServiceImpl) NotifyNewProject(ctx context.Context, order *model.Order) {
	s.send(ctx, &client.Issue{
		Title:       fmt.Sprintf("New Project: %s - %s", order.ClientName, order.TierName),
		Description: projectDescription(order, "Created via Stripe Webhook"),
		Priority:    client.PriorityHigh,
	})
}

func (s *notificationServiceImpl) NotifyHostingCanceled(ctx context.Context, orderRef, customerEmail, hostingTier, subscriptionID string) {
	s.send(ctx, &client.Issue{
		Title: fmt.Sprintf("URGENT: Hosting Canceled - Order #%s", orUnknown(orderRef, "Unknown")),
		Description: fmt.Sprintf(
			"User (%s) has canceled their hosting subscription.\n\nHosting Tier: %s\nSubscription ID: %s\n\nPlease proceed with server offboarding.",
			orUnknown(customerEmail, "Unknown Email"),
			orUnknown(hostingTier, "Unknown Tier"),
			subscriptionID,
		),
		Priority: client.PriorityUrgent,
	})
}

func (s *notificationServiceImpl) NotifyCancellationScheduled(ctx context.Context, orderRef, hostingTier string, effective time.Time) {
	s.send(ctx, &client.Issue{
		Title: fmt.Sprintf("Warning: Hosting Cancellation Scheduled - Order #%s", orUnknown(orderRef, "Unknown")),
		Description: fmt.Sprintf(
			"Client has requested cancellation effective on **%s**.\n\nHosting Tier: %s\n\nTask: Prepare to offboard server on this date.",
			effective.Format(agreementDateLayout),
			orUnknown(hostingTier, "Unknown Tier"),
		),
		Priority: client.PriorityHigh,
	})
}

func (s *notificationServiceImpl) NotifyPaymentFailed(ctx context.Context, customerEmail string, amountDue int64, billingReason, invoiceURL string) {
	email := orUnknown(customerEmail, "Unknown Email")
	amount := fromCents(amountDue).String()

	var b strings.Builder
	b.WriteString("**Revenue Alert**\n\n")
	fmt.Fprintf(&b, "Client: %s\nAmount Overdue: $%s\nReason: %s\n\n", email, amount, orUnknown(billingReason, "Unknown"))
	b.WriteString("**Action Required:**\n1. Check Stripe Dashboard.\n2. Contact client to update payment method.\n3. Consider pausing hosting if unresolved.")
	if invoiceURL != "" {
		fmt.Fprintf(&b, "\n\n[View Invoice in Stripe](%s)", invoiceURL)
	}

	s.send(ctx, &client.Issue{
		Title:       fmt.Sprintf("URGENT: Payment Failed - %s ($%s)", email, amount),
		Description: b.String(),
		Priority:    client.PriorityUrgent,
	})
}

func (s *notificationServiceImpl) TrackerConfigured() (bool, bool) {
	return s.hasKey, s.hasTeam
}

func (s *notificationServiceImpl) SendDebugNewProject(ctx context.Context, order *model.Order) (*client.CreatedIssue, error) {
	return s.tracker.CreateIssue(ctx, &client.Issue{
		Title:       fmt.Sprintf("DEBUG: New Project: %s", order.ClientName),
		Description: projectDescription(order, "Manually Triggered Debug"),
		Priority:    client.PriorityHigh,
	})
}

func (s *notificationServiceImpl) SendTestIssue(ctx context.Context) (*client.CreatedIssue, error) {
	return s.tracker.CreateIssue(ctx, &client.Issue{
		Title:       "Test Task from portfolio-api",
		Description: "If you see this, the Linear Integration is working!",
		Priority:    client.PriorityNormal,
	})
}

func (s *notificationServiceImpl) send(ctx context.Context, issue *client.Issue) {
	created, err := s.tracker.CreateIssue(ctx, issue)
	switch {
	case errors.Is(err, client.ErrTrackerNotConfigured):
		metrics.Notifications.WithLabelValues("skipped").Inc()
		s.logger.Warn("linear api key or team id missing, skipping issue creation",
			zap.String("title", issue.Title),
		)
	case err != nil:
		metrics.Notifications.WithLabelValues("failed").Inc()
		s.logger.Error("create linear issue",
			zap.String("title", issue.Title),
			zap.Error(err),
		)
	default:
		metrics.Notifications.WithLabelValues("created").Inc()
		s.logger.Info("linear issue created",
			zap.String("title", issue.Title),
			zap.String("url", created.URL),
		)
	}
}

func projectDescription(order *model.Order, footer string) string {
	hosting := "None"
	if order.HasHosting() {
		hosting = *order.HostingTier
	}
	deadline := "No specific date"
	if order.Deadline != nil && *order.Deadline != "" {
		deadline = *order.Deadline
	}

	return fmt.Sprintf(
		"**Client:** %s\n**Email:** %s\n**Service Tier:** %s\n**Hosting:** %s\n**Deadline:** %s\n\n**Project Details:**\n%s\n\n---\n*%s*",
		order.ClientName,
		order.ClientEmail,
		order.TierName,
		hosting,
		deadline,
		order.ProjectDetails,
		footer,
	)
}

func orUnknown(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
