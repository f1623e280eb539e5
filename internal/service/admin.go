package service

import (
	"context"
	"fmt"
	"portfolio-api/internal/dto"
)

// AdminService backs the operator diagnostics endpoints.
type AdminService interface {
	// LatestOrderReport summarises the newest order. With trigger set it also
	// sends a debug onboarding issue for it and reports the tracker's answer.
	LatestOrderReport(ctx context.Context, trigger bool) (*dto.LatestOrderReport, error)
	SendTestNotification(ctx context.Context) (*dto.TestNotificationResponse, error)
}

type adminServiceImpl struct {
	orderService OrderService
	notifier     NotificationService
}

func NewAdminService(orderService OrderService, notifier NotificationService) AdminService {
	return &adminServiceImpl{
		orderService: orderService,
		notifier:     notifier,
	}
}

func (s *adminServiceImpl) LatestOrderReport(ctx context.Context, trigger bool) (*dto.LatestOrderReport, error) {
	order, err := s.orderService.LatestOrder(ctx)
	if err != nil {
		return nil, err
	}

	hasKey, hasTeam := s.notifier.TrackerConfigured()
	report := &dto.LatestOrderReport{
		Status: "Check Complete",
		LatestOrder: dto.OrderSummary{
			ID:        order.ID,
			Client:    order.ClientName,
			Status:    string(order.Status),
			CreatedAt: order.CreatedAt,
		},
		EnvCheck: dto.EnvCheck{
			HasLinearKey: hasKey,
			HasTeamID:    hasTeam,
		},
		LinearDebugAttempt: "Not triggered",
	}

	if trigger {
		issue, err := s.notifier.SendDebugNewProject(ctx, order)
		if err != nil {
			report.LinearDebugAttempt = map[string]string{"error": err.Error()}
		} else {
			report.LinearDebugAttempt = issue
		}
	}

	return report, nil
}

func (s *adminServiceImpl) SendTestNotification(ctx context.Context) (*dto.TestNotificationResponse, error) {
	issue, err := s.notifier.SendTestIssue(ctx)
	if err != nil {
		return nil, fmt.Errorf("create test issue: %w", err)
	}
	return &dto.TestNotificationResponse{
		Success: true,
		Message: "Task created!",
		URL:     issue.URL,
	}, nil
}
