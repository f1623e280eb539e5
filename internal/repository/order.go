package repository

import (
	"context"
	"fmt"
	"portfolio-api/internal/model"
	"time"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	SetSessionID(ctx context.Context, id uint, sessionID string) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error)
	// Transition moves the order to status `to` only if its current status is one
	// that model.AllowedFrom permits. It reports whether a row was updated.
	Transition(ctx context.Context, id uint, to model.OrderStatus, fields map[string]interface{}) (bool, error)
	ListActiveDeadlines(ctx context.Context) ([]string, error)
	Latest(ctx context.Context) (*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order) error {
	if order.Status == "" {
		order.Status = model.OrderStatusPending
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) SetSessionID(ctx context.Context, id uint, sessionID string) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND stripe_session_id IS NULL", id).
		Updates(map[string]interface{}{
			"stripe_session_id": sessionID,
			"updated_at":        time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %d: session id already set or order missing", id)
	}
	return nil
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) Transition(ctx context.Context, id uint, to model.OrderStatus, fields map[string]interface{}) (bool, error) {
	from := model.AllowedFrom(to)
	if len(from) == 0 {
		return false, fmt.Errorf("no transition leads to status %q", to)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			id = ?
			AND status IN ?
		`,
			id,
			from,
		).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) ListActiveDeadlines(ctx context.Context) ([]string, error) {
	var deadlines []string
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("deadline IS NOT NULL AND deadline <> ''").
		Where("status NOT IN ?", model.InactiveStatuses).
		Order("id").
		Pluck("deadline", &deadlines).Error

	if err != nil {
		return nil, err
	}

	return deadlines, nil
}

func (r *orderRepoImpl) Latest(ctx context.Context) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}
