package repository

import (
	"context"
	"errors"
	"portfolio-api/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// IsProcessed reports whether an event with this id already completed successfully.
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Record upserts the event row. A nil handlerErr marks it processed.
	Record(ctx context.Context, eventID, eventType, objectID string, handlerErr error) error
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return event.Processed(), nil
}

func (r *webhookEventRepositoryImpl) Record(ctx context.Context, eventID, eventType, objectID string, handlerErr error) error {
	event := model.WebhookEvent{
		EventID:   eventID,
		EventType: eventType,
		ObjectID:  objectID,
	}
	if handlerErr != nil {
		event.Error = handlerErr.Error()
	} else {
		now := time.Now()
		event.ProcessedAt = &now
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"error", "processed_at"}),
		}).
		Create(&event).Error
}
