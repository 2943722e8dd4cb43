package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/errors"
	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a GORM-backed NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Append(ctx context.Context, attempt *entities.NotificationAttempt) error {
	if attempt.AttemptAt.IsZero() {
		attempt.AttemptAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return errors.New(fmt.Errorf("failed to append notification attempt: %w", err)).
			Category(errors.CategoryPersistence).Build()
	}
	return nil
}

func (r *notificationRepository) latest(ctx context.Context, alertID uint, channel string, onlySuccess bool) (*entities.NotificationAttempt, error) {
	query := r.db.WithContext(ctx).
		Where("alert_id = ? AND channel = ?", alertID, channel)
	if onlySuccess {
		query = query.Where("ok = ?", true)
	}

	var attempt entities.NotificationAttempt
	err := query.Order("attempt_at DESC").Order("id DESC").First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query notification attempts: %w", err)
	}
	return &attempt, nil
}

func (r *notificationRepository) LastAttempt(ctx context.Context, alertID uint, channel string) (*entities.NotificationAttempt, error) {
	return r.latest(ctx, alertID, channel, false)
}

func (r *notificationRepository) LastSuccess(ctx context.Context, alertID uint, channel string) (*entities.NotificationAttempt, error) {
	return r.latest(ctx, alertID, channel, true)
}

func (r *notificationRepository) CountSuccess(ctx context.Context, alertID uint, channel string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.NotificationAttempt{}).
		Where("alert_id = ? AND channel = ? AND ok = ?", alertID, channel, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count successful attempts: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) ListForAlert(ctx context.Context, alertID uint) ([]entities.NotificationAttempt, error) {
	var attempts []entities.NotificationAttempt
	err := r.db.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("attempt_at ASC").Order("id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for alert %d: %w", alertID, err)
	}
	return attempts, nil
}
