package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/errors"
	"gorm.io/gorm"
)

const defaultAlertLimit = 200

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a GORM-backed AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func applyAlertFilter(query *gorm.DB, filter AlertFilter) *gorm.DB {
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Room != "" {
		query = query.Where("room = ?", filter.Room)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		query = query.Where("details LIKE ? OR room LIKE ? OR type LIKE ?", like, like, like)
	}
	if filter.Sort == SortSeverity {
		query = query.Order("severity DESC").Order("created_at DESC")
	} else {
		query = query.Order("created_at DESC")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	return query.Limit(limit)
}

func (r *alertRepository) Create(ctx context.Context, alert *entities.Alert) error {
	if alert.Status == "" {
		alert.Status = entities.StatusActive
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return errors.New(fmt.Errorf("failed to create alert: %w", err)).
			Category(errors.CategoryPersistence).Build()
	}
	return nil
}

func (r *alertRepository) Get(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return &alert, nil
}

func (r *alertRepository) ListActive(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	var alerts []entities.Alert
	query := r.db.WithContext(ctx).Where("status = ?", entities.StatusActive)
	if err := applyAlertFilter(query, filter).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) ListHistory(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	var alerts []entities.Alert
	query := r.db.WithContext(ctx).Where("status != ?", entities.StatusActive)
	if err := applyAlertFilter(query, filter).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("status = ?", entities.StatusActive).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}
	return count, nil
}

func (r *alertRepository) HasRecent(ctx context.Context, alertType string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("type = ? AND created_at >= ?", alertType, since).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recent alerts: %w", err)
	}
	return count > 0, nil
}

// Transition is the only mutation of alert status. The WHERE clause makes the
// ACTIVE check and the update a single atomic statement; no retry or lock is
// needed around it.
func (r *alertRepository) Transition(ctx context.Context, id uint, target string, at time.Time) (bool, error) {
	if target != entities.StatusAck && target != entities.StatusResolved {
		return false, fmt.Errorf("invalid transition target %q", target)
	}

	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ? AND status = ?", id, entities.StatusActive).
		Updates(map[string]any{"status": target, "ack_at": at})
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition alert %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// Nothing updated: either the alert is non-ACTIVE (a no-op, not an
	// error) or the id does not exist (a caller bug).
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to verify alert %d: %w", id, err)
	}
	if count == 0 {
		return false, ErrAlertNotFound
	}
	return false, nil
}

func (r *alertRepository) AttachSnapshot(ctx context.Context, id uint, snapshotPath string) error {
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ?", id).
		Update("snapshot_path", snapshotPath)
	if result.Error != nil {
		return fmt.Errorf("failed to attach snapshot to alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (r *alertRepository) DistinctTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Distinct("type").Order("type").Pluck("type", &types).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert types: %w", err)
	}
	return types, nil
}

func (r *alertRepository) DistinctRooms(ctx context.Context) ([]string, error) {
	var rooms []string
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Distinct("room").Where("room != ''").Order("room").Pluck("room", &rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rooms: %w", err)
	}
	return rooms, nil
}
