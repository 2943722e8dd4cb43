package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/errors"
	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a GORM-backed EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func applyEventFilter(query *gorm.DB, filter EventFilter) *gorm.DB {
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Room != "" {
		query = query.Where("room = ?", filter.Room)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		query = query.Where("details LIKE ? OR room LIKE ? OR type LIKE ?", like, like, like)
	}
	return query
}

func (r *eventRepository) Create(ctx context.Context, event *entities.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.New(fmt.Errorf("failed to create event: %w", err)).
			Category(errors.CategoryPersistence).Build()
	}
	return nil
}

func (r *eventRepository) Latest(ctx context.Context, filter EventFilter) (*entities.Event, error) {
	var event entities.Event
	err := applyEventFilter(r.db.WithContext(ctx), filter).
		Order("timestamp DESC").Order("id DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest event: %w", err)
	}
	return &event, nil
}

func (r *eventRepository) HasSince(ctx context.Context, filter EventFilter, since, until time.Time) (bool, error) {
	var count int64
	err := applyEventFilter(r.db.WithContext(ctx).Model(&entities.Event{}), filter).
		Where("timestamp >= ? AND timestamp <= ?", since, until).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recent events: %w", err)
	}
	return count > 0, nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter, limit int) ([]entities.Event, error) {
	var events []entities.Event
	err := applyEventFilter(r.db.WithContext(ctx), filter).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) ListBetween(ctx context.Context, filter EventFilter, start, end time.Time, limit int) ([]entities.Event, error) {
	var events []entities.Event
	err := applyEventFilter(r.db.WithContext(ctx), filter).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events in window: %w", err)
	}
	return events, nil
}
