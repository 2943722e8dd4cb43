package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/errors"
	"gorm.io/gorm"
)

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a GORM-backed SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot *entities.Snapshot) error {
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return errors.New(fmt.Errorf("failed to create snapshot: %w", err)).
			Category(errors.CategoryPersistence).Build()
	}
	return nil
}

func (r *snapshotRepository) Get(ctx context.Context, id uint) (*entities.Snapshot, error) {
	var snapshot entities.Snapshot
	if err := r.db.WithContext(ctx).First(&snapshot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot %d: %w", id, err)
	}
	return &snapshot, nil
}

func (r *snapshotRepository) Latest(ctx context.Context, snapshotType, label string) (*entities.Snapshot, error) {
	query := r.db.WithContext(ctx)
	if snapshotType != "" {
		query = query.Where("type = ?", snapshotType)
	}
	if label != "" {
		query = query.Where("label = ?", label)
	}

	var snapshot entities.Snapshot
	err := query.Order("created_at DESC").Order("id DESC").First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *snapshotRepository) List(ctx context.Context, filter SnapshotFilter, limit int) ([]entities.Snapshot, error) {
	query := r.db.WithContext(ctx)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Label != "" {
		query = query.Where("label = ?", filter.Label)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		query = query.Where("note LIKE ? OR file_path LIKE ?", like, like)
	}

	var snapshots []entities.Snapshot
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *snapshotRepository) ListForAlert(ctx context.Context, alertID uint) ([]entities.Snapshot, error) {
	var snapshots []entities.Snapshot
	err := r.db.WithContext(ctx).
		Where("linked_alert_id = ?", alertID).
		Order("created_at DESC").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for alert %d: %w", alertID, err)
	}
	return snapshots, nil
}
