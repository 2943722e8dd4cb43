package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"gorm.io/gorm"
)

// TypeStatusCount is one row of the alerts-by-type/status aggregation.
type TypeStatusCount struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// StatusCount is one row of the alerts-by-status aggregation.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// TypeCount is one row of the events-by-type aggregation.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// TypeLabelCount is one row of the snapshots-by-type/label aggregation.
type TypeLabelCount struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// RoomCount is one row of the top-rooms aggregation.
type RoomCount struct {
	Room  string `json:"room"`
	Count int64  `json:"count"`
}

// DailySummary aggregates one UTC day of activity.
type DailySummary struct {
	Date                 string            `json:"date"`
	Start                time.Time         `json:"start"`
	End                  time.Time         `json:"end"`
	AlertsByTypeStatus   []TypeStatusCount `json:"alerts_by_type_status"`
	AlertsByStatus       []StatusCount     `json:"alerts_by_status"`
	EventsByType         []TypeCount       `json:"events_by_type"`
	SnapshotsByTypeLabel []TypeLabelCount  `json:"snapshots_by_type_label"`
	TopRooms             []RoomCount       `json:"top_rooms"`
}

// SummaryRepository produces the daily activity summary.
type SummaryRepository interface {
	ForDay(ctx context.Context, day time.Time) (*DailySummary, error)
}

type summaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a GORM-backed SummaryRepository.
func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

const topRoomLimit = 10

func (r *summaryRepository) ForDay(ctx context.Context, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)

	summary := &DailySummary{
		Date:  start.Format("2006-01-02"),
		Start: start,
		End:   end,
	}

	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Select("type, status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group("type").Group("status").
		Order("type").Order("status").
		Scan(&summary.AlertsByTypeStatus).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize alerts by type/status: %w", err)
	}

	err = r.db.WithContext(ctx).Model(&entities.Alert{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group("status").Order("status").
		Scan(&summary.AlertsByStatus).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize alerts by status: %w", err)
	}

	err = r.db.WithContext(ctx).Model(&entities.Event{}).
		Select("type, COUNT(*) as count").
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Group("type").Order("type").
		Scan(&summary.EventsByType).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize events by type: %w", err)
	}

	err = r.db.WithContext(ctx).Model(&entities.Snapshot{}).
		Select("type, label, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group("type").Group("label").
		Order("type").Order("label").
		Scan(&summary.SnapshotsByTypeLabel).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize snapshots: %w", err)
	}

	err = r.db.WithContext(ctx).Model(&entities.Alert{}).
		Select("room, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ? AND room != ''", start, end).
		Group("room").
		Order("count DESC").
		Limit(topRoomLimit).
		Scan(&summary.TopRooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize top rooms: %w", err)
	}

	return summary, nil
}
