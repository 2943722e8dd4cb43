package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type nodeRepository struct {
	db *gorm.DB
}

// NewNodeRepository creates a GORM-backed NodeRepository.
func NewNodeRepository(db *gorm.DB) NodeRepository {
	return &nodeRepository{db: db}
}

func (r *nodeRepository) UpsertSeen(ctx context.Context, nodeID, note string, at time.Time) error {
	heartbeat := entities.NodeHeartbeat{
		NodeID:   nodeID,
		LastSeen: at,
		Note:     note,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "node_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "note"}),
	}).Create(&heartbeat).Error
	if err != nil {
		return errors.New(fmt.Errorf("failed to upsert heartbeat for %s: %w", nodeID, err)).
			Category(errors.CategoryPersistence).Build()
	}
	return nil
}

func (r *nodeRepository) List(ctx context.Context) ([]entities.NodeHeartbeat, error) {
	var nodes []entities.NodeHeartbeat
	if err := r.db.WithContext(ctx).Order("node_id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("failed to list node heartbeats: %w", err)
	}
	return nodes, nil
}
