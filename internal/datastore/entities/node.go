package entities

import "time"

// NodeHeartbeat records the last time a node was heard from. Upserted on
// every event from that node, latest-wins, never deleted.
type NodeHeartbeat struct {
	NodeID   string    `gorm:"primaryKey;size:64" json:"node_id"`
	LastSeen time.Time `gorm:"not null" json:"last_seen"`
	Note     string    `gorm:"size:255;default:''" json:"note"`
}

// TableName returns the table name for GORM.
func (NodeHeartbeat) TableName() string {
	return "node_heartbeats"
}
