package entities

import "time"

// Snapshot type/label values used by the detection loop and fusion evidence
// lookup.
const (
	SnapshotFaceUnknown = "FACE_UNKNOWN"
	SnapshotFlame       = "FLAME_SIGNAL"

	LabelUnknown = "UNKNOWN"
	LabelFlame   = "FLAME"
)

// Snapshot is stored frame evidence captured at streak milestones. The image
// itself lives on disk; this row is its metadata.
type Snapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Type          string    `gorm:"size:50;not null;index:idx_snapshots_type_label,priority:1" json:"type"`
	Label         string    `gorm:"size:50;not null;index:idx_snapshots_type_label,priority:2" json:"label"`
	FilePath      string    `gorm:"size:255;not null" json:"file_path"`
	LinkedAlertID *uint     `gorm:"index" json:"linked_alert_id,omitempty"`
	Note          string    `gorm:"size:255;default:''" json:"note"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Snapshot) TableName() string {
	return "snapshots"
}
