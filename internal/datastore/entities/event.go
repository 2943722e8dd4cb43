package entities

import "time"

// Event type values as stored in the events table.
const (
	EventSmokeHigh   = "SMOKE_HIGH"
	EventFlameSignal = "FLAME_SIGNAL"
	EventDoorForce   = "DOOR_FORCE"
	EventUnknown     = "UNKNOWN"
	EventAuthorized  = "AUTHORIZED"
)

// Event source values for camera-originated events.
const (
	SourceCamIndoor  = "CAM_INDOOR"
	SourceCamOutdoor = "CAM_OUTDOOR"
)

// Event is a single immutable observation from a sensor, camera, or node.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"size:50;not null;index:idx_events_type_ts,priority:1" json:"type"`
	Source    string    `gorm:"size:64;not null;index" json:"source"`
	Room      string    `gorm:"size:100;default:''" json:"room"`
	Details   string    `gorm:"size:500;default:''" json:"details"`
	Timestamp time.Time `gorm:"not null;index:idx_events_type_ts,priority:2" json:"timestamp"`
}

// TableName returns the table name for GORM.
func (Event) TableName() string {
	return "events"
}
