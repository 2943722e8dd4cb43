package entities

import "time"

// Alert type values.
const (
	AlertFire     = "FIRE"
	AlertIntruder = "INTRUDER"
)

// Alert status values. ACTIVE is the initial state; ACK and RESOLVED are
// terminal. No transition ever leaves a terminal state.
const (
	StatusActive   = "ACTIVE"
	StatusAck      = "ACK"
	StatusResolved = "RESOLVED"
)

// Alert is a derived, stateful incident requiring operator attention.
type Alert struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Type         string     `gorm:"size:50;not null;index:idx_alerts_type_created,priority:1" json:"type"`
	Room         string     `gorm:"size:100;default:''" json:"room"`
	Severity     int        `gorm:"not null;default:1" json:"severity"`
	Status       string     `gorm:"size:10;not null;index" json:"status"`
	Details      string     `gorm:"size:500;default:''" json:"details"`
	SnapshotPath string     `gorm:"size:255;default:''" json:"snapshot_path"`
	CreatedAt    time.Time  `gorm:"not null;index:idx_alerts_type_created,priority:2" json:"created_at"`
	AckAt        *time.Time `json:"ack_at,omitempty"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// IsTerminal reports whether the alert can no longer transition.
func (a *Alert) IsTerminal() bool {
	return a.Status == StatusAck || a.Status == StatusResolved
}

// SeverityLabel maps the numeric severity to the label used in notifications.
func (a *Alert) SeverityLabel() string {
	switch {
	case a.Severity >= 3:
		return "HIGH"
	case a.Severity == 2:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
