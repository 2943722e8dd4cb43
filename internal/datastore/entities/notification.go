package entities

import "time"

// Notification attempt kinds.
const (
	KindInitial  = "INITIAL"
	KindReminder = "REMINDER"
)

// NotificationAttempt is one row of the append-only notification audit trail.
// Rows are never revised after insert.
type NotificationAttempt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AlertID   uint      `gorm:"not null;index:idx_attempts_alert_channel,priority:1" json:"alert_id"`
	Channel   string    `gorm:"size:64;not null;index:idx_attempts_alert_channel,priority:2" json:"channel"`
	Kind      string    `gorm:"size:10;not null" json:"kind"`
	OK        bool      `gorm:"not null" json:"ok"`
	Error     string    `gorm:"size:500;default:''" json:"error"`
	Message   string    `gorm:"size:2000;default:''" json:"message"`
	AttemptAt time.Time `gorm:"not null;index" json:"attempt_at"`
}

// TableName returns the table name for GORM.
func (NotificationAttempt) TableName() string {
	return "notification_attempts"
}
