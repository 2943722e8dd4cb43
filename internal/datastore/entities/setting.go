package entities

// Setting keys.
const (
	SettingGuestMode = "guest_mode"
)

// Setting is a persisted key/value pair for operator-togglable state.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value string `gorm:"size:255;not null" json:"value"`
}

// TableName returns the table name for GORM.
func (Setting) TableName() string {
	return "settings"
}
