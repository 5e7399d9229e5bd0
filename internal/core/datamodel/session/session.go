package session

import "time"

// Entry is one key of the durable session storage. The token and the
// serialized user live in separate rows and are written in one transaction.
type Entry struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Entry) TableName() string {
	return "session_entries"
}
