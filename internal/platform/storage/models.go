package storage

import (
	"time"

	"gorm.io/datatypes"
)

// HistoryRecord is a saved translation.
type HistoryRecord struct {
	ID          uint           `gorm:"primaryKey"`
	Filename    string         `gorm:"not null"`
	Explanation string         `gorm:"type:text;not null"`
	Confidence  float64        `gorm:"not null;default:0"`
	Tone        string         `gorm:"type:varchar(32)"`
	ShareID     string         `gorm:"index"`
	Metadata    datatypes.JSON // breed, source, share_id, status
	CreatedAt   time.Time      `gorm:"index;not null"`
}

func (HistoryRecord) TableName() string {
	return "history"
}

// KVEntry stores one JSON document under a key.
type KVEntry struct {
	Key       string         `gorm:"primaryKey;type:varchar(255)"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
