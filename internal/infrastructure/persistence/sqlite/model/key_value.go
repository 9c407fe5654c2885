package model

import "time"

// KeyValue backs ports.Cache: relay cursors.
type KeyValue struct {
	Key       string     `gorm:"column:key;type:text;primaryKey"`
	Value     string     `gorm:"column:value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (KeyValue) TableName() string {
	return "kv_store"
}
