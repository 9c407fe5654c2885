package schema

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Version is bumped whenever a model change needs more than AutoMigrate.
const Version = "1"

const versionKey = "schema_version"

type Meta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Meta) TableName() string {
	return "schema_meta"
}

// Stamp records Version and returns the version stored before, or "" on a fresh database.
func Stamp(ctx context.Context, db *gorm.DB) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if db == nil {
		return "", errors.New("db is required")
	}

	var previous string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Meta
		err := tx.Where("key = ?", versionKey).Take(&row).Error
		switch {
		case err == nil:
			previous = row.Value
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&Meta{Key: versionKey, Value: Version}).Error
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}
