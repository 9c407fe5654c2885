package model

import (
	"time"

	"gorm.io/datatypes"

	"maintflow/internal/domain/workorder"
)

// WorkOrderStatusHistory is append-only. Seq doubles as the relay cursor.
type WorkOrderStatusHistory struct {
	Seq         uint64                                           `gorm:"column:seq;primaryKey;autoIncrement"`
	EventUID    string                                           `gorm:"column:event_uid;type:text;not null;uniqueIndex"`
	WorkOrderID uint64                                           `gorm:"column:work_order_id;not null;index"`
	FromStatus  *string                                          `gorm:"column:from_status;type:text"`
	ToStatus    string                                           `gorm:"column:to_status;type:text;not null"`
	Actor       string                                           `gorm:"column:actor;type:text;not null"`
	Reason      string                                           `gorm:"column:reason;type:text;not null;default:''"`
	Metadata    datatypes.JSONType[workorder.TransitionMetadata] `gorm:"column:metadata"`
	OccurredAt  time.Time                                        `gorm:"column:occurred_at;not null;index"`
}

func (WorkOrderStatusHistory) TableName() string {
	return "work_order_status_history"
}
