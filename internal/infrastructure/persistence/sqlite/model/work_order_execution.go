package model

import (
	"time"

	"gorm.io/datatypes"

	"maintflow/internal/domain/workorder"
)

// WorkOrderExecution has at most one row per order. Durations are kept in
// nanoseconds so pause totals survive every round trip exactly.
type WorkOrderExecution struct {
	WorkOrderID     uint64                                  `gorm:"column:work_order_id;primaryKey"`
	Executor        string                                  `gorm:"column:executor;type:text;not null"`
	Status          string                                  `gorm:"column:status;type:text;not null"`
	StartedAt       *time.Time                              `gorm:"column:started_at"`
	PausedAt        *time.Time                              `gorm:"column:paused_at"`
	ResumedAt       *time.Time                              `gorm:"column:resumed_at"`
	CompletedAt     *time.Time                              `gorm:"column:completed_at"`
	TotalPauseNanos int64                                   `gorm:"column:total_pause_ns;not null;default:0"`
	PauseCount      int                                     `gorm:"column:pause_count;not null;default:0"`
	Checklist       datatypes.JSONType[workorder.Checklist] `gorm:"column:checklist"`
	ActualNanos     int64                                   `gorm:"column:actual_ns;not null;default:0"`
	DurationAnomaly bool                                    `gorm:"column:duration_anomaly;not null;default:false"`
	UpdatedAt       time.Time                               `gorm:"column:updated_at;not null"`
}

func (WorkOrderExecution) TableName() string {
	return "work_order_executions"
}
