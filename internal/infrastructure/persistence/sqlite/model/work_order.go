package model

import (
	"time"

	"gorm.io/datatypes"

	"maintflow/internal/domain/workorder"
)

type WorkOrder struct {
	ID          uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	Number      *string `gorm:"column:number;type:text;uniqueIndex"`
	Discipline  string  `gorm:"column:discipline;type:text;not null;index"`
	Category    string  `gorm:"column:category;type:text;not null;default:''"`
	Type        string  `gorm:"column:type;type:text;not null;default:''"`
	Title       string  `gorm:"column:title;type:text;not null"`
	Description string  `gorm:"column:description;type:text;not null;default:''"`

	Priority      string `gorm:"column:priority;type:text;not null"`
	PriorityScore int    `gorm:"column:priority_score;not null;index"`
	Status        string `gorm:"column:status;type:text;not null;index"`
	Version       int64  `gorm:"column:version;not null;default:1"`

	TargetKind string `gorm:"column:target_kind;type:text;not null"`
	TargetID   string `gorm:"column:target_id;type:text;not null"`
	PlantID    string `gorm:"column:plant_id;type:text;not null;default:''"`
	AreaID     string `gorm:"column:area_id;type:text;not null;default:''"`
	SectorID   string `gorm:"column:sector_id;type:text;not null;default:''"`

	RequestedBy string     `gorm:"column:requested_by;type:text;not null"`
	RequestedAt time.Time  `gorm:"column:requested_at;not null"`
	ApprovedBy  *string    `gorm:"column:approved_by;type:text"`
	ApprovedAt  *time.Time `gorm:"column:approved_at"`
	RejectedBy  *string    `gorm:"column:rejected_by;type:text"`
	RejectedAt  *time.Time `gorm:"column:rejected_at"`
	PlannedBy   *string    `gorm:"column:planned_by;type:text"`
	PlannedAt   *time.Time `gorm:"column:planned_at"`
	ScheduledBy *string    `gorm:"column:scheduled_by;type:text"`
	ScheduledAt *time.Time `gorm:"column:scheduled_at"`
	VerifiedBy  *string    `gorm:"column:verified_by;type:text"`
	VerifiedAt  *time.Time `gorm:"column:verified_at"`
	ClosedBy    *string    `gorm:"column:closed_by;type:text"`
	ClosedAt    *time.Time `gorm:"column:closed_at"`
	CancelledBy *string    `gorm:"column:cancelled_by;type:text"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	EstimatedHours     float64 `gorm:"column:estimated_hours;not null;default:0"`
	EstimatedPartsCost int64   `gorm:"column:estimated_parts_cost;not null;default:0"`
	EstimatedLaborCost int64   `gorm:"column:estimated_labor_cost;not null;default:0"`
	EstimatedTotalCost int64   `gorm:"column:estimated_total_cost;not null;default:0"`
	ActualHours        float64 `gorm:"column:actual_hours;not null;default:0"`
	ActualPartsCost    int64   `gorm:"column:actual_parts_cost;not null;default:0"`
	ActualLaborCost    int64   `gorm:"column:actual_labor_cost;not null;default:0"`
	ActualTotalCost    int64   `gorm:"column:actual_total_cost;not null;default:0"`

	ActualStartDate  *time.Time `gorm:"column:actual_start_date"`
	ActualEndDate    *time.Time `gorm:"column:actual_end_date"`
	RequestedDueDate *time.Time `gorm:"column:requested_due_date"`
	ScheduledStart   *time.Time `gorm:"column:scheduled_start"`
	ScheduledEnd     *time.Time `gorm:"column:scheduled_end"`

	TeamID       string `gorm:"column:team_id;type:text;not null;default:''"`
	TechnicianID string `gorm:"column:technician_id;type:text;not null;default:'';index"`

	SourceType      string  `gorm:"column:source_type;type:text;not null;default:''"`
	SourceID        string  `gorm:"column:source_id;type:text;not null;default:''"`
	LinkWorkOrderID *uint64 `gorm:"column:link_work_order_id"`
	LinkKind        string  `gorm:"column:link_kind;type:text;not null;default:''"`

	Safety      datatypes.JSONType[workorder.SafetyRequirements] `gorm:"column:safety"`
	Tags        datatypes.JSONSlice[string]                      `gorm:"column:tags"`
	TemplateRef string                                           `gorm:"column:template_ref;type:text;not null;default:''"`

	RejectionReason    string `gorm:"column:rejection_reason;type:text;not null;default:''"`
	CancellationReason string `gorm:"column:cancellation_reason;type:text;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}
