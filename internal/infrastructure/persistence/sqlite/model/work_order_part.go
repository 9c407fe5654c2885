package model

import "time"

type WorkOrderPart struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	WorkOrderID   uint64     `gorm:"column:work_order_id;not null;index"`
	CatalogPartID *uint64    `gorm:"column:catalog_part_id;index"`
	Description   string     `gorm:"column:description;type:text;not null"`
	EstimatedQty  int64      `gorm:"column:estimated_qty;not null"`
	ReservedQty   int64      `gorm:"column:reserved_qty;not null;default:0"`
	UsedQty       int64      `gorm:"column:used_qty;not null;default:0"`
	ReturnedQty   int64      `gorm:"column:returned_qty;not null;default:0"`
	UnitCost      int64      `gorm:"column:unit_cost;not null"`
	TotalCost     int64      `gorm:"column:total_cost;not null"`
	Status        string     `gorm:"column:status;type:text;not null"`
	LastChangedBy string     `gorm:"column:last_changed_by;type:text;not null"`
	LastChangedAt time.Time  `gorm:"column:last_changed_at;not null"`
	ReservedBy    string     `gorm:"column:reserved_by;type:text;not null;default:''"`
	ReservedAt    *time.Time `gorm:"column:reserved_at"`
	IssuedBy      string     `gorm:"column:issued_by;type:text;not null;default:''"`
	IssuedAt      *time.Time `gorm:"column:issued_at"`
	UsedBy        string     `gorm:"column:used_by;type:text;not null;default:''"`
	UsedAt        *time.Time `gorm:"column:used_at"`
	ReturnedBy    string     `gorm:"column:returned_by;type:text;not null;default:''"`
	ReturnedAt    *time.Time `gorm:"column:returned_at"`
}

func (WorkOrderPart) TableName() string {
	return "work_order_parts"
}
