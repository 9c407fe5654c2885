package model

import "time"

type CatalogPart struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	SKU               string    `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Name              string    `gorm:"column:name;type:text;not null"`
	UnitCost          int64     `gorm:"column:unit_cost;not null"`
	AvailableQuantity int64     `gorm:"column:available_quantity;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null"`
}

func (CatalogPart) TableName() string {
	return "catalog_parts"
}
