package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/infrastructure/persistence/sqlite/model"
	"maintflow/internal/ports"
)

// CatalogRepository implements ports.PartCatalog on the catalog_parts table.
type CatalogRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.PartCatalog = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *CatalogRepository) GetPart(ctx context.Context, id uint64) (ports.CatalogPart, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.CatalogPart{}, err
	}

	var row model.CatalogPart
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CatalogPart{}, ports.ErrCatalogPartNotFound
		}
		return ports.CatalogPart{}, errs.Wrap(err, "query catalog part")
	}
	return mapCatalogPart(row), nil
}

func (r *CatalogRepository) ListParts(ctx context.Context) ([]ports.CatalogPart, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CatalogPart
	if err := db.Order("sku asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query catalog parts")
	}
	items := make([]ports.CatalogPart, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCatalogPart(row))
	}
	return items, nil
}

// UpsertPart creates or replaces a part keyed by SKU.
func (r *CatalogRepository) UpsertPart(ctx context.Context, part ports.CatalogPart) (ports.CatalogPart, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.CatalogPart{}, err
	}

	sku := strings.TrimSpace(part.SKU)
	if sku == "" {
		return ports.CatalogPart{}, workorder.Validationf("part sku is required")
	}
	if part.AvailableQty < 0 || part.UnitCost < 0 {
		return ports.CatalogPart{}, workorder.Validationf("part %s: quantity and unit cost must not be negative", sku)
	}

	row := model.CatalogPart{
		SKU:               sku,
		Name:              strings.TrimSpace(part.Name),
		UnitCost:          int64(part.UnitCost),
		AvailableQuantity: part.AvailableQty,
		UpdatedAt:         r.now(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sku"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":               row.Name,
			"unit_cost":          row.UnitCost,
			"available_quantity": row.AvailableQuantity,
			"updated_at":         row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return ports.CatalogPart{}, errs.Wrap(err, "upsert catalog part")
	}

	var stored model.CatalogPart
	if err := db.Where("sku = ?", sku).Take(&stored).Error; err != nil {
		return ports.CatalogPart{}, errs.Wrap(err, "reload catalog part")
	}
	return mapCatalogPart(stored), nil
}

func (r *CatalogRepository) Reserve(ctx context.Context, partID uint64, qty int64) error {
	if qty <= 0 {
		return workorder.Validationf("reserve quantity must be positive")
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CatalogPart{}).
		Where("id = ? AND available_quantity >= ?", partID, qty).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity - ?", qty),
			"updated_at":         r.now(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "reserve catalog stock")
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetPart(ctx, partID); err != nil {
			return err
		}
		return ports.ErrStockExhausted
	}
	return nil
}

func (r *CatalogRepository) Release(ctx context.Context, partID uint64, qty int64) error {
	if qty <= 0 {
		return nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CatalogPart{}).
		Where("id = ?", partID).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
			"updated_at":         r.now(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "release catalog stock")
	}
	if result.RowsAffected == 0 {
		return ports.ErrCatalogPartNotFound
	}
	return nil
}

func mapCatalogPart(row model.CatalogPart) ports.CatalogPart {
	return ports.CatalogPart{
		ID:           row.ID,
		SKU:          row.SKU,
		Name:         row.Name,
		UnitCost:     workorder.Money(row.UnitCost),
		AvailableQty: row.AvailableQuantity,
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}
