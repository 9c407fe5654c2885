package ports

import (
	"context"
	"errors"
	"time"

	"maintflow/internal/domain/workorder"
)

var (
	ErrCatalogPartNotFound = errors.New("catalog part not found")
	ErrStockExhausted      = errors.New("catalog stock exhausted")
)

type CatalogPart struct {
	ID           uint64
	SKU          string
	Name         string
	UnitCost     workorder.Money
	AvailableQty int64
	UpdatedAt    time.Time
}

// PartCatalog owns available stock. Reserve and Release are single atomic
// statements so two orders can never over-reserve the same counter.
type PartCatalog interface {
	GetPart(ctx context.Context, id uint64) (CatalogPart, error)
	ListParts(ctx context.Context) ([]CatalogPart, error)
	UpsertPart(ctx context.Context, part CatalogPart) (CatalogPart, error)
	// Reserve decrements available stock by qty or returns ErrStockExhausted leaving it untouched.
	Reserve(ctx context.Context, partID uint64, qty int64) error
	Release(ctx context.Context, partID uint64, qty int64) error
}
