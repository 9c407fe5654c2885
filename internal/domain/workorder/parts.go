package workorder

import (
	"fmt"
	"strings"
	"time"
)

type PartStatus string

const (
	PartPlanned  PartStatus = "planned"
	PartReserved PartStatus = "reserved"
	PartIssued   PartStatus = "issued"
	PartUsed     PartStatus = "used"
	PartReturned PartStatus = "returned"
)

func ParsePartStatus(raw string) (PartStatus, error) {
	switch s := PartStatus(strings.TrimSpace(raw)); s {
	case PartPlanned, PartReserved, PartIssued, PartUsed, PartReturned:
		return s, nil
	}
	return "", validationf("unknown part status %q", raw)
}

// PartLine is one parts requirement of a work order.
type PartLine struct {
	ID            uint64
	WorkOrderID   uint64
	CatalogPartID *uint64
	Description   string
	EstimatedQty  int64
	ReservedQty   int64
	UsedQty       int64
	ReturnedQty   int64
	UnitCost      Money
	TotalCost     Money
	Status        PartStatus
	LastChangedBy string
	LastChangedAt time.Time
	ReservedBy    string
	ReservedAt    *time.Time
	IssuedBy      string
	IssuedAt      *time.Time
	UsedBy        string
	UsedAt        *time.Time
	ReturnedBy    string
	ReturnedAt    *time.Time
}

// IsStocked reports whether the line draws on the shared catalog counter.
func (p *PartLine) IsStocked() bool {
	return p.CatalogPartID != nil
}

// RelevantQty is the quantity priced for the line's current status.
func (p *PartLine) RelevantQty() int64 {
	switch p.Status {
	case PartReserved, PartIssued:
		return p.ReservedQty
	case PartUsed:
		return p.UsedQty
	case PartReturned:
		return p.UsedQty - p.ReturnedQty
	}
	return p.EstimatedQty
}

func (p *PartLine) refreshTotal() {
	p.TotalCost = p.UnitCost.Times(p.RelevantQty())
}

func (p *PartLine) stamp(actor string, now time.Time) {
	p.LastChangedBy = actor
	p.LastChangedAt = now
	p.refreshTotal()
}

func (p *PartLine) illegal(op string) error {
	return &Error{
		Kind:        KindInvalidTransition,
		WorkOrderID: p.WorkOrderID,
		Detail:      fmt.Sprintf("cannot %s part line %d in status %s", op, p.ID, p.Status),
	}
}

// NewPartLine validates a planned line. unitCost must already be resolved from the catalog or the request.
func NewPartLine(workOrderID uint64, catalogPartID *uint64, description string, estimatedQty int64, unitCost Money, actor string, now time.Time) (PartLine, error) {
	if estimatedQty <= 0 {
		return PartLine{}, validationf("estimated quantity must be positive, got %d", estimatedQty)
	}
	if unitCost < 0 {
		return PartLine{}, validationf("unit cost must not be negative")
	}
	if catalogPartID == nil && strings.TrimSpace(description) == "" {
		return PartLine{}, validationf("non-catalog part line requires a description")
	}
	line := PartLine{
		WorkOrderID:   workOrderID,
		CatalogPartID: catalogPartID,
		Description:   strings.TrimSpace(description),
		EstimatedQty:  estimatedQty,
		UnitCost:      unitCost,
		Status:        PartPlanned,
	}
	line.stamp(actor, now)
	return line, nil
}

// Reserve moves planned to reserved. The caller must decrement catalog stock
// by qty in the same transaction when the line is stocked.
func (p *PartLine) Reserve(qty int64, actor string, now time.Time) error {
	if p.Status != PartPlanned {
		return p.illegal("reserve")
	}
	if qty <= 0 {
		return validationf("reserve quantity must be positive, got %d", qty)
	}
	if qty > p.EstimatedQty {
		return validationf("reserve quantity %d exceeds estimated quantity %d", qty, p.EstimatedQty)
	}
	p.ReservedQty = qty
	p.Status = PartReserved
	p.ReservedBy = actor
	at := now
	p.ReservedAt = &at
	p.stamp(actor, now)
	return nil
}

// Release undoes a reservation that was never issued and returns the quantity to hand back to stock.
func (p *PartLine) Release(actor string, now time.Time) (int64, error) {
	if p.Status != PartReserved {
		return 0, p.illegal("release")
	}
	released := p.ReservedQty
	p.ReservedQty = 0
	p.Status = PartPlanned
	p.ReservedBy = ""
	p.ReservedAt = nil
	p.stamp(actor, now)
	return released, nil
}

func (p *PartLine) Issue(actor string, now time.Time) error {
	if p.Status != PartReserved {
		return p.illegal("issue")
	}
	p.Status = PartIssued
	p.IssuedBy = actor
	at := now
	p.IssuedAt = &at
	p.stamp(actor, now)
	return nil
}

// Use records consumption and returns the unused remainder to hand back to stock.
func (p *PartLine) Use(qty int64, actor string, now time.Time) (int64, error) {
	if p.Status != PartIssued {
		return 0, p.illegal("use")
	}
	if qty < 0 {
		return 0, validationf("used quantity must not be negative, got %d", qty)
	}
	if qty > p.ReservedQty {
		return 0, validationf("used quantity %d exceeds issued quantity %d", qty, p.ReservedQty)
	}
	p.UsedQty = qty
	p.Status = PartUsed
	p.UsedBy = actor
	at := now
	p.UsedAt = &at
	p.stamp(actor, now)
	return p.ReservedQty - qty, nil
}

// Return hands back qty of the used quantity; the caller increments stock by qty.
func (p *PartLine) Return(qty int64, actor string, now time.Time) error {
	if p.Status != PartUsed {
		return p.illegal("return")
	}
	if qty <= 0 {
		return validationf("return quantity must be positive, got %d", qty)
	}
	if qty > p.UsedQty {
		return validationf("return quantity %d exceeds used quantity %d", qty, p.UsedQty)
	}
	p.ReturnedQty = qty
	p.Status = PartReturned
	p.ReturnedBy = actor
	at := now
	p.ReturnedAt = &at
	p.stamp(actor, now)
	return nil
}

func EstimatedPartsCost(lines []PartLine) Money {
	var total Money
	for i := range lines {
		total += lines[i].UnitCost.Times(lines[i].EstimatedQty)
	}
	return total
}

// ActualPartsCost counts consumed quantities only.
func ActualPartsCost(lines []PartLine) Money {
	var total Money
	for i := range lines {
		switch lines[i].Status {
		case PartUsed, PartReturned:
			total += lines[i].UnitCost.Times(lines[i].RelevantQty())
		}
	}
	return total
}

// StockRelease records a quantity handed back to the catalog.
type StockRelease struct {
	PartLineID    uint64 `json:"part_line_id"`
	CatalogPartID uint64 `json:"catalog_part_id"`
	Quantity      int64  `json:"quantity"`
}
