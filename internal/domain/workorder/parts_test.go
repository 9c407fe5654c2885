package workorder

import (
	"errors"
	"testing"
	"time"
)

func catalogID(id uint64) *uint64 { return &id }

func TestPartLineLifecycle(t *testing.T) {
	now := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	line, err := NewPartLine(1, catalogID(9), "bearing", 4, 1250, "planner", now)
	if err != nil {
		t.Fatalf("NewPartLine() error = %v", err)
	}
	if line.TotalCost != 5000 {
		t.Fatalf("planned TotalCost = %d", line.TotalCost)
	}

	if err := line.Reserve(5, "planner", now); !errors.Is(err, ErrValidation) {
		t.Fatalf("Reserve(5) error = %v, want ErrValidation", err)
	}
	if err := line.Reserve(3, "planner", now); err != nil {
		t.Fatalf("Reserve(3) error = %v", err)
	}
	if line.TotalCost != 3750 {
		t.Fatalf("reserved TotalCost = %d", line.TotalCost)
	}

	if _, err := line.Use(1, "tech", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Use() before issue error = %v, want ErrInvalidTransition", err)
	}
	if err := line.Issue("store", now); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	leftover, err := line.Use(2, "tech", now)
	if err != nil {
		t.Fatalf("Use() error = %v", err)
	}
	if leftover != 1 {
		t.Fatalf("Use() leftover = %d, want 1", leftover)
	}
	if line.TotalCost != 2500 {
		t.Fatalf("used TotalCost = %d", line.TotalCost)
	}

	if err := line.Return(3, "tech", now); !errors.Is(err, ErrValidation) {
		t.Fatalf("Return(3) error = %v, want ErrValidation", err)
	}
	if err := line.Return(1, "tech", now); err != nil {
		t.Fatalf("Return(1) error = %v", err)
	}
	if line.Status != PartReturned || line.TotalCost != 1250 {
		t.Fatalf("returned line = %+v", line)
	}
}

func TestPartLineRelease(t *testing.T) {
	now := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	line, _ := NewPartLine(1, catalogID(9), "", 5, 100, "planner", now)
	_ = line.Reserve(5, "planner", now)

	released, err := line.Release("planner", now)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if released != 5 || line.Status != PartPlanned || line.ReservedQty != 0 {
		t.Fatalf("released = %d line = %+v", released, line)
	}

	_ = line.Reserve(5, "planner", now)
	_ = line.Issue("store", now)
	if _, err := line.Release("planner", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Release() of issued line error = %v, want ErrInvalidTransition", err)
	}
}

func TestPartsCostAggregates(t *testing.T) {
	now := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	a, _ := NewPartLine(1, catalogID(1), "", 3, 1000, "p", now)
	b, _ := NewPartLine(1, catalogID(2), "", 1, 5000, "p", now)
	lines := []PartLine{a, b}

	if got := EstimatedPartsCost(lines); got != 8000 {
		t.Fatalf("EstimatedPartsCost() = %s, want 80.00", got)
	}
	if got := ActualPartsCost(lines); got != 0 {
		t.Fatalf("ActualPartsCost() = %s, want 0", got)
	}

	wo := WorkOrder{Estimated: Costs{LaborCost: 12000}, PriorityScore: 40}
	wo.RecomputeCosts(lines)
	if wo.Estimated.TotalCost != 20000 {
		t.Fatalf("Estimated.TotalCost = %s", wo.Estimated.TotalCost)
	}
	if err := wo.CheckInvariants(lines); err != nil {
		t.Fatalf("CheckInvariants() error = %v", err)
	}

	wo.Estimated.TotalCost++
	if err := wo.CheckInvariants(lines); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("CheckInvariants() error = %v, want ErrInvariantViolation", err)
	}
}

func TestNonCatalogLineNeedsDescription(t *testing.T) {
	now := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	if _, err := NewPartLine(1, nil, " ", 1, 100, "p", now); !errors.Is(err, ErrValidation) {
		t.Fatalf("NewPartLine() error = %v, want ErrValidation", err)
	}
}
