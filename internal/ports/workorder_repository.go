package ports

import (
	"context"
	"errors"

	"maintflow/internal/domain/workorder"
)

var (
	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrPartLineNotFound  = errors.New("part line not found")
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrStaleWorkOrder means the compare-and-set on (status, version) matched no row.
	ErrStaleWorkOrder = errors.New("work order changed since it was read")
)

type WorkOrderFilter struct {
	Statuses        []workorder.Status
	Discipline      workorder.Discipline
	TechnicianID    string
	TeamID          string
	IncludeTerminal bool
	Limit           int
}

// HistoryEvent is a history row joined with the identity of its order,
// as handed to notification sinks.
type HistoryEvent struct {
	workorder.HistoryEntry
	Number     string
	Discipline workorder.Discipline
}

type WorkOrderReadRepository interface {
	GetWorkOrder(ctx context.Context, id uint64) (workorder.WorkOrder, error)
	// ListWorkOrders returns orders in queue order (priority desc, due date, requested at).
	ListWorkOrders(ctx context.Context, filter WorkOrderFilter) ([]workorder.WorkOrder, error)
	ListPartLines(ctx context.Context, workOrderID uint64) ([]workorder.PartLine, error)
	GetPartLine(ctx context.Context, lineID uint64) (workorder.PartLine, error)
	GetExecution(ctx context.Context, workOrderID uint64) (workorder.Execution, error)
	ListHistory(ctx context.Context, workOrderID uint64) ([]workorder.HistoryEntry, error)
	ListHistoryAfter(ctx context.Context, afterSeq uint64, limit int) ([]HistoryEvent, error)
	// FindScheduleOverlaps lists other active orders of technicianID whose window overlaps window.
	FindScheduleOverlaps(ctx context.Context, technicianID string, window workorder.ScheduleWindow, excludeID uint64) ([]workorder.WorkOrder, error)
}

type WorkOrderRepository interface {
	WorkOrderReadRepository
	// GetWorkOrderForUpdate reads the order holding a row lock where the store supports one.
	GetWorkOrderForUpdate(ctx context.Context, id uint64) (workorder.WorkOrder, error)
	CreateWorkOrder(ctx context.Context, wo workorder.WorkOrder) (workorder.WorkOrder, error)
	// UpdateWorkOrder writes wo only if the stored row still has expectedStatus and expectedVersion.
	// It returns ErrStaleWorkOrder otherwise.
	UpdateWorkOrder(ctx context.Context, wo workorder.WorkOrder, expectedStatus workorder.Status, expectedVersion int64) error
	CreatePartLine(ctx context.Context, line workorder.PartLine) (workorder.PartLine, error)
	UpdatePartLine(ctx context.Context, line workorder.PartLine) error
	SaveExecution(ctx context.Context, exec workorder.Execution) error
	// AppendHistory inserts one row. There is deliberately no update or delete.
	AppendHistory(ctx context.Context, entry workorder.HistoryEntry) (workorder.HistoryEntry, error)
}
