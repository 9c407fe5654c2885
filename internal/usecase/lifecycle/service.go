package lifecycle

import (
	"context"
	"time"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
)

// Metrics receives lifecycle counters. Implementations must be safe for concurrent use.
type Metrics interface {
	RecordTransition(ctx context.Context, from string, to workorder.Status)
	RecordConflict(ctx context.Context)
	RecordEscalation(ctx context.Context)
	RecordStockRejection(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordTransition(context.Context, string, workorder.Status) {}
func (nopMetrics) RecordConflict(context.Context)                             {}
func (nopMetrics) RecordEscalation(context.Context)                           {}
func (nopMetrics) RecordStockRejection(context.Context)                       {}

type Options struct {
	// LaborRate is the hourly labor rate used when a plan does not state its labor cost.
	LaborRate            workorder.Money
	PreventDoubleBooking bool
}

type Service struct {
	repo       ports.WorkOrderRepository
	catalog    ports.PartCatalog
	uow        ports.UnitOfWork
	authorizer ports.Authorizer
	directory  ports.TargetDirectory
	metrics    Metrics
	now        func() time.Time

	laborRate            workorder.Money
	preventDoubleBooking bool
}

type Dependencies struct {
	Repo       ports.WorkOrderRepository
	Catalog    ports.PartCatalog
	UnitOfWork ports.UnitOfWork
	Authorizer ports.Authorizer
	Directory  ports.TargetDirectory
	Metrics    Metrics
}

// NewService wires the lifecycle with its collaborators. Metrics is optional.
func NewService(deps Dependencies, opts Options) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		repo:                 deps.Repo,
		catalog:              deps.Catalog,
		uow:                  deps.UnitOfWork,
		authorizer:           deps.Authorizer,
		directory:            deps.Directory,
		metrics:              metrics,
		now:                  func() time.Time { return time.Now().UTC() },
		laborRate:            opts.LaborRate,
		preventDoubleBooking: opts.PreventDoubleBooking,
	}
}

// Result is returned by every transition. Event is nil and Escalation set when
// an approval has to be routed to a higher authority.
type Result struct {
	WorkOrder  workorder.WorkOrder
	Event      *workorder.HistoryEntry
	Escalation *workorder.Escalation
}

type CreateInput struct {
	Actor         string
	Discipline    string
	Category      string
	Type          string
	Title         string
	Description   string
	Priority      string
	PriorityScore *int

	TargetKind string
	TargetID   string

	RequestedDueDate *time.Time
	EstimatedHours   float64
	// EstimatedLaborCost overrides hours times the configured labor rate.
	EstimatedLaborCost *workorder.Money

	Source   workorder.Source
	LinkRef  string
	LinkKind string
	Safety   workorder.SafetyRequirements
	Tags     []string
}

type ApproveInput struct {
	Ref             string
	Actor           string
	Reason          string
	ExpectedVersion *int64
}

type RejectInput struct {
	Ref             string
	Actor           string
	Reason          string
	ExpectedVersion *int64
}

type PartRequest struct {
	CatalogPartID *uint64
	Description   string
	Quantity      int64
	// UnitCost is required for non-catalog lines and overrides the catalog price otherwise.
	UnitCost *workorder.Money
}

type PlanInput struct {
	Ref             string
	Actor           string
	EstimatedHours  float64
	Schedule        workorder.ScheduleWindow
	Assignment      workorder.Assignment
	Parts           []PartRequest
	LaborCost       *workorder.Money
	TemplateRef     string
	ExpectedVersion *int64
}

type ScheduleInput struct {
	Ref             string
	Actor           string
	Assignment      *workorder.Assignment
	ExpectedVersion *int64
}

// ExecutionInput drives start, pause, resume, verify and close.
type ExecutionInput struct {
	Ref             string
	Actor           string
	Reason          string
	ExpectedVersion *int64
}

type CompleteInput struct {
	Ref             string
	Actor           string
	Checklist       workorder.Checklist
	ExpectedVersion *int64
}

type CancelInput struct {
	Ref             string
	Actor           string
	Reason          string
	ExpectedVersion *int64
}

type PartInput struct {
	Ref             string
	LineID          uint64
	Actor           string
	Quantity        int64
	ExpectedVersion *int64
}

type PartResult struct {
	WorkOrder workorder.WorkOrder
	Line      workorder.PartLine
}

// Details is the read model returned by Get.
type Details struct {
	WorkOrder workorder.WorkOrder
	Parts     []workorder.PartLine
	Execution *workorder.Execution
}

type Timeline struct {
	WorkOrder workorder.WorkOrder
	Entries   []workorder.HistoryEntry
	Path      []workorder.Status
}
