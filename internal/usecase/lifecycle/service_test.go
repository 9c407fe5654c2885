package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/infrastructure/persistence/sqlite/model"
	"maintflow/internal/infrastructure/persistence/sqlite/repository"
	"maintflow/internal/infrastructure/persistence/sqlite/uow"
	"maintflow/internal/ports"
)

var baseTime = time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)

type fakeAuthorizer struct {
	thresholds map[string]workorder.Threshold
	scopes     map[string]ports.Scope
	denied     map[string]bool
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, req ports.AuthorizationRequest) (ports.Grant, error) {
	if f.denied[req.Actor+":"+string(req.Action)] {
		return ports.Grant{Allowed: false, Reason: "role lacks action"}, nil
	}
	scope, err := f.ResolveScope(ctx, req.Actor)
	if err != nil {
		return ports.Grant{}, err
	}
	grant := ports.Grant{Allowed: true, Scope: scope}
	if threshold, ok := f.thresholds[req.Actor]; ok && req.Action == ports.ActionApprove {
		grant.Threshold = &threshold
	}
	return grant, nil
}

func (f *fakeAuthorizer) ResolveScope(_ context.Context, actor string) (ports.Scope, error) {
	if scope, ok := f.scopes[actor]; ok {
		return scope, nil
	}
	return ports.Scope{Global: true}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) Resolve(_ context.Context, _ workorder.Discipline, target workorder.TargetRef) (workorder.Location, error) {
	switch target.ID {
	case "PUMP-7":
		return workorder.Location{PlantID: "P1", AreaID: "A1", SectorID: "S1"}, nil
	case "FAN-2":
		return workorder.Location{PlantID: "P2", AreaID: "A9"}, nil
	}
	return workorder.Location{}, workorder.Validationf("unknown target %s", target.ID)
}

type countingMetrics struct {
	transitions atomic.Int64
	conflicts   atomic.Int64
	escalations atomic.Int64
	stock       atomic.Int64
}

func (m *countingMetrics) RecordTransition(context.Context, string, workorder.Status) {
	m.transitions.Add(1)
}
func (m *countingMetrics) RecordConflict(context.Context)       { m.conflicts.Add(1) }
func (m *countingMetrics) RecordEscalation(context.Context)     { m.escalations.Add(1) }
func (m *countingMetrics) RecordStockRejection(context.Context) { m.stock.Add(1) }

type harness struct {
	db      *gorm.DB
	svc     *Service
	repo    *repository.WorkOrderRepository
	catalog *repository.CatalogRepository
	authz   *fakeAuthorizer
	metrics *countingMetrics
	clock   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "lifecycle.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	h := &harness{
		db:      db,
		repo:    repository.NewWorkOrderRepository(db),
		catalog: repository.NewCatalogRepository(db),
		authz: &fakeAuthorizer{
			thresholds: map[string]workorder.Threshold{
				"sup-1": {MaxCost: 500000, MaxPriorityScore: 80},
				"mgr-1": {MaxCost: 10000000, MaxPriorityScore: 100},
			},
			scopes: map[string]ports.Scope{
				"outsider": {Plants: []string{"P9"}},
				"crew-a-1": {Global: true, Teams: []string{"crew-a"}},
			},
			denied: map[string]bool{},
		},
		metrics: &countingMetrics{},
		clock:   baseTime,
	}
	h.svc = NewService(Dependencies{
		Repo:       h.repo,
		Catalog:    h.catalog,
		UnitOfWork: uow.NewUnitOfWork(db),
		Authorizer: h.authz,
		Directory:  fakeDirectory{},
		Metrics:    h.metrics,
	}, Options{LaborRate: 6000, PreventDoubleBooking: true})
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) create(t *testing.T, priority string) workorder.WorkOrder {
	t.Helper()
	res, err := h.svc.Create(context.Background(), CreateInput{
		Actor:      "req-1",
		Title:      "Pump seal leaking",
		Priority:   priority,
		TargetKind: "asset",
		TargetID:   "PUMP-7",
		Tags:       []string{"Pump", "pump"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return res.WorkOrder
}

func (h *harness) approve(t *testing.T, ref string) workorder.WorkOrder {
	t.Helper()
	res, err := h.svc.Approve(context.Background(), ApproveInput{Ref: ref, Actor: "mgr-1"})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	return res.WorkOrder
}

func (h *harness) addPart(t *testing.T, sku string, unitCost workorder.Money, qty int64) ports.CatalogPart {
	t.Helper()
	part, err := h.svc.AddCatalogPart(context.Background(), ports.CatalogPart{SKU: sku, Name: sku, UnitCost: unitCost, AvailableQty: qty})
	if err != nil {
		t.Fatalf("AddCatalogPart() error = %v", err)
	}
	return part
}

func (h *harness) available(t *testing.T, id uint64) int64 {
	t.Helper()
	part, err := h.catalog.GetPart(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPart() error = %v", err)
	}
	return part.AvailableQty
}

func (h *harness) plan(t *testing.T, ref string, technician string, window workorder.ScheduleWindow, parts ...PartRequest) workorder.WorkOrder {
	t.Helper()
	res, err := h.svc.Plan(context.Background(), PlanInput{
		Ref:            ref,
		Actor:          "planner-1",
		EstimatedHours: 2,
		Schedule:       window,
		Assignment:     workorder.Assignment{TechnicianID: technician},
		Parts:          parts,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return res.WorkOrder
}

func money(v workorder.Money) *workorder.Money { return &v }
func version(v int64) *int64                  { return &v }
func partID(v uint64) *uint64                 { return &v }

func fullChecklist() workorder.Checklist {
	return workorder.Checklist{WorkPerformed: true, SafetyVerified: true, AreaCleaned: true, ToolsReturned: true}
}

func window(startHour, endHour int) workorder.ScheduleWindow {
	day := baseTime.Truncate(24 * time.Hour)
	return workorder.ScheduleWindow{
		Start: day.Add(24*time.Hour + time.Duration(startHour)*time.Hour),
		End:   day.Add(24*time.Hour + time.Duration(endHour)*time.Hour),
	}
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created := h.create(t, "normal")
	if created.Status != workorder.StatusRequested || created.PriorityScore != 40 || created.Version != 1 {
		t.Fatalf("Create() = %+v", created)
	}
	if created.Location.PlantID != "P1" || len(created.Tags) != 1 {
		t.Fatalf("Create() location=%+v tags=%v", created.Location, created.Tags)
	}
	ref := created.Number

	h.advance(time.Minute)
	h.approve(t, ref)

	bearing := h.addPart(t, "BRG-6204", 1000, 10)
	h.advance(time.Minute)
	planned := h.plan(t, ref, "tech-1", window(9, 11),
		PartRequest{CatalogPartID: partID(bearing.ID), Quantity: 3},
		PartRequest{Description: "lip seal", Quantity: 1, UnitCost: money(5000)},
	)
	if planned.Estimated.PartsCost != 8000 {
		t.Fatalf("estimated parts cost = %s, want 80.00", planned.Estimated.PartsCost)
	}
	if planned.Estimated.LaborCost != 12000 || planned.Estimated.TotalCost != 20000 {
		t.Fatalf("estimated labor=%s total=%s", planned.Estimated.LaborCost, planned.Estimated.TotalCost)
	}
	if got := h.available(t, bearing.ID); got != 7 {
		t.Fatalf("available after plan = %d, want 7", got)
	}

	h.advance(time.Minute)
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: ref, Actor: "planner-1"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	details, err := h.svc.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if details.Execution == nil || details.Execution.Status != workorder.ExecutionAssigned {
		t.Fatalf("Get() execution = %+v", details.Execution)
	}
	var bearingLine workorder.PartLine
	for _, line := range details.Parts {
		if line.IsStocked() {
			bearingLine = line
		}
	}

	h.advance(time.Hour)
	start := h.clock
	if _, err := h.svc.StartExecution(ctx, ExecutionInput{Ref: ref, Actor: "tech-1"}); err != nil {
		t.Fatalf("StartExecution() error = %v", err)
	}
	if _, err := h.svc.IssuePart(ctx, PartInput{Ref: ref, LineID: bearingLine.ID, Actor: "tech-1"}); err != nil {
		t.Fatalf("IssuePart() error = %v", err)
	}
	used, err := h.svc.UsePart(ctx, PartInput{Ref: ref, LineID: bearingLine.ID, Actor: "tech-1", Quantity: 3})
	if err != nil {
		t.Fatalf("UsePart() error = %v", err)
	}
	if used.WorkOrder.Actual.PartsCost != 3000 {
		t.Fatalf("actual parts cost = %s", used.WorkOrder.Actual.PartsCost)
	}

	h.clock = start.Add(30 * time.Minute)
	if _, err := h.svc.Pause(ctx, ExecutionInput{Ref: ref, Actor: "tech-1"}); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	h.clock = start.Add(45 * time.Minute)
	resumed, err := h.svc.Resume(ctx, ExecutionInput{Ref: ref, Actor: "tech-1"})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.Event.Metadata.TotalPauseSeconds != 900 {
		t.Fatalf("resume metadata = %+v", resumed.Event.Metadata)
	}
	h.clock = start.Add(90 * time.Minute)
	completed, err := h.svc.Complete(ctx, CompleteInput{Ref: ref, Actor: "tech-1", Checklist: fullChecklist()})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Event.Metadata.ActualMinutes != 75 {
		t.Fatalf("actual minutes = %v, want 75", completed.Event.Metadata.ActualMinutes)
	}
	if completed.WorkOrder.Actual.LaborCost != 7500 || completed.WorkOrder.Actual.TotalCost != 10500 {
		t.Fatalf("actual labor=%s total=%s", completed.WorkOrder.Actual.LaborCost, completed.WorkOrder.Actual.TotalCost)
	}
	if completed.WorkOrder.ActualEndDate == nil || completed.WorkOrder.ActualEndDate.Before(*completed.WorkOrder.ActualStartDate) {
		t.Fatalf("actual dates = %v %v", completed.WorkOrder.ActualStartDate, completed.WorkOrder.ActualEndDate)
	}

	h.advance(time.Hour)
	if _, err := h.svc.Verify(ctx, ExecutionInput{Ref: ref, Actor: "tech-1"}); !errors.Is(err, workorder.ErrInsufficientAuthority) {
		t.Fatalf("Verify(executor) error = %v", err)
	}
	if _, err := h.svc.Verify(ctx, ExecutionInput{Ref: ref, Actor: "qa-1"}); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	h.advance(time.Minute)
	closed, err := h.svc.Close(ctx, ExecutionInput{Ref: ref, Actor: "sup-1"})
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if closed.WorkOrder.Status != workorder.StatusClosed || closed.WorkOrder.Closed == nil {
		t.Fatalf("Close() = %+v", closed.WorkOrder)
	}
	if _, err := h.svc.Cancel(ctx, CancelInput{Ref: ref, Actor: "sup-1", Reason: "late"}); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("Cancel(closed) error = %v", err)
	}

	timeline, err := h.svc.Timeline(ctx, ref)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	want := []workorder.Status{
		workorder.StatusRequested, workorder.StatusApproved, workorder.StatusPlanned, workorder.StatusScheduled,
		workorder.StatusInProgress, workorder.StatusPaused, workorder.StatusInProgress, workorder.StatusCompleted,
		workorder.StatusVerified, workorder.StatusClosed,
	}
	if len(timeline.Path) != len(want) {
		t.Fatalf("Timeline() path = %v", timeline.Path)
	}
	for i := range want {
		if timeline.Path[i] != want[i] {
			t.Fatalf("Timeline() path[%d] = %s, want %s", i, timeline.Path[i], want[i])
		}
	}
	if timeline.Entries[0].From != nil {
		t.Fatalf("creation row from = %v", *timeline.Entries[0].From)
	}
}

func TestApproveEscalatesAboveThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "emergency")

	res, err := h.svc.Approve(ctx, ApproveInput{Ref: created.Number, Actor: "sup-1"})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if res.Escalation == nil || !res.Escalation.PriorityExceeded || res.Escalation.CostExceeded {
		t.Fatalf("Approve() escalation = %+v", res.Escalation)
	}
	if res.Event != nil || res.WorkOrder.Status != workorder.StatusRequested {
		t.Fatalf("Approve() escalated result = %+v", res)
	}

	timeline, err := h.svc.Timeline(ctx, created.Number)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(timeline.Entries) != 1 {
		t.Fatalf("history rows after escalation = %d, want 1", len(timeline.Entries))
	}
	if h.metrics.escalations.Load() != 1 {
		t.Fatalf("escalations = %d", h.metrics.escalations.Load())
	}

	approved, err := h.svc.Approve(ctx, ApproveInput{Ref: created.Number, Actor: "mgr-1"})
	if err != nil || approved.WorkOrder.Status != workorder.StatusApproved {
		t.Fatalf("Approve(mgr) = %+v, %v", approved.WorkOrder.Status, err)
	}
	if approved.Event.Metadata.Threshold == nil || approved.Event.Metadata.PriorityScore != 100 {
		t.Fatalf("approve metadata = %+v", approved.Event.Metadata)
	}
	if _, err := h.svc.Approve(ctx, ApproveInput{Ref: created.Number, Actor: "mgr-1"}); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("Approve(again) error = %v", err)
	}
}

func TestConcurrentApproveYieldsOneConflict(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "normal")

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		conflicts atomic.Int64
		other     = make(chan error, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Approve(context.Background(), ApproveInput{
				Ref:             created.Number,
				Actor:           "sup-1",
				ExpectedVersion: version(created.Version),
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, workorder.ErrConflict):
				conflicts.Add(1)
			default:
				other <- err
			}
		}()
	}
	wg.Wait()
	close(other)
	for err := range other {
		t.Fatalf("Approve() unexpected error = %v", err)
	}
	if successes.Load() != 1 || conflicts.Load() != 1 {
		t.Fatalf("successes=%d conflicts=%d", successes.Load(), conflicts.Load())
	}
	if h.metrics.conflicts.Load() != 1 {
		t.Fatalf("conflict metric = %d", h.metrics.conflicts.Load())
	}
}

// rendezvousRepo holds the first n unlocked reads until all n have happened.
type rendezvousRepo struct {
	ports.WorkOrderRepository
	n       int64
	arrived *atomic.Int64
	release chan struct{}
}

func (r rendezvousRepo) GetWorkOrder(ctx context.Context, id uint64) (workorder.WorkOrder, error) {
	wo, err := r.WorkOrderRepository.GetWorkOrder(ctx, id)
	switch count := r.arrived.Add(1); {
	case count == r.n:
		close(r.release)
	case count < r.n:
		<-r.release
	}
	return wo, err
}

func TestConcurrentApproveWithoutVersionYieldsOneConflict(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "normal")
	h.svc.repo = rendezvousRepo{
		WorkOrderRepository: h.repo,
		n:                   2,
		arrived:             &atomic.Int64{},
		release:             make(chan struct{}),
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		conflicts atomic.Int64
		other     = make(chan error, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Approve(context.Background(), ApproveInput{Ref: created.Number, Actor: "sup-1"})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, workorder.ErrConflict):
				conflicts.Add(1)
			default:
				other <- err
			}
		}()
	}
	wg.Wait()
	close(other)
	for err := range other {
		t.Fatalf("Approve() unexpected error = %v", err)
	}
	if successes.Load() != 1 || conflicts.Load() != 1 {
		t.Fatalf("successes=%d conflicts=%d", successes.Load(), conflicts.Load())
	}

	// Once the approval is visible, a plain re-approve is an invalid transition.
	_, err := h.svc.Approve(context.Background(), ApproveInput{Ref: created.Number, Actor: "sup-1"})
	if !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("Approve() again error = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionsWriteNoKeyValueEntries(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "normal")
	h.approve(t, created.Number)

	var count int64
	if err := h.db.Model(&model.KeyValue{}).Count(&count).Error; err != nil {
		t.Fatalf("count kv_store: %v", err)
	}
	if count != 0 {
		t.Fatalf("kv_store rows = %d, want 0", count)
	}
}

func TestPlanRejectsOverReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "normal")
	h.approve(t, created.Number)
	gear := h.addPart(t, "GEAR-1", 2500, 2)

	_, err := h.svc.Plan(ctx, PlanInput{
		Ref:            created.Number,
		Actor:          "planner-1",
		EstimatedHours: 1,
		Schedule:       window(9, 10),
		Parts:          []PartRequest{{CatalogPartID: partID(gear.ID), Quantity: 5}},
	})
	if !errors.Is(err, workorder.ErrInsufficientStock) {
		t.Fatalf("Plan() error = %v, want ErrInsufficientStock", err)
	}
	if workorder.KindOf(err) != workorder.KindInsufficientStock {
		t.Fatalf("KindOf() = %s", workorder.KindOf(err))
	}
	if got := h.available(t, gear.ID); got != 2 {
		t.Fatalf("available = %d, want 2", got)
	}

	details, err := h.svc.Get(ctx, created.Number)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if details.WorkOrder.Status != workorder.StatusApproved || len(details.Parts) != 0 {
		t.Fatalf("after failed plan status=%s parts=%d", details.WorkOrder.Status, len(details.Parts))
	}
	if h.metrics.stock.Load() != 1 {
		t.Fatalf("stock rejections = %d", h.metrics.stock.Load())
	}
}

func TestCancelReleasesReservedStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "high")
	h.approve(t, created.Number)
	filter := h.addPart(t, "FLT-10", 400, 12)
	h.plan(t, created.Number, "tech-1", window(9, 11), PartRequest{CatalogPartID: partID(filter.ID), Quantity: 5})
	if got := h.available(t, filter.ID); got != 7 {
		t.Fatalf("available after plan = %d, want 7", got)
	}

	if _, err := h.svc.Cancel(ctx, CancelInput{Ref: created.Number, Actor: "sup-1"}); !errors.Is(err, workorder.ErrValidation) {
		t.Fatalf("Cancel(no reason) error = %v", err)
	}

	h.advance(time.Minute)
	res, err := h.svc.Cancel(ctx, CancelInput{Ref: created.Number, Actor: "sup-1", Reason: "asset replaced"})
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if res.WorkOrder.Status != workorder.StatusCancelled || res.WorkOrder.CancellationReason != "asset replaced" {
		t.Fatalf("Cancel() = %+v", res.WorkOrder)
	}
	if got := h.available(t, filter.ID); got != 12 {
		t.Fatalf("available after cancel = %d, want 12", got)
	}
	if res.Event.From == nil || *res.Event.From != workorder.StatusPlanned || res.Event.To != workorder.StatusCancelled {
		t.Fatalf("cancel event = %s", res.Event)
	}
	released := res.Event.Metadata.ReleasedStock
	if len(released) != 1 || released[0].Quantity != 5 || released[0].CatalogPartID != filter.ID {
		t.Fatalf("released stock = %+v", released)
	}

	timeline, err := h.svc.Timeline(ctx, created.Number)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	cancelRows := 0
	for _, entry := range timeline.Entries {
		if entry.To == workorder.StatusCancelled {
			cancelRows++
		}
	}
	if cancelRows != 1 {
		t.Fatalf("cancel history rows = %d", cancelRows)
	}

	details, err := h.svc.Get(ctx, created.Number)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if details.Parts[0].Status != workorder.PartPlanned || details.Parts[0].ReservedQty != 0 {
		t.Fatalf("released line = %+v", details.Parts[0])
	}
}

func TestRejectRequiresReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "low")

	if _, err := h.svc.Reject(ctx, RejectInput{Ref: created.Number, Actor: "sup-1", Reason: "  "}); !errors.Is(err, workorder.ErrValidation) {
		t.Fatalf("Reject(blank) error = %v", err)
	}
	res, err := h.svc.Reject(ctx, RejectInput{Ref: created.Number, Actor: "sup-1", Reason: "duplicate of MNT-000001"})
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if res.Event.Reason != "duplicate of MNT-000001" || res.Event.Metadata.RejectionReason != res.Event.Reason {
		t.Fatalf("reject event = %+v", res.Event)
	}
	if _, err := h.svc.Approve(ctx, ApproveInput{Ref: created.Number, Actor: "mgr-1"}); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("Approve(rejected) error = %v", err)
	}
}

func TestInvalidTransitionCarriesContext(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "normal")

	_, err := h.svc.Close(context.Background(), ExecutionInput{Ref: created.Number, Actor: "sup-1"})
	var typed *workorder.Error
	if !errors.As(err, &typed) {
		t.Fatalf("Close() error = %v, want *workorder.Error", err)
	}
	if typed.Kind != workorder.KindInvalidTransition || typed.Current != workorder.StatusRequested ||
		typed.Target != workorder.StatusClosed || typed.Actor != "sup-1" || typed.Number != created.Number {
		t.Fatalf("Close() error fields = %+v", typed)
	}
}

func TestCompleteWhilePausedIsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "normal")
	h.approve(t, created.Number)
	h.plan(t, created.Number, "tech-1", window(9, 11))
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: created.Number, Actor: "planner-1"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, err := h.svc.StartExecution(ctx, ExecutionInput{Ref: created.Number, Actor: "tech-1"}); err != nil {
		t.Fatalf("StartExecution() error = %v", err)
	}
	h.advance(10 * time.Minute)
	if _, err := h.svc.Pause(ctx, ExecutionInput{Ref: created.Number, Actor: "tech-1"}); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	_, err := h.svc.Complete(ctx, CompleteInput{Ref: created.Number, Actor: "tech-1", Checklist: fullChecklist()})
	if !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("Complete(paused) error = %v", err)
	}

	h.advance(5 * time.Minute)
	if _, err := h.svc.Resume(ctx, ExecutionInput{Ref: created.Number, Actor: "tech-1"}); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	_, err = h.svc.Complete(ctx, CompleteInput{Ref: created.Number, Actor: "tech-1", Checklist: workorder.Checklist{WorkPerformed: true}})
	if !errors.Is(err, workorder.ErrValidation) {
		t.Fatalf("Complete(incomplete checklist) error = %v", err)
	}
}

func TestOnlyAssignedTechnicianExecutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "normal")
	h.approve(t, created.Number)
	h.plan(t, created.Number, "tech-1", window(9, 11))
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: created.Number, Actor: "planner-1"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if _, err := h.svc.StartExecution(ctx, ExecutionInput{Ref: created.Number, Actor: "tech-2"}); !errors.Is(err, workorder.ErrInsufficientAuthority) {
		t.Fatalf("StartExecution(tech-2) error = %v", err)
	}
	if _, err := h.svc.StartExecution(ctx, ExecutionInput{Ref: created.Number, Actor: "tech-1"}); err != nil {
		t.Fatalf("StartExecution(tech-1) error = %v", err)
	}
}

func TestTeamAssignmentRequiresMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "normal")
	h.approve(t, created.Number)
	h.plan(t, created.Number, "", window(9, 11))
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: created.Number, Actor: "planner-1"}); !errors.Is(err, workorder.ErrValidation) {
		t.Fatalf("Schedule(no assignment) error = %v", err)
	}
	if _, err := h.svc.Schedule(ctx, ScheduleInput{
		Ref:        created.Number,
		Actor:      "planner-1",
		Assignment: &workorder.Assignment{TeamID: "crew-a"},
	}); err != nil {
		t.Fatalf("Schedule(team) error = %v", err)
	}

	if _, err := h.svc.StartExecution(ctx, ExecutionInput{Ref: created.Number, Actor: "tech-1"}); !errors.Is(err, workorder.ErrInsufficientAuthority) {
		t.Fatalf("StartExecution(non-member) error = %v", err)
	}
	if _, err := h.svc.StartExecution(ctx, ExecutionInput{Ref: created.Number, Actor: "crew-a-1"}); err != nil {
		t.Fatalf("StartExecution(member) error = %v", err)
	}
	details, err := h.svc.Get(ctx, created.Number)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if details.Execution.Executor != "crew-a-1" {
		t.Fatalf("executor = %q", details.Execution.Executor)
	}
}

func TestScheduleRejectsDoubleBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.create(t, "normal")
	h.approve(t, first.Number)
	h.plan(t, first.Number, "tech-1", window(9, 11))
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: first.Number, Actor: "planner-1"}); err != nil {
		t.Fatalf("Schedule(first) error = %v", err)
	}

	second := h.create(t, "normal")
	h.approve(t, second.Number)
	h.plan(t, second.Number, "tech-1", window(10, 12))
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: second.Number, Actor: "planner-1"}); !errors.Is(err, workorder.ErrValidation) {
		t.Fatalf("Schedule(overlap) error = %v", err)
	}
	if _, err := h.svc.Schedule(ctx, ScheduleInput{
		Ref:        second.Number,
		Actor:      "planner-1",
		Assignment: &workorder.Assignment{TechnicianID: "tech-2"},
	}); err != nil {
		t.Fatalf("Schedule(tech-2) error = %v", err)
	}
}

func TestPartsLedgerReturnsStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "normal")
	h.approve(t, created.Number)
	belt := h.addPart(t, "BELT-A", 1500, 10)
	h.plan(t, created.Number, "tech-1", window(9, 11), PartRequest{CatalogPartID: partID(belt.ID), Quantity: 5})

	details, err := h.svc.Get(ctx, created.Number)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	lineID := details.Parts[0].ID

	if _, err := h.svc.UsePart(ctx, PartInput{Ref: created.Number, LineID: lineID, Actor: "tech-1", Quantity: 1}); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("UsePart(planned order) error = %v", err)
	}
	if _, err := h.svc.IssuePart(ctx, PartInput{Ref: created.Number, LineID: lineID, Actor: "storekeeper"}); err != nil {
		t.Fatalf("IssuePart() error = %v", err)
	}
	if _, err := h.svc.Schedule(ctx, ScheduleInput{Ref: created.Number, Actor: "planner-1"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	res, err := h.svc.UsePart(ctx, PartInput{Ref: created.Number, LineID: lineID, Actor: "tech-1", Quantity: 3})
	if err != nil {
		t.Fatalf("UsePart() error = %v", err)
	}
	if got := h.available(t, belt.ID); got != 7 {
		t.Fatalf("available after use = %d, want 7", got)
	}
	if res.WorkOrder.Actual.PartsCost != 4500 || res.Line.TotalCost != 4500 {
		t.Fatalf("actual parts=%s line=%s", res.WorkOrder.Actual.PartsCost, res.Line.TotalCost)
	}
	if res.WorkOrder.Estimated.TotalCost != res.WorkOrder.Estimated.LaborCost+7500 {
		t.Fatalf("estimated total = %s", res.WorkOrder.Estimated.TotalCost)
	}

	res, err = h.svc.ReturnPart(ctx, PartInput{Ref: created.Number, LineID: lineID, Actor: "tech-1", Quantity: 1})
	if err != nil {
		t.Fatalf("ReturnPart() error = %v", err)
	}
	if got := h.available(t, belt.ID); got != 8 {
		t.Fatalf("available after return = %d, want 8", got)
	}
	if res.WorkOrder.Actual.PartsCost != 3000 {
		t.Fatalf("actual parts after return = %s", res.WorkOrder.Actual.PartsCost)
	}
	if _, err := h.svc.ReturnPart(ctx, PartInput{Ref: created.Number, LineID: lineID, Actor: "tech-1", Quantity: 1}); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Fatalf("ReturnPart(twice) error = %v", err)
	}
}

func TestScopeOutsideLocationDenied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t, "normal")

	if _, err := h.svc.Approve(ctx, ApproveInput{Ref: created.Number, Actor: "outsider"}); !errors.Is(err, workorder.ErrInsufficientAuthority) {
		t.Fatalf("Approve(outsider) error = %v", err)
	}
	h.authz.denied["req-1:approve"] = true
	if _, err := h.svc.Approve(ctx, ApproveInput{Ref: created.Number, Actor: "req-1"}); !errors.Is(err, workorder.ErrInsufficientAuthority) {
		t.Fatalf("Approve(denied) error = %v", err)
	}
	if _, err := h.svc.Create(ctx, CreateInput{Actor: "outsider", Title: "x", TargetKind: "asset", TargetID: "PUMP-7"}); !errors.Is(err, workorder.ErrInsufficientAuthority) {
		t.Fatalf("Create(outsider) error = %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Actor: "req-1", TargetKind: "asset", TargetID: "PUMP-7"},
		{Actor: "req-1", Title: "t", Priority: "whenever", TargetKind: "asset", TargetID: "PUMP-7"},
		{Actor: "req-1", Title: "t", TargetKind: "asset", TargetID: "NOPE"},
		{Actor: "req-1", Title: "t", TargetKind: "robot", TargetID: "PUMP-7"},
		{Title: "t", TargetKind: "asset", TargetID: "PUMP-7"},
	}
	for i, input := range cases {
		if _, err := h.svc.Create(ctx, input); !errors.Is(err, workorder.ErrValidation) {
			t.Fatalf("Create(case %d) error = %v", i, err)
		}
	}

	override := 150
	res, err := h.svc.Create(ctx, CreateInput{
		Actor: "req-1", Title: "calibrate", Discipline: "quality", PriorityScore: &override,
		TargetKind: "asset", TargetID: "FAN-2", EstimatedHours: 1.5,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.WorkOrder.PriorityScore != 100 || res.WorkOrder.Number[:4] != "QLT-" {
		t.Fatalf("Create() = score %d number %s", res.WorkOrder.PriorityScore, res.WorkOrder.Number)
	}
	if res.WorkOrder.Estimated.TotalCost != 9000 {
		t.Fatalf("estimated total = %s, want 90.00", res.WorkOrder.Estimated.TotalCost)
	}

	if _, err := h.svc.Get(ctx, "MNT-000999"); !errors.Is(err, workorder.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
}

func TestListQueueOrdersByPriority(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	low := h.create(t, "low")
	urgent := h.create(t, "urgent")
	normal := h.create(t, "normal")

	items, err := h.svc.ListQueue(ctx, ListQueueInput{})
	if err != nil {
		t.Fatalf("ListQueue() error = %v", err)
	}
	want := []uint64{urgent.ID, normal.ID, low.ID}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("ListQueue()[%d] = %d, want %d", i, items[i].ID, id)
		}
	}
	if _, err := h.svc.ListQueue(ctx, ListQueueInput{Statuses: []string{"bogus"}}); !errors.Is(err, workorder.ErrValidation) {
		t.Fatalf("ListQueue(bogus) error = %v", err)
	}
}
