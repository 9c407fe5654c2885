package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/infrastructure/persistence/sqlite/model"
	"maintflow/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "maintflow.sqlite")
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
	return db
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newOrder(title string, score int) workorder.WorkOrder {
	return workorder.WorkOrder{
		Discipline:    workorder.DisciplineMaintenance,
		Title:         title,
		Priority:      workorder.PriorityNormal,
		PriorityScore: score,
		Status:        workorder.StatusRequested,
		Version:       1,
		Target:        workorder.TargetRef{Kind: workorder.TargetAsset, ID: "PUMP-7"},
		Location:      workorder.Location{PlantID: "P1", AreaID: "A1"},
		Requested:     workorder.StageStamp{Actor: "req-1", At: testNow},
		Safety:        workorder.SafetyRequirements{LockoutTagout: true, PPE: []string{"gloves"}},
		Tags:          []string{"pump"},
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
}

func TestCreateWorkOrderAssignsNumber(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	created, err := repo.CreateWorkOrder(ctx, newOrder("Replace seal", 40))
	if err != nil {
		t.Fatalf("CreateWorkOrder() error = %v", err)
	}
	if created.ID == 0 || created.Number != workorder.FormatNumber(workorder.DisciplineMaintenance, created.ID) {
		t.Fatalf("CreateWorkOrder() id=%d number=%q", created.ID, created.Number)
	}

	loaded, err := repo.GetWorkOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetWorkOrder() error = %v", err)
	}
	if loaded.Number != created.Number || loaded.Location.PlantID != "P1" {
		t.Fatalf("GetWorkOrder() = %+v", loaded)
	}
	if !loaded.Safety.LockoutTagout || len(loaded.Safety.PPE) != 1 {
		t.Fatalf("GetWorkOrder() safety = %+v", loaded.Safety)
	}
	if len(loaded.Tags) != 1 || loaded.Tags[0] != "pump" {
		t.Fatalf("GetWorkOrder() tags = %#v", loaded.Tags)
	}

	if _, err := repo.GetWorkOrder(ctx, 999); !errors.Is(err, ports.ErrWorkOrderNotFound) {
		t.Fatalf("GetWorkOrder(999) error = %v", err)
	}
}

func TestUpdateWorkOrderCompareAndSet(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	created, err := repo.CreateWorkOrder(ctx, newOrder("Inspect valve", 60))
	if err != nil {
		t.Fatalf("CreateWorkOrder() error = %v", err)
	}

	next := created
	next.Status = workorder.StatusApproved
	next.Approved = &workorder.StageStamp{Actor: "sup-1", At: testNow.Add(time.Hour)}
	if err := repo.UpdateWorkOrder(ctx, next, workorder.StatusRequested, 1); err != nil {
		t.Fatalf("UpdateWorkOrder() error = %v", err)
	}

	// A second writer still holding the old version loses.
	stale := created
	stale.Status = workorder.StatusRejected
	if err := repo.UpdateWorkOrder(ctx, stale, workorder.StatusRequested, 1); !errors.Is(err, ports.ErrStaleWorkOrder) {
		t.Fatalf("UpdateWorkOrder(stale) error = %v", err)
	}

	loaded, err := repo.GetWorkOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetWorkOrder() error = %v", err)
	}
	if loaded.Status != workorder.StatusApproved || loaded.Version != 2 {
		t.Fatalf("GetWorkOrder() status=%s version=%d", loaded.Status, loaded.Version)
	}
	if loaded.Approved == nil || loaded.Approved.Actor != "sup-1" {
		t.Fatalf("GetWorkOrder() approved = %+v", loaded.Approved)
	}
	if loaded.Number != created.Number {
		t.Fatalf("UpdateWorkOrder() changed number to %q", loaded.Number)
	}
}

func TestListWorkOrdersQueueOrder(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	low, _ := repo.CreateWorkOrder(ctx, newOrder("low", 20))
	dueLater := newOrder("due later", 80)
	later := testNow.Add(72 * time.Hour)
	dueLater.RequestedDueDate = &later
	dueLaterOrder, _ := repo.CreateWorkOrder(ctx, dueLater)
	dueSoon := newOrder("due soon", 80)
	soon := testNow.Add(24 * time.Hour)
	dueSoon.RequestedDueDate = &soon
	dueSoonOrder, _ := repo.CreateWorkOrder(ctx, dueSoon)
	closed := newOrder("closed", 100)
	closed.Status = workorder.StatusClosed
	if _, err := repo.CreateWorkOrder(ctx, closed); err != nil {
		t.Fatalf("CreateWorkOrder(closed) error = %v", err)
	}

	items, err := repo.ListWorkOrders(ctx, ports.WorkOrderFilter{})
	if err != nil {
		t.Fatalf("ListWorkOrders() error = %v", err)
	}
	want := []uint64{dueSoonOrder.ID, dueLaterOrder.ID, low.ID}
	if len(items) != len(want) {
		t.Fatalf("ListWorkOrders() len = %d", len(items))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("ListWorkOrders()[%d] = %d, want %d", i, items[i].ID, id)
		}
	}

	all, err := repo.ListWorkOrders(ctx, ports.WorkOrderFilter{IncludeTerminal: true, Limit: 2})
	if err != nil {
		t.Fatalf("ListWorkOrders(all) error = %v", err)
	}
	if len(all) != 2 || all[0].Status != workorder.StatusClosed {
		t.Fatalf("ListWorkOrders(all) = %+v", all)
	}
}

func TestFindScheduleOverlaps(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	booked := newOrder("booked", 40)
	booked.Status = workorder.StatusScheduled
	booked.Assignment = workorder.Assignment{TechnicianID: "tech-1"}
	booked.Schedule = &workorder.ScheduleWindow{Start: testNow, End: testNow.Add(2 * time.Hour)}
	existing, err := repo.CreateWorkOrder(ctx, booked)
	if err != nil {
		t.Fatalf("CreateWorkOrder() error = %v", err)
	}

	overlap := workorder.ScheduleWindow{Start: testNow.Add(time.Hour), End: testNow.Add(3 * time.Hour)}
	found, err := repo.FindScheduleOverlaps(ctx, "tech-1", overlap, 0)
	if err != nil {
		t.Fatalf("FindScheduleOverlaps() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != existing.ID {
		t.Fatalf("FindScheduleOverlaps() = %+v", found)
	}

	adjacent := workorder.ScheduleWindow{Start: testNow.Add(2 * time.Hour), End: testNow.Add(3 * time.Hour)}
	if found, _ := repo.FindScheduleOverlaps(ctx, "tech-1", adjacent, 0); len(found) != 0 {
		t.Fatalf("FindScheduleOverlaps(adjacent) = %+v", found)
	}
	if found, _ := repo.FindScheduleOverlaps(ctx, "tech-1", overlap, existing.ID); len(found) != 0 {
		t.Fatalf("FindScheduleOverlaps(excluded) = %+v", found)
	}
}

func TestPartLinesAndExecution(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	wo, err := repo.CreateWorkOrder(ctx, newOrder("Bearing swap", 40))
	if err != nil {
		t.Fatalf("CreateWorkOrder() error = %v", err)
	}
	line, err := workorder.NewPartLine(wo.ID, nil, "bearing", 3, 1000, "planner-1", testNow)
	if err != nil {
		t.Fatalf("NewPartLine() error = %v", err)
	}
	line, err = repo.CreatePartLine(ctx, line)
	if err != nil {
		t.Fatalf("CreatePartLine() error = %v", err)
	}
	if err := line.Reserve(3, "planner-1", testNow); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if err := repo.UpdatePartLine(ctx, line); err != nil {
		t.Fatalf("UpdatePartLine() error = %v", err)
	}
	lines, err := repo.ListPartLines(ctx, wo.ID)
	if err != nil {
		t.Fatalf("ListPartLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0].Status != workorder.PartReserved || lines[0].TotalCost != 3000 {
		t.Fatalf("ListPartLines() = %+v", lines)
	}

	if _, err := repo.GetExecution(ctx, wo.ID); !errors.Is(err, ports.ErrExecutionNotFound) {
		t.Fatalf("GetExecution() error = %v", err)
	}
	exec := workorder.NewExecution(wo.ID, "tech-1", testNow)
	if err := exec.Start(testNow); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := exec.Pause(testNow.Add(30 * time.Minute)); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := exec.Resume(testNow.Add(45 * time.Minute)); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if err := repo.SaveExecution(ctx, *exec); err != nil {
		t.Fatalf("SaveExecution() error = %v", err)
	}
	if err := repo.SaveExecution(ctx, *exec); err != nil {
		t.Fatalf("SaveExecution(again) error = %v", err)
	}
	loaded, err := repo.GetExecution(ctx, wo.ID)
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	if loaded.TotalPause != 15*time.Minute || loaded.PauseCount != 1 || loaded.Status != workorder.ExecutionInProgress {
		t.Fatalf("GetExecution() = %+v", loaded)
	}
}

func TestExecutionPauseTotalsKeepSubSecondPrecision(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	wo, err := repo.CreateWorkOrder(ctx, newOrder("Seal check", 20))
	if err != nil {
		t.Fatalf("CreateWorkOrder() error = %v", err)
	}
	exec := workorder.NewExecution(wo.ID, "tech-1", testNow)
	if err := exec.Start(testNow); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	at := testNow
	for cycle := 0; cycle < 3; cycle++ {
		at = at.Add(10 * time.Minute)
		if err := exec.Pause(at); err != nil {
			t.Fatalf("Pause(%d) error = %v", cycle, err)
		}
		at = at.Add(1500 * time.Millisecond)
		if err := exec.Resume(at); err != nil {
			t.Fatalf("Resume(%d) error = %v", cycle, err)
		}
		if err := repo.SaveExecution(ctx, *exec); err != nil {
			t.Fatalf("SaveExecution(%d) error = %v", cycle, err)
		}
		loaded, err := repo.GetExecution(ctx, wo.ID)
		if err != nil {
			t.Fatalf("GetExecution(%d) error = %v", cycle, err)
		}
		exec = &loaded
	}

	if exec.TotalPause != 4500*time.Millisecond || exec.PauseCount != 3 {
		t.Fatalf("TotalPause = %v, PauseCount = %d", exec.TotalPause, exec.PauseCount)
	}
}

func TestHistoryAppendAndRelayFeed(t *testing.T) {
	repo := NewWorkOrderRepository(setupDB(t))
	ctx := context.Background()

	wo, err := repo.CreateWorkOrder(ctx, newOrder("Calibrate", 40))
	if err != nil {
		t.Fatalf("CreateWorkOrder() error = %v", err)
	}
	first, err := repo.AppendHistory(ctx, workorder.HistoryEntry{
		WorkOrderID: wo.ID,
		To:          workorder.StatusRequested,
		Actor:       "req-1",
		OccurredAt:  testNow,
	})
	if err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	if first.EventUID == "" || first.Seq == 0 || first.From != nil {
		t.Fatalf("AppendHistory() = %+v", first)
	}
	from := workorder.StatusRequested
	if _, err := repo.AppendHistory(ctx, workorder.HistoryEntry{
		WorkOrderID: wo.ID,
		From:        &from,
		To:          workorder.StatusApproved,
		Actor:       "sup-1",
		Metadata:    workorder.TransitionMetadata{PriorityScore: 40, EstimatedTotalCost: 8000},
		OccurredAt:  testNow.Add(time.Minute),
	}); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	entries, err := repo.ListHistory(ctx, wo.ID)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	path, err := workorder.ReconstructPath(entries)
	if err != nil {
		t.Fatalf("ReconstructPath() error = %v", err)
	}
	if len(path) != 2 || path[1] != workorder.StatusApproved {
		t.Fatalf("ReconstructPath() = %v", path)
	}
	if entries[1].Metadata.EstimatedTotalCost != 8000 {
		t.Fatalf("metadata = %+v", entries[1].Metadata)
	}

	events, err := repo.ListHistoryAfter(ctx, first.Seq, 10)
	if err != nil {
		t.Fatalf("ListHistoryAfter() error = %v", err)
	}
	if len(events) != 1 || events[0].Number != wo.Number || events[0].To != workorder.StatusApproved {
		t.Fatalf("ListHistoryAfter() = %+v", events)
	}
}

func TestAppendHistoryLocksOnPostgres(t *testing.T) {
	if got := historyLockSQL("sqlite"); got != "" {
		t.Fatalf("historyLockSQL(sqlite) = %q, want none", got)
	}

	// DryRun builds statements without a server.
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=mf dbname=mf sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open postgres dry run: %v", err)
	}
	var statements []string
	record := func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}
	if err := db.Callback().Raw().After("gorm:raw").Register("test:record_raw", record); err != nil {
		t.Fatalf("register raw callback: %v", err)
	}
	if err := db.Callback().Create().After("gorm:create").Register("test:record_create", record); err != nil {
		t.Fatalf("register create callback: %v", err)
	}

	repo := NewWorkOrderRepository(db)
	if _, err := repo.AppendHistory(context.Background(), workorder.HistoryEntry{
		WorkOrderID: 7,
		To:          workorder.StatusRequested,
		Actor:       "req-1",
		OccurredAt:  testNow,
	}); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	if len(statements) != 2 {
		t.Fatalf("statements = %q, want lock then insert", statements)
	}
	if !strings.Contains(statements[0], "pg_advisory_xact_lock") {
		t.Fatalf("first statement = %q, want advisory lock", statements[0])
	}
	if !strings.Contains(statements[1], "work_order_status_history") {
		t.Fatalf("second statement = %q, want history insert", statements[1])
	}
}

func TestCatalogReserveIsAtomic(t *testing.T) {
	catalog := NewCatalogRepository(setupDB(t))
	ctx := context.Background()

	part, err := catalog.UpsertPart(ctx, ports.CatalogPart{SKU: "BRG-6204", Name: "Bearing", UnitCost: 1250, AvailableQty: 5})
	if err != nil {
		t.Fatalf("UpsertPart() error = %v", err)
	}
	if err := catalog.Reserve(ctx, part.ID, 4); err != nil {
		t.Fatalf("Reserve(4) error = %v", err)
	}
	if err := catalog.Reserve(ctx, part.ID, 2); !errors.Is(err, ports.ErrStockExhausted) {
		t.Fatalf("Reserve(2) error = %v", err)
	}
	if err := catalog.Reserve(ctx, 999, 1); !errors.Is(err, ports.ErrCatalogPartNotFound) {
		t.Fatalf("Reserve(missing) error = %v", err)
	}
	if err := catalog.Release(ctx, part.ID, 3); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	loaded, err := catalog.GetPart(ctx, part.ID)
	if err != nil {
		t.Fatalf("GetPart() error = %v", err)
	}
	if loaded.AvailableQty != 4 {
		t.Fatalf("AvailableQty = %d, want 4", loaded.AvailableQty)
	}

	updated, err := catalog.UpsertPart(ctx, ports.CatalogPart{SKU: "BRG-6204", Name: "Bearing 6204", UnitCost: 1300, AvailableQty: 10})
	if err != nil {
		t.Fatalf("UpsertPart(update) error = %v", err)
	}
	if updated.ID != part.ID || updated.AvailableQty != 10 || updated.UnitCost != 1300 {
		t.Fatalf("UpsertPart(update) = %+v", updated)
	}
}
