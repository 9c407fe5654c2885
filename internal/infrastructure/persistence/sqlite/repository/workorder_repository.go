package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/infrastructure/persistence/sqlite/model"
	"maintflow/internal/ports"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

var _ ports.WorkOrderRepository = (*WorkOrderRepository)(nil)

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(r.db, ctx)
}

// dbFromContext prefers the transaction carried by ctx over the base handle.
func dbFromContext(base *gorm.DB, ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return base.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *WorkOrderRepository) GetWorkOrder(ctx context.Context, id uint64) (workorder.WorkOrder, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.WorkOrder{}, err
	}
	return getWorkOrderByID(db, id)
}

func (r *WorkOrderRepository) GetWorkOrderForUpdate(ctx context.Context, id uint64) (workorder.WorkOrder, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.WorkOrder{}, err
	}
	// SQLite drops the locking clause; the single writer connection serializes instead.
	return getWorkOrderByID(db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *WorkOrderRepository) ListWorkOrders(ctx context.Context, filter ports.WorkOrderFilter) ([]workorder.WorkOrder, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.WorkOrder{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Statuses))
	} else if !filter.IncludeTerminal {
		query = query.Where("status NOT IN ?", []string{
			string(workorder.StatusClosed),
			string(workorder.StatusRejected),
			string(workorder.StatusCancelled),
		})
	}
	if filter.Discipline != "" {
		query = query.Where("discipline = ?", string(filter.Discipline))
	}
	if technician := strings.TrimSpace(filter.TechnicianID); technician != "" {
		query = query.Where("technician_id = ?", technician)
	}
	if team := strings.TrimSpace(filter.TeamID); team != "" {
		query = query.Where("team_id = ?", team)
	}

	var rows []model.WorkOrder
	if err := query.Order("priority_score desc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query work orders")
	}

	items := make([]workorder.WorkOrder, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapWorkOrder(row))
	}
	// Due dates and request times are compared in Go; stored time text does not sort reliably.
	workorder.SortQueue(items)
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (r *WorkOrderRepository) FindScheduleOverlaps(ctx context.Context, technicianID string, window workorder.ScheduleWindow, excludeID uint64) ([]workorder.WorkOrder, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, nil
	}

	var rows []model.WorkOrder
	if err := db.
		Where("technician_id = ?", technicianID).
		Where("id <> ?", excludeID).
		Where("status IN ?", []string{
			string(workorder.StatusScheduled),
			string(workorder.StatusInProgress),
			string(workorder.StatusPaused),
		}).
		Where("scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL").
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query technician schedule")
	}

	var out []workorder.WorkOrder
	for _, row := range rows {
		wo := mapWorkOrder(row)
		if wo.Schedule != nil && wo.Schedule.Overlaps(window) {
			out = append(out, wo)
		}
	}
	return out, nil
}

func (r *WorkOrderRepository) CreateWorkOrder(ctx context.Context, wo workorder.WorkOrder) (workorder.WorkOrder, error) {
	if ports.TxFromContext(ctx) == nil {
		var created workorder.WorkOrder
		if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			out, err := r.CreateWorkOrder(ports.WithTxContext(ctx, tx), wo)
			if err != nil {
				return err
			}
			created = out
			return nil
		}); err != nil {
			return workorder.WorkOrder{}, err
		}
		return created, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.WorkOrder{}, err
	}

	row := toWorkOrderRow(wo)
	row.ID = 0
	row.Number = nil
	if err := db.Create(&row).Error; err != nil {
		return workorder.WorkOrder{}, errs.Wrap(err, "insert work order")
	}

	number := workorder.FormatNumber(workorder.Discipline(row.Discipline), row.ID)
	if err := db.Model(&model.WorkOrder{}).Where("id = ?", row.ID).Update("number", number).Error; err != nil {
		return workorder.WorkOrder{}, errs.Wrap(err, "assign work order number")
	}
	row.Number = &number
	return mapWorkOrder(row), nil
}

func (r *WorkOrderRepository) UpdateWorkOrder(ctx context.Context, wo workorder.WorkOrder, expectedStatus workorder.Status, expectedVersion int64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toWorkOrderRow(wo)
	row.Version = expectedVersion + 1
	result := db.Model(&model.WorkOrder{}).
		Where("id = ? AND status = ? AND version = ?", wo.ID, string(expectedStatus), expectedVersion).
		Select("*").
		Omit("id", "number", "created_at").
		Updates(&row)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update work order")
	}
	if result.RowsAffected == 0 {
		if _, err := getWorkOrderByID(db, wo.ID); err != nil {
			return err
		}
		return ports.ErrStaleWorkOrder
	}
	return nil
}

func (r *WorkOrderRepository) ListPartLines(ctx context.Context, workOrderID uint64) ([]workorder.PartLine, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.WorkOrderPart
	if err := db.Where("work_order_id = ?", workOrderID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query part lines")
	}
	items := make([]workorder.PartLine, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapPartLine(row))
	}
	return items, nil
}

func (r *WorkOrderRepository) GetPartLine(ctx context.Context, lineID uint64) (workorder.PartLine, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.PartLine{}, err
	}

	var row model.WorkOrderPart
	if err := db.Where("id = ?", lineID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workorder.PartLine{}, ports.ErrPartLineNotFound
		}
		return workorder.PartLine{}, errs.Wrap(err, "query part line")
	}
	return mapPartLine(row), nil
}

func (r *WorkOrderRepository) CreatePartLine(ctx context.Context, line workorder.PartLine) (workorder.PartLine, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.PartLine{}, err
	}

	row := toPartRow(line)
	row.ID = 0
	if err := db.Create(&row).Error; err != nil {
		return workorder.PartLine{}, errs.Wrap(err, "insert part line")
	}
	return mapPartLine(row), nil
}

func (r *WorkOrderRepository) UpdatePartLine(ctx context.Context, line workorder.PartLine) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toPartRow(line)
	result := db.Model(&model.WorkOrderPart{}).
		Where("id = ? AND work_order_id = ?", line.ID, line.WorkOrderID).
		Select("*").
		Omit("id", "work_order_id").
		Updates(&row)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update part line")
	}
	if result.RowsAffected == 0 {
		return ports.ErrPartLineNotFound
	}
	return nil
}

func (r *WorkOrderRepository) GetExecution(ctx context.Context, workOrderID uint64) (workorder.Execution, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.Execution{}, err
	}

	var row model.WorkOrderExecution
	if err := db.Where("work_order_id = ?", workOrderID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workorder.Execution{}, ports.ErrExecutionNotFound
		}
		return workorder.Execution{}, errs.Wrap(err, "query execution")
	}
	return mapExecution(row), nil
}

func (r *WorkOrderRepository) SaveExecution(ctx context.Context, exec workorder.Execution) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toExecutionRow(exec)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "work_order_id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert execution")
	}
	return nil
}

// historyAppendLockKey names the Postgres advisory lock that orders history inserts.
const historyAppendLockKey int64 = 0x6d66_6873

// historyLockSQL returns the statement that serializes history appends until
// commit, or "" when the driver already allows a single writer. Seq values then
// become visible in allocation order and the relay cursor never skips a row.
func historyLockSQL(dialect string) string {
	if dialect == "postgres" {
		return "SELECT pg_advisory_xact_lock(?)"
	}
	return ""
}

func (r *WorkOrderRepository) AppendHistory(ctx context.Context, entry workorder.HistoryEntry) (workorder.HistoryEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return workorder.HistoryEntry{}, err
	}
	if stmt := historyLockSQL(db.Dialector.Name()); stmt != "" {
		if err := db.Exec(stmt, historyAppendLockKey).Error; err != nil {
			return workorder.HistoryEntry{}, errs.Wrap(err, "lock status history")
		}
	}

	if strings.TrimSpace(entry.EventUID) == "" {
		entry.EventUID = uuid.NewString()
	}
	row := model.WorkOrderStatusHistory{
		EventUID:    entry.EventUID,
		WorkOrderID: entry.WorkOrderID,
		ToStatus:    string(entry.To),
		Actor:       entry.Actor,
		Reason:      entry.Reason,
		OccurredAt:  entry.OccurredAt.UTC(),
	}
	row.Metadata = datatypes.NewJSONType(entry.Metadata)
	if entry.From != nil {
		from := string(*entry.From)
		row.FromStatus = &from
	}
	if err := db.Create(&row).Error; err != nil {
		return workorder.HistoryEntry{}, errs.Wrap(err, "insert status history")
	}
	return mapHistory(row), nil
}

func (r *WorkOrderRepository) ListHistory(ctx context.Context, workOrderID uint64) ([]workorder.HistoryEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.WorkOrderStatusHistory
	if err := db.Where("work_order_id = ?", workOrderID).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query status history")
	}
	items := make([]workorder.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapHistory(row))
	}
	return items, nil
}

func (r *WorkOrderRepository) ListHistoryAfter(ctx context.Context, afterSeq uint64, limit int) ([]ports.HistoryEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.WorkOrderStatusHistory{}).Where("seq > ?", afterSeq).Order("seq asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []model.WorkOrderStatusHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query status history")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.WorkOrderID)
	}
	var orders []model.WorkOrder
	if err := db.Select("id", "number", "discipline").Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, errs.Wrap(err, "query work order numbers")
	}
	byID := make(map[uint64]model.WorkOrder, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
	}

	items := make([]ports.HistoryEvent, 0, len(rows))
	for _, row := range rows {
		event := ports.HistoryEvent{HistoryEntry: mapHistory(row)}
		if order, ok := byID[row.WorkOrderID]; ok {
			event.Discipline = workorder.Discipline(order.Discipline)
			if order.Number != nil {
				event.Number = *order.Number
			}
		}
		items = append(items, event)
	}
	return items, nil
}

func getWorkOrderByID(db *gorm.DB, id uint64) (workorder.WorkOrder, error) {
	var row model.WorkOrder
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workorder.WorkOrder{}, ports.ErrWorkOrderNotFound
		}
		return workorder.WorkOrder{}, errs.Wrap(err, "query work order")
	}
	return mapWorkOrder(row), nil
}

func statusStrings(statuses []workorder.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
