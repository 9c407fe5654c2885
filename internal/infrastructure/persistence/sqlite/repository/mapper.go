package repository

import (
	"time"

	"gorm.io/datatypes"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/infrastructure/persistence/sqlite/model"
)

func stampColumns(stamp *workorder.StageStamp) (*string, *time.Time) {
	if stamp.IsZero() {
		return nil, nil
	}
	actor := stamp.Actor
	at := stamp.At.UTC()
	return &actor, &at
}

func stampFromColumns(actor *string, at *time.Time) *workorder.StageStamp {
	if actor == nil && at == nil {
		return nil
	}
	out := &workorder.StageStamp{}
	if actor != nil {
		out.Actor = *actor
	}
	if at != nil {
		out.At = at.UTC()
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func toWorkOrderRow(wo workorder.WorkOrder) model.WorkOrder {
	row := model.WorkOrder{
		ID:            wo.ID,
		Discipline:    string(wo.Discipline),
		Category:      wo.Category,
		Type:          wo.Type,
		Title:         wo.Title,
		Description:   wo.Description,
		Priority:      string(wo.Priority),
		PriorityScore: wo.PriorityScore,
		Status:        string(wo.Status),
		Version:       wo.Version,

		TargetKind: string(wo.Target.Kind),
		TargetID:   wo.Target.ID,
		PlantID:    wo.Location.PlantID,
		AreaID:     wo.Location.AreaID,
		SectorID:   wo.Location.SectorID,

		RequestedBy: wo.Requested.Actor,
		RequestedAt: wo.Requested.At.UTC(),

		EstimatedHours:     wo.Estimated.Hours,
		EstimatedPartsCost: int64(wo.Estimated.PartsCost),
		EstimatedLaborCost: int64(wo.Estimated.LaborCost),
		EstimatedTotalCost: int64(wo.Estimated.TotalCost),
		ActualHours:        wo.Actual.Hours,
		ActualPartsCost:    int64(wo.Actual.PartsCost),
		ActualLaborCost:    int64(wo.Actual.LaborCost),
		ActualTotalCost:    int64(wo.Actual.TotalCost),

		ActualStartDate:  utcPtr(wo.ActualStartDate),
		ActualEndDate:    utcPtr(wo.ActualEndDate),
		RequestedDueDate: utcPtr(wo.RequestedDueDate),

		TeamID:       wo.Assignment.TeamID,
		TechnicianID: wo.Assignment.TechnicianID,

		SourceType: wo.Source.Type,
		SourceID:   wo.Source.ID,

		Safety:      datatypes.NewJSONType(wo.Safety),
		Tags:        datatypes.JSONSlice[string](wo.Tags),
		TemplateRef: wo.TemplateRef,

		RejectionReason:    wo.RejectionReason,
		CancellationReason: wo.CancellationReason,

		CreatedAt: wo.CreatedAt.UTC(),
		UpdatedAt: wo.UpdatedAt.UTC(),
	}
	if wo.Number != "" {
		number := wo.Number
		row.Number = &number
	}
	if row.Tags == nil {
		row.Tags = datatypes.JSONSlice[string]{}
	}
	row.ApprovedBy, row.ApprovedAt = stampColumns(wo.Approved)
	row.RejectedBy, row.RejectedAt = stampColumns(wo.Rejected)
	row.PlannedBy, row.PlannedAt = stampColumns(wo.Planned)
	row.ScheduledBy, row.ScheduledAt = stampColumns(wo.Scheduled)
	row.VerifiedBy, row.VerifiedAt = stampColumns(wo.Verified)
	row.ClosedBy, row.ClosedAt = stampColumns(wo.Closed)
	row.CancelledBy, row.CancelledAt = stampColumns(wo.Cancelled)
	if wo.Schedule != nil {
		row.ScheduledStart = utcPtr(&wo.Schedule.Start)
		row.ScheduledEnd = utcPtr(&wo.Schedule.End)
	}
	if wo.Link != nil {
		linked := wo.Link.WorkOrderID
		row.LinkWorkOrderID = &linked
		row.LinkKind = string(wo.Link.Kind)
	}
	return row
}

func mapWorkOrder(row model.WorkOrder) workorder.WorkOrder {
	wo := workorder.WorkOrder{
		ID:            row.ID,
		Discipline:    workorder.Discipline(row.Discipline),
		Category:      row.Category,
		Type:          row.Type,
		Title:         row.Title,
		Description:   row.Description,
		Priority:      workorder.Priority(row.Priority),
		PriorityScore: row.PriorityScore,
		Status:        workorder.Status(row.Status),
		Version:       row.Version,

		Target:   workorder.TargetRef{Kind: workorder.TargetKind(row.TargetKind), ID: row.TargetID},
		Location: workorder.Location{PlantID: row.PlantID, AreaID: row.AreaID, SectorID: row.SectorID},

		Requested: workorder.StageStamp{Actor: row.RequestedBy, At: row.RequestedAt.UTC()},
		Approved:  stampFromColumns(row.ApprovedBy, row.ApprovedAt),
		Rejected:  stampFromColumns(row.RejectedBy, row.RejectedAt),
		Planned:   stampFromColumns(row.PlannedBy, row.PlannedAt),
		Scheduled: stampFromColumns(row.ScheduledBy, row.ScheduledAt),
		Verified:  stampFromColumns(row.VerifiedBy, row.VerifiedAt),
		Closed:    stampFromColumns(row.ClosedBy, row.ClosedAt),
		Cancelled: stampFromColumns(row.CancelledBy, row.CancelledAt),

		Estimated: workorder.Costs{
			Hours:     row.EstimatedHours,
			PartsCost: workorder.Money(row.EstimatedPartsCost),
			LaborCost: workorder.Money(row.EstimatedLaborCost),
			TotalCost: workorder.Money(row.EstimatedTotalCost),
		},
		Actual: workorder.Costs{
			Hours:     row.ActualHours,
			PartsCost: workorder.Money(row.ActualPartsCost),
			LaborCost: workorder.Money(row.ActualLaborCost),
			TotalCost: workorder.Money(row.ActualTotalCost),
		},

		ActualStartDate:  utcPtr(row.ActualStartDate),
		ActualEndDate:    utcPtr(row.ActualEndDate),
		RequestedDueDate: utcPtr(row.RequestedDueDate),
		Assignment:       workorder.Assignment{TeamID: row.TeamID, TechnicianID: row.TechnicianID},

		Source:      workorder.Source{Type: row.SourceType, ID: row.SourceID},
		Safety:      row.Safety.Data(),
		Tags:        []string(row.Tags),
		TemplateRef: row.TemplateRef,

		RejectionReason:    row.RejectionReason,
		CancellationReason: row.CancellationReason,

		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.Number != nil {
		wo.Number = *row.Number
	}
	if row.ScheduledStart != nil && row.ScheduledEnd != nil {
		wo.Schedule = &workorder.ScheduleWindow{Start: row.ScheduledStart.UTC(), End: row.ScheduledEnd.UTC()}
	}
	if row.LinkWorkOrderID != nil {
		wo.Link = &workorder.Link{WorkOrderID: *row.LinkWorkOrderID, Kind: workorder.LinkKind(row.LinkKind)}
	}
	return wo
}

func toPartRow(line workorder.PartLine) model.WorkOrderPart {
	return model.WorkOrderPart{
		ID:            line.ID,
		WorkOrderID:   line.WorkOrderID,
		CatalogPartID: line.CatalogPartID,
		Description:   line.Description,
		EstimatedQty:  line.EstimatedQty,
		ReservedQty:   line.ReservedQty,
		UsedQty:       line.UsedQty,
		ReturnedQty:   line.ReturnedQty,
		UnitCost:      int64(line.UnitCost),
		TotalCost:     int64(line.TotalCost),
		Status:        string(line.Status),
		LastChangedBy: line.LastChangedBy,
		LastChangedAt: line.LastChangedAt.UTC(),
		ReservedBy:    line.ReservedBy,
		ReservedAt:    utcPtr(line.ReservedAt),
		IssuedBy:      line.IssuedBy,
		IssuedAt:      utcPtr(line.IssuedAt),
		UsedBy:        line.UsedBy,
		UsedAt:        utcPtr(line.UsedAt),
		ReturnedBy:    line.ReturnedBy,
		ReturnedAt:    utcPtr(line.ReturnedAt),
	}
}

func mapPartLine(row model.WorkOrderPart) workorder.PartLine {
	return workorder.PartLine{
		ID:            row.ID,
		WorkOrderID:   row.WorkOrderID,
		CatalogPartID: row.CatalogPartID,
		Description:   row.Description,
		EstimatedQty:  row.EstimatedQty,
		ReservedQty:   row.ReservedQty,
		UsedQty:       row.UsedQty,
		ReturnedQty:   row.ReturnedQty,
		UnitCost:      workorder.Money(row.UnitCost),
		TotalCost:     workorder.Money(row.TotalCost),
		Status:        workorder.PartStatus(row.Status),
		LastChangedBy: row.LastChangedBy,
		LastChangedAt: row.LastChangedAt.UTC(),
		ReservedBy:    row.ReservedBy,
		ReservedAt:    utcPtr(row.ReservedAt),
		IssuedBy:      row.IssuedBy,
		IssuedAt:      utcPtr(row.IssuedAt),
		UsedBy:        row.UsedBy,
		UsedAt:        utcPtr(row.UsedAt),
		ReturnedBy:    row.ReturnedBy,
		ReturnedAt:    utcPtr(row.ReturnedAt),
	}
}

func toExecutionRow(exec workorder.Execution) model.WorkOrderExecution {
	return model.WorkOrderExecution{
		WorkOrderID:     exec.WorkOrderID,
		Executor:        exec.Executor,
		Status:          string(exec.Status),
		StartedAt:       utcPtr(exec.StartedAt),
		PausedAt:        utcPtr(exec.PausedAt),
		ResumedAt:       utcPtr(exec.ResumedAt),
		CompletedAt:     utcPtr(exec.CompletedAt),
		TotalPauseNanos: int64(exec.TotalPause),
		PauseCount:      exec.PauseCount,
		Checklist:       datatypes.NewJSONType(exec.Checklist),
		ActualNanos:     int64(exec.ActualDuration),
		DurationAnomaly: exec.DurationAnomaly,
		UpdatedAt:       exec.UpdatedAt.UTC(),
	}
}

func mapExecution(row model.WorkOrderExecution) workorder.Execution {
	return workorder.Execution{
		WorkOrderID:     row.WorkOrderID,
		Executor:        row.Executor,
		Status:          workorder.ExecutionStatus(row.Status),
		StartedAt:       utcPtr(row.StartedAt),
		PausedAt:        utcPtr(row.PausedAt),
		ResumedAt:       utcPtr(row.ResumedAt),
		CompletedAt:     utcPtr(row.CompletedAt),
		TotalPause:      time.Duration(row.TotalPauseNanos),
		PauseCount:      row.PauseCount,
		Checklist:       row.Checklist.Data(),
		ActualDuration:  time.Duration(row.ActualNanos),
		DurationAnomaly: row.DurationAnomaly,
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func mapHistory(row model.WorkOrderStatusHistory) workorder.HistoryEntry {
	entry := workorder.HistoryEntry{
		Seq:         row.Seq,
		EventUID:    row.EventUID,
		WorkOrderID: row.WorkOrderID,
		To:          workorder.Status(row.ToStatus),
		Actor:       row.Actor,
		Reason:      row.Reason,
		Metadata:    row.Metadata.Data(),
		OccurredAt:  row.OccurredAt.UTC(),
	}
	if row.FromStatus != nil {
		from := workorder.Status(*row.FromStatus)
		entry.From = &from
	}
	return entry
}
