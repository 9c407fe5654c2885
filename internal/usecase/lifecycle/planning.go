package lifecycle

import (
	"context"
	"errors"
	"strings"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
)

// Plan attaches the estimate, schedule window, assignment and parts to an approved
// order. Every part line is reserved against catalog stock in the same transaction;
// a shortfall rolls the whole plan back.
func (s *Service) Plan(ctx context.Context, input PlanInput) (Result, error) {
	if input.EstimatedHours <= 0 {
		return Result{}, workorder.Validationf("estimated hours must be positive")
	}
	if input.Schedule.IsZero() || input.Schedule.Start.IsZero() || input.Schedule.End.IsZero() {
		return Result{}, workorder.Validationf("schedule window is required")
	}
	if input.Schedule.End.Before(input.Schedule.Start) {
		return Result{}, workorder.Validationf("schedule end is before schedule start")
	}
	if input.LaborCost != nil && *input.LaborCost < 0 {
		return Result{}, workorder.Validationf("labor cost must not be negative")
	}
	for i, part := range input.Parts {
		if part.Quantity <= 0 {
			return Result{}, workorder.Validationf("part %d: quantity must be positive", i+1)
		}
		if part.CatalogPartID == nil && part.UnitCost == nil {
			return Result{}, workorder.Validationf("part %d: direct purchase requires a unit cost", i+1)
		}
	}
	if len(input.Parts) > 0 && s.catalog == nil {
		return Result{}, errors.New("part catalog is required")
	}

	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionPlan,
		target:          workorder.StatusPlanned,
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			for _, part := range input.Parts {
				if _, err := s.reservePart(txCtx, st, actor, part); err != nil {
					return err
				}
			}

			lines, err := s.repo.ListPartLines(txCtx, st.wo.ID)
			if err != nil {
				return err
			}
			for _, line := range lines {
				if line.Status != workorder.PartReserved {
					return workorder.Validationf("part line %d is %s, every line must be reserved before planning completes", line.ID, line.Status)
				}
			}
			st.lines = lines
			st.linesReady = true

			labor := workorder.LaborCost(input.EstimatedHours*60, s.laborRate)
			if input.LaborCost != nil {
				labor = *input.LaborCost
			}
			window := input.Schedule
			window.Start = window.Start.UTC()
			window.End = window.End.UTC()

			st.wo.Estimated.Hours = input.EstimatedHours
			st.wo.Estimated.LaborCost = labor
			st.wo.RecomputeCosts(lines)
			st.wo.Schedule = &window
			if !input.Assignment.IsZero() {
				st.wo.Assignment = trimAssignment(input.Assignment)
			}
			if ref := strings.TrimSpace(input.TemplateRef); ref != "" {
				st.wo.TemplateRef = ref
			}
			st.wo.Planned = &workorder.StageStamp{Actor: actor, At: st.now}

			st.meta = workorder.TransitionMetadata{
				EstimatedTotalCost: st.wo.Estimated.TotalCost,
				ReservedParts:      len(lines),
			}
			if !st.wo.Assignment.IsZero() {
				assignment := st.wo.Assignment
				st.meta.Assignment = &assignment
			}
			return nil
		},
	})
}

// reservePart creates a planned line and reserves its full estimated quantity.
func (s *Service) reservePart(ctx context.Context, st *txState, actor string, part PartRequest) (workorder.PartLine, error) {
	description := strings.TrimSpace(part.Description)
	var unitCost workorder.Money
	if part.UnitCost != nil {
		unitCost = *part.UnitCost
	}
	if part.CatalogPartID != nil {
		catalogPart, err := s.catalog.GetPart(ctx, *part.CatalogPartID)
		if err != nil {
			return workorder.PartLine{}, err
		}
		if part.UnitCost == nil {
			unitCost = catalogPart.UnitCost
		}
		if description == "" {
			description = catalogPart.Name
		}
	}

	line, err := workorder.NewPartLine(st.wo.ID, part.CatalogPartID, description, part.Quantity, unitCost, actor, st.now)
	if err != nil {
		return workorder.PartLine{}, err
	}
	line, err = s.repo.CreatePartLine(ctx, line)
	if err != nil {
		return workorder.PartLine{}, err
	}
	if err := line.Reserve(line.EstimatedQty, actor, st.now); err != nil {
		return workorder.PartLine{}, err
	}
	if line.IsStocked() {
		if err := s.catalog.Reserve(ctx, *line.CatalogPartID, line.ReservedQty); err != nil {
			return workorder.PartLine{}, err
		}
	}
	if err := s.repo.UpdatePartLine(ctx, line); err != nil {
		return workorder.PartLine{}, err
	}
	return line, nil
}

// Schedule confirms the assignment of a planned order and opens its execution record.
func (s *Service) Schedule(ctx context.Context, input ScheduleInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionSchedule,
		target:          workorder.StatusScheduled,
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			if input.Assignment != nil && !input.Assignment.IsZero() {
				st.wo.Assignment = trimAssignment(*input.Assignment)
			}
			if st.wo.Assignment.IsZero() {
				return workorder.Validationf("an assignment (team or technician) is required to schedule")
			}

			technician := st.wo.Assignment.TechnicianID
			if s.preventDoubleBooking && technician != "" && st.wo.Schedule != nil {
				overlaps, err := s.repo.FindScheduleOverlaps(txCtx, technician, *st.wo.Schedule, st.wo.ID)
				if err != nil {
					return err
				}
				if len(overlaps) > 0 {
					return workorder.Validationf("technician %s is already booked on %s in an overlapping window",
						technician, overlaps[0].Number)
				}
			}

			exec := workorder.NewExecution(st.wo.ID, technician, st.now)
			if err := s.repo.SaveExecution(txCtx, *exec); err != nil {
				return err
			}

			st.wo.Scheduled = &workorder.StageStamp{Actor: actor, At: st.now}
			assignment := st.wo.Assignment
			st.meta = workorder.TransitionMetadata{Assignment: &assignment}
			return nil
		},
	})
}

func trimAssignment(a workorder.Assignment) workorder.Assignment {
	return workorder.Assignment{
		TeamID:       strings.TrimSpace(a.TeamID),
		TechnicianID: strings.TrimSpace(a.TechnicianID),
	}
}
