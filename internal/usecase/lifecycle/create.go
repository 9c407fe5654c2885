package lifecycle

import (
	"context"
	"log/slog"
	"strings"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

// Create validates a request, resolves its target location and stores it as requested
// together with the creation history row.
func (s *Service) Create(ctx context.Context, input CreateInput) (Result, error) {
	if err := s.checkReady(ctx); err != nil {
		return Result{}, err
	}
	if s.directory == nil {
		return Result{}, workorder.Validationf("target directory is not configured")
	}
	actor, err := requireActor(input.Actor)
	if err != nil {
		return Result{}, err
	}

	wo, err := s.buildRequest(ctx, actor, input)
	if err != nil {
		return Result{}, err
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "lifecycle"),
		slog.String("actor", actor),
		slog.String("action", string(ports.ActionCreate)),
	)

	if _, err := s.authorize(ctx, actor, ports.ActionCreate, &wo); err != nil {
		return Result{}, workorder.WithContext(err, nil, workorder.StatusRequested, actor)
	}

	var result Result
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if wo.Link != nil {
			if _, err := s.repo.GetWorkOrder(txCtx, wo.Link.WorkOrderID); err != nil {
				return err
			}
		}
		if err := wo.CheckInvariants(nil); err != nil {
			return err
		}

		created, err := s.repo.CreateWorkOrder(txCtx, wo)
		if err != nil {
			return err
		}
		event, err := s.repo.AppendHistory(txCtx, workorder.HistoryEntry{
			WorkOrderID: created.ID,
			To:          workorder.StatusRequested,
			Actor:       actor,
			Metadata: workorder.TransitionMetadata{
				PriorityScore:      created.PriorityScore,
				EstimatedTotalCost: created.Estimated.TotalCost,
			},
			OccurredAt: wo.CreatedAt,
		})
		if err != nil {
			return err
		}
		result = Result{WorkOrder: created, Event: &event}
		return nil
	})
	if err != nil {
		err = s.classify(ctx, err, nil, workorder.StatusRequested, actor)
		logging.Warn(ctx, "work order create failed", slog.Any("err", errs.Loggable(err)))
		return Result{}, err
	}

	s.metrics.RecordTransition(ctx, "", workorder.StatusRequested)
	logging.Info(ctx, "work order created",
		slog.String("work_order", result.WorkOrder.Number),
		slog.Int("priority_score", result.WorkOrder.PriorityScore),
	)
	return result, nil
}

func (s *Service) buildRequest(ctx context.Context, actor string, input CreateInput) (workorder.WorkOrder, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return workorder.WorkOrder{}, workorder.Validationf("title is required")
	}
	discipline, err := workorder.ParseDiscipline(input.Discipline)
	if err != nil {
		return workorder.WorkOrder{}, err
	}
	priority, err := workorder.ParsePriority(input.Priority)
	if err != nil {
		return workorder.WorkOrder{}, err
	}
	kind, err := workorder.ParseTargetKind(input.TargetKind)
	if err != nil {
		return workorder.WorkOrder{}, err
	}
	targetID := strings.TrimSpace(input.TargetID)
	if targetID == "" {
		return workorder.WorkOrder{}, workorder.Validationf("target id is required")
	}
	target := workorder.TargetRef{Kind: kind, ID: targetID}

	location, err := s.directory.Resolve(ctx, discipline, target)
	if err != nil {
		return workorder.WorkOrder{}, err
	}

	if input.EstimatedHours < 0 {
		return workorder.WorkOrder{}, workorder.Validationf("estimated hours must not be negative")
	}
	labor := workorder.LaborCost(input.EstimatedHours*60, s.laborRate)
	if input.EstimatedLaborCost != nil {
		if *input.EstimatedLaborCost < 0 {
			return workorder.WorkOrder{}, workorder.Validationf("estimated labor cost must not be negative")
		}
		labor = *input.EstimatedLaborCost
	}

	now := s.now()
	wo := workorder.WorkOrder{
		Discipline:       discipline,
		Category:         strings.TrimSpace(input.Category),
		Type:             strings.TrimSpace(input.Type),
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		Priority:         priority,
		PriorityScore:    workorder.ResolvePriorityScore(priority, input.PriorityScore),
		Status:           workorder.StatusRequested,
		Version:          1,
		Target:           target,
		Location:         location,
		Requested:        workorder.StageStamp{Actor: actor, At: now},
		Estimated:        workorder.Costs{Hours: input.EstimatedHours, LaborCost: labor, TotalCost: labor},
		RequestedDueDate: input.RequestedDueDate,
		Source:           input.Source,
		Safety:           input.Safety,
		Tags:             workorder.NormalizeTags(input.Tags),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if ref := strings.TrimSpace(input.LinkRef); ref != "" {
		linkedID, err := parseRef(ref)
		if err != nil {
			return workorder.WorkOrder{}, err
		}
		kind, err := workorder.ParseLinkKind(input.LinkKind)
		if err != nil {
			return workorder.WorkOrder{}, err
		}
		wo.Link = &workorder.Link{WorkOrderID: linkedID, Kind: kind}
	}
	return wo, nil
}
