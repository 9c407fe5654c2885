package lifecycle

import (
	"context"
	"errors"
	"slices"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

type ListQueueInput struct {
	Statuses        []string
	Discipline      string
	TechnicianID    string
	TeamID          string
	IncludeTerminal bool
	Limit           int
}

// Get returns the order with its part lines and execution record (nil before scheduling).
func (s *Service) Get(ctx context.Context, ref string) (Details, error) {
	if err := s.checkRead(ctx); err != nil {
		return Details{}, err
	}
	id, err := parseRef(ref)
	if err != nil {
		return Details{}, err
	}

	wo, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return Details{}, s.classify(ctx, err, nil, "", "")
	}
	lines, err := s.repo.ListPartLines(ctx, id)
	if err != nil {
		return Details{}, errs.Wrap(err, "load part lines")
	}
	details := Details{WorkOrder: wo, Parts: lines}
	exec, err := s.repo.GetExecution(ctx, id)
	switch {
	case err == nil:
		details.Execution = &exec
	case !errors.Is(err, ports.ErrExecutionNotFound):
		return Details{}, errs.Wrap(err, "load execution")
	}
	return details, nil
}

// ListQueue returns open orders in queue order unless filters say otherwise.
func (s *Service) ListQueue(ctx context.Context, input ListQueueInput) ([]workorder.WorkOrder, error) {
	if err := s.checkRead(ctx); err != nil {
		return nil, err
	}
	filter := ports.WorkOrderFilter{
		TechnicianID:    input.TechnicianID,
		TeamID:          input.TeamID,
		IncludeTerminal: input.IncludeTerminal,
		Limit:           input.Limit,
	}
	for _, raw := range input.Statuses {
		status, err := workorder.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(filter.Statuses, status) {
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if input.Discipline != "" {
		discipline, err := workorder.ParseDiscipline(input.Discipline)
		if err != nil {
			return nil, err
		}
		filter.Discipline = discipline
	}
	items, err := s.repo.ListWorkOrders(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list work orders")
	}
	return items, nil
}

// Timeline returns the history ordered by time then sequence, plus the verified status path.
func (s *Service) Timeline(ctx context.Context, ref string) (Timeline, error) {
	if err := s.checkRead(ctx); err != nil {
		return Timeline{}, err
	}
	id, err := parseRef(ref)
	if err != nil {
		return Timeline{}, err
	}
	wo, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return Timeline{}, s.classify(ctx, err, nil, "", "")
	}
	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return Timeline{}, errs.Wrap(err, "load status history")
	}
	slices.SortStableFunc(entries, func(a, b workorder.HistoryEntry) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	path, err := workorder.ReconstructPath(entries)
	if err != nil {
		return Timeline{}, workorder.WithContext(err, &wo, "", "")
	}
	if len(path) > 0 && path[len(path)-1] != wo.Status {
		return Timeline{}, workorder.WithContext(
			workorder.NewError(workorder.KindInvariantViolation, "history does not end at the current status"),
			&wo, "", "")
	}
	return Timeline{WorkOrder: wo, Entries: entries, Path: path}, nil
}

func (s *Service) checkRead(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("work order repository is required")
	}
	return nil
}
