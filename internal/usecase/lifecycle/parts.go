package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

var (
	issueStatuses = []workorder.Status{
		workorder.StatusPlanned, workorder.StatusScheduled, workorder.StatusInProgress,
		workorder.StatusPaused, workorder.StatusCompleted,
	}
	consumeStatuses = []workorder.Status{
		workorder.StatusScheduled, workorder.StatusInProgress,
		workorder.StatusPaused, workorder.StatusCompleted,
	}
)

// IssuePart hands reserved stock to the technician. Stock was already decremented at reservation.
func (s *Service) IssuePart(ctx context.Context, input PartInput) (PartResult, error) {
	return s.mutatePart(ctx, "issue", input, issueStatuses, func(txCtx context.Context, line *workorder.PartLine, actor string, st *txState) error {
		return line.Issue(actor, st.now)
	})
}

// UsePart records consumption; the unused remainder returns to stock.
func (s *Service) UsePart(ctx context.Context, input PartInput) (PartResult, error) {
	return s.mutatePart(ctx, "use", input, consumeStatuses, func(txCtx context.Context, line *workorder.PartLine, actor string, st *txState) error {
		leftover, err := line.Use(input.Quantity, actor, st.now)
		if err != nil {
			return err
		}
		if line.IsStocked() && leftover > 0 {
			return s.catalog.Release(txCtx, *line.CatalogPartID, leftover)
		}
		return nil
	})
}

// ReturnPart gives part of a used quantity back to stock.
func (s *Service) ReturnPart(ctx context.Context, input PartInput) (PartResult, error) {
	return s.mutatePart(ctx, "return", input, consumeStatuses, func(txCtx context.Context, line *workorder.PartLine, actor string, st *txState) error {
		if err := line.Return(input.Quantity, actor, st.now); err != nil {
			return err
		}
		if line.IsStocked() {
			return s.catalog.Release(txCtx, *line.CatalogPartID, input.Quantity)
		}
		return nil
	})
}

// mutatePart applies one ledger step and rewrites the order's cost aggregates
// under the same compare-and-set as a transition. The status does not change,
// so no history row is written.
func (s *Service) mutatePart(
	ctx context.Context,
	op string,
	input PartInput,
	allowed []workorder.Status,
	fn func(txCtx context.Context, line *workorder.PartLine, actor string, st *txState) error,
) (PartResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return PartResult{}, err
	}
	if s.catalog == nil {
		return PartResult{}, errors.New("part catalog is required")
	}
	actor, err := requireActor(input.Actor)
	if err != nil {
		return PartResult{}, err
	}
	id, err := parseRef(input.Ref)
	if err != nil {
		return PartResult{}, err
	}
	if input.LineID == 0 {
		return PartResult{}, workorder.Validationf("part line id is required")
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "parts_ledger"),
		slog.String("actor", actor),
		slog.String("op", op),
	)

	now := s.now()
	var (
		result  PartResult
		current workorder.WorkOrder
	)
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		wo, err := s.repo.GetWorkOrderForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		current = wo
		if input.ExpectedVersion != nil && *input.ExpectedVersion != wo.Version {
			return workorder.Conflictf("expected version %d, found %d", *input.ExpectedVersion, wo.Version)
		}
		if !slices.Contains(allowed, wo.Status) {
			return workorder.NewError(workorder.KindInvalidTransition,
				fmt.Sprintf("cannot %s parts while the order is %s", op, wo.Status))
		}
		grant, err := s.authorize(txCtx, actor, ports.ActionParts, &wo)
		if err != nil {
			return err
		}

		line, err := s.repo.GetPartLine(txCtx, input.LineID)
		if err != nil {
			return err
		}
		if line.WorkOrderID != wo.ID {
			return ports.ErrPartLineNotFound
		}

		st := &txState{wo: &wo, from: wo.Status, grant: grant, now: now}
		if err := fn(txCtx, &line, actor, st); err != nil {
			return err
		}
		if err := s.repo.UpdatePartLine(txCtx, line); err != nil {
			return err
		}

		lines, err := s.repo.ListPartLines(txCtx, wo.ID)
		if err != nil {
			return err
		}
		wo.RecomputeCosts(lines)
		wo.UpdatedAt = now
		if err := wo.CheckInvariants(lines); err != nil {
			return err
		}
		expectedVersion := wo.Version
		if err := s.repo.UpdateWorkOrder(txCtx, wo, wo.Status, expectedVersion); err != nil {
			return err
		}
		wo.Version = expectedVersion + 1
		result = PartResult{WorkOrder: wo, Line: line}
		return nil
	})
	if err != nil {
		err = s.classify(ctx, err, &current, "", actor)
		logging.Warn(ctx, "part ledger update failed",
			slog.Uint64("work_order_id", id),
			slog.Uint64("part_line_id", input.LineID),
			slog.Any("err", errs.Loggable(err)),
		)
		return PartResult{}, err
	}

	logging.Info(ctx, "part line updated",
		slog.String("work_order", result.WorkOrder.Number),
		slog.Uint64("part_line_id", result.Line.ID),
		slog.String("part_status", string(result.Line.Status)),
		slog.String("actual_parts_cost", result.WorkOrder.Actual.PartsCost.String()),
	)
	return result, nil
}

// AddCatalogPart seeds or updates a catalog entry by SKU.
func (s *Service) AddCatalogPart(ctx context.Context, part ports.CatalogPart) (ports.CatalogPart, error) {
	if ctx == nil {
		return ports.CatalogPart{}, errors.New("context is required")
	}
	if s.catalog == nil {
		return ports.CatalogPart{}, errors.New("part catalog is required")
	}
	part.SKU = strings.TrimSpace(part.SKU)
	stored, err := s.catalog.UpsertPart(ctx, part)
	if err != nil {
		return ports.CatalogPart{}, err
	}
	logging.Info(ctx, "catalog part stored",
		slog.String("sku", stored.SKU),
		slog.Int64("available_quantity", stored.AvailableQty),
	)
	return stored, nil
}

func (s *Service) ListCatalogParts(ctx context.Context) ([]ports.CatalogPart, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if s.catalog == nil {
		return nil, errors.New("part catalog is required")
	}
	return s.catalog.ListParts(ctx)
}
