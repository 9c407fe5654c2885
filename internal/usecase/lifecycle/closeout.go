package lifecycle

import (
	"context"
	"errors"
	"strings"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
)

// Verify signs off completed work. The verifier must not be the executor.
func (s *Service) Verify(ctx context.Context, input ExecutionInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionVerify,
		target:          workorder.StatusVerified,
		reason:          strings.TrimSpace(input.Reason),
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			exec, err := s.repo.GetExecution(txCtx, st.wo.ID)
			if err != nil && !errors.Is(err, ports.ErrExecutionNotFound) {
				return err
			}
			if exec.Executor != "" && exec.Executor == actor {
				return workorder.Authorityf("the executor cannot verify their own work")
			}
			st.wo.Verified = &workorder.StageStamp{Actor: actor, At: st.now}
			return nil
		},
	})
}

func (s *Service) Close(ctx context.Context, input ExecutionInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionClose,
		target:          workorder.StatusClosed,
		reason:          strings.TrimSpace(input.Reason),
		expectedVersion: input.ExpectedVersion,
		apply: func(_ context.Context, st *txState) error {
			st.wo.Closed = &workorder.StageStamp{Actor: actor, At: st.now}
			return nil
		},
	})
}

// Cancel stops the order from any non-terminal stage before verification. Reserved,
// not yet issued quantities go back to catalog stock in the same transaction.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (Result, error) {
	reason, err := workorder.RequireReason(input.Reason, "cancel")
	if err != nil {
		return Result{}, err
	}
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionCancel,
		target:          workorder.StatusCancelled,
		reason:          reason,
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			lines, err := s.repo.ListPartLines(txCtx, st.wo.ID)
			if err != nil {
				return err
			}

			var releases []workorder.StockRelease
			for i := range lines {
				line := &lines[i]
				if line.Status != workorder.PartReserved {
					continue
				}
				qty, err := line.Release(actor, st.now)
				if err != nil {
					return err
				}
				if line.IsStocked() && qty > 0 {
					if s.catalog == nil {
						return errors.New("part catalog is required")
					}
					if err := s.catalog.Release(txCtx, *line.CatalogPartID, qty); err != nil {
						return err
					}
					releases = append(releases, workorder.StockRelease{
						PartLineID:    line.ID,
						CatalogPartID: *line.CatalogPartID,
						Quantity:      qty,
					})
				}
				if err := s.repo.UpdatePartLine(txCtx, *line); err != nil {
					return err
				}
			}
			st.lines = lines
			st.linesReady = true
			st.wo.RecomputeCosts(lines)

			st.wo.Cancelled = &workorder.StageStamp{Actor: actor, At: st.now}
			st.wo.CancellationReason = reason
			st.meta = workorder.TransitionMetadata{
				CancellationReason: reason,
				ReleasedStock:      releases,
			}
			return nil
		},
	})
}
