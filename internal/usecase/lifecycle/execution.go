package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
)

// StartExecution moves a scheduled order to in_progress. The execution record is
// created here if scheduling did not open one.
func (s *Service) StartExecution(ctx context.Context, input ExecutionInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionExecute,
		target:          workorder.StatusInProgress,
		reason:          strings.TrimSpace(input.Reason),
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			exec, err := s.repo.GetExecution(txCtx, st.wo.ID)
			switch {
			case errors.Is(err, ports.ErrExecutionNotFound):
				exec = *workorder.NewExecution(st.wo.ID, st.wo.Assignment.TechnicianID, st.now)
			case err != nil:
				return err
			}
			if err := checkExecutor(st, &exec, actor); err != nil {
				return err
			}
			if exec.Executor == "" {
				exec.Executor = actor
			}
			if err := exec.Start(st.now); err != nil {
				return err
			}
			if err := s.repo.SaveExecution(txCtx, exec); err != nil {
				return err
			}
			if st.wo.ActualStartDate == nil {
				started := *exec.StartedAt
				st.wo.ActualStartDate = &started
			}
			return nil
		},
	})
}

func (s *Service) Pause(ctx context.Context, input ExecutionInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionExecute,
		target:          workorder.StatusPaused,
		reason:          strings.TrimSpace(input.Reason),
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			return s.mutateExecution(txCtx, st, actor, func(exec *workorder.Execution) error {
				if err := exec.Pause(st.now); err != nil {
					return err
				}
				st.meta = workorder.TransitionMetadata{PauseCount: exec.PauseCount}
				return nil
			})
		},
	})
}

func (s *Service) Resume(ctx context.Context, input ExecutionInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionExecute,
		target:          workorder.StatusInProgress,
		reason:          strings.TrimSpace(input.Reason),
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			return s.mutateExecution(txCtx, st, actor, func(exec *workorder.Execution) error {
				if err := exec.Resume(st.now); err != nil {
					return err
				}
				st.meta = workorder.TransitionMetadata{
					PauseCount:        exec.PauseCount,
					TotalPauseSeconds: int64(exec.TotalPause / time.Second),
				}
				return nil
			})
		},
	})
}

// Complete closes the execution and fills the actuals: hours, labor at the
// configured rate, consumed parts and their total.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (Result, error) {
	actor := strings.TrimSpace(input.Actor)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionExecute,
		target:          workorder.StatusCompleted,
		expectedVersion: input.ExpectedVersion,
		apply: func(txCtx context.Context, st *txState) error {
			return s.mutateExecution(txCtx, st, actor, func(exec *workorder.Execution) error {
				if err := exec.Complete(st.now, input.Checklist); err != nil {
					return err
				}

				lines, err := st.partLines(txCtx, s.repo)
				if err != nil {
					return err
				}
				minutes := exec.ActualDuration.Minutes()
				st.wo.Actual.Hours = minutes / 60
				st.wo.Actual.LaborCost = workorder.LaborCost(minutes, s.laborRate)
				st.wo.RecomputeCosts(lines)
				completed := *exec.CompletedAt
				st.wo.ActualEndDate = &completed
				if st.wo.ActualStartDate == nil && exec.StartedAt != nil {
					started := *exec.StartedAt
					st.wo.ActualStartDate = &started
				}

				checklist := exec.Checklist
				st.meta = workorder.TransitionMetadata{
					PauseCount:        exec.PauseCount,
					TotalPauseSeconds: int64(exec.TotalPause / time.Second),
					ActualMinutes:     minutes,
					DurationAnomaly:   exec.DurationAnomaly,
					Checklist:         &checklist,
				}
				return nil
			})
		},
	})
}

func (s *Service) mutateExecution(ctx context.Context, st *txState, actor string, fn func(exec *workorder.Execution) error) error {
	exec, err := s.repo.GetExecution(ctx, st.wo.ID)
	if err != nil {
		return err
	}
	if exec.IsImmutable() {
		return workorder.NewError(workorder.KindInvalidTransition, "execution is completed and can no longer change")
	}
	if err := checkExecutor(st, &exec, actor); err != nil {
		return err
	}
	if err := fn(&exec); err != nil {
		return err
	}
	return s.repo.SaveExecution(ctx, exec)
}

// checkExecutor allows only the recorded executor, else the assigned technician,
// else a member of the assigned team.
func checkExecutor(st *txState, exec *workorder.Execution, actor string) error {
	switch {
	case exec.Executor != "":
		if exec.Executor != actor {
			return workorder.Authorityf("execution belongs to %s", exec.Executor)
		}
	case st.wo.Assignment.TechnicianID != "":
		if st.wo.Assignment.TechnicianID != actor {
			return workorder.Authorityf("order is assigned to technician %s", st.wo.Assignment.TechnicianID)
		}
	case st.wo.Assignment.TeamID != "":
		if !st.grant.Scope.HasTeam(st.wo.Assignment.TeamID) {
			return workorder.Authorityf("%s is not a member of team %s", actor, st.wo.Assignment.TeamID)
		}
	default:
		return workorder.Validationf("order has no assignment")
	}
	return nil
}
