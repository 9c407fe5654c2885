package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

// txState is the mutable view handed to a transition's apply step.
type txState struct {
	wo         *workorder.WorkOrder
	from       workorder.Status
	grant      ports.Grant
	meta       workorder.TransitionMetadata
	lines      []workorder.PartLine
	linesReady bool
	escalation *workorder.Escalation
	now        time.Time
}

type transitionSpec struct {
	ref             string
	actor           string
	action          ports.Action
	target          workorder.Status
	reason          string
	expectedVersion *int64
	apply           func(ctx context.Context, st *txState) error
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("work order repository is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	if s.authorizer == nil {
		return errors.New("authorizer is required")
	}
	return nil
}

func requireActor(actor string) (string, error) {
	trimmed := strings.TrimSpace(actor)
	if trimmed == "" {
		return "", workorder.Validationf("actor is required")
	}
	return trimmed, nil
}

func parseRef(ref string) (uint64, error) {
	id, err := workorder.ParseRef(ref)
	if err != nil {
		return 0, &workorder.Error{Kind: workorder.KindValidation, Detail: "bad work order ref", Err: err}
	}
	return id, nil
}

// transition runs one status change in a single unit of work: lock and read,
// version check, table check, authorization, apply, compare-and-set write and
// exactly one history row. Without an expected version from the caller, the
// version seen by an unlocked read before the unit of work is used, so a
// transition that lands in between is a Conflict.
func (s *Service) transition(ctx context.Context, spec transitionSpec) (Result, error) {
	if err := s.checkReady(ctx); err != nil {
		return Result{}, err
	}
	actor, err := requireActor(spec.actor)
	if err != nil {
		return Result{}, err
	}
	id, err := parseRef(spec.ref)
	if err != nil {
		return Result{}, err
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "lifecycle"),
		slog.String("actor", actor),
		slog.String("action", string(spec.action)),
	)

	expected := spec.expectedVersion
	if expected == nil {
		seen, err := s.repo.GetWorkOrder(ctx, id)
		if err != nil {
			return Result{}, s.classify(ctx, err, nil, spec.target, actor)
		}
		expected = &seen.Version
	}

	now := s.now()
	var (
		result  Result
		current workorder.WorkOrder
	)
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		wo, err := s.repo.GetWorkOrderForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		current = wo

		if *expected != wo.Version {
			return workorder.Conflictf("expected version %d, found %d", *expected, wo.Version)
		}
		if err := workorder.CheckTransition(wo.Status, spec.target); err != nil {
			return err
		}

		grant, err := s.authorize(txCtx, actor, spec.action, &wo)
		if err != nil {
			return err
		}

		st := &txState{wo: &wo, from: wo.Status, grant: grant, now: now}
		if spec.apply != nil {
			if err := spec.apply(txCtx, st); err != nil {
				return err
			}
		}
		if st.escalation != nil {
			result = Result{WorkOrder: wo, Escalation: st.escalation}
			return nil
		}

		lines, err := st.partLines(txCtx, s.repo)
		if err != nil {
			return err
		}
		expectedVersion := wo.Version
		wo.Status = spec.target
		wo.UpdatedAt = now
		if err := wo.CheckInvariants(lines); err != nil {
			return err
		}
		if err := s.repo.UpdateWorkOrder(txCtx, wo, st.from, expectedVersion); err != nil {
			return err
		}
		wo.Version = expectedVersion + 1

		from := st.from
		event, err := s.repo.AppendHistory(txCtx, workorder.HistoryEntry{
			WorkOrderID: wo.ID,
			From:        &from,
			To:          spec.target,
			Actor:       actor,
			Reason:      spec.reason,
			Metadata:    st.meta,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}
		result = Result{WorkOrder: wo, Event: &event}
		return nil
	})
	if err != nil {
		err = s.classify(ctx, err, &current, spec.target, actor)
		logging.Warn(ctx, "work order transition failed",
			slog.Uint64("work_order_id", id),
			slog.String("transition", fmt.Sprintf("%s->%s", current.Status, spec.target)),
			slog.Any("err", errs.Loggable(err)),
		)
		return Result{}, err
	}

	ctx = logging.WithWorkOrder(ctx, result.WorkOrder.Number, string(result.WorkOrder.Status))
	if result.Escalation != nil {
		s.metrics.RecordEscalation(ctx)
		logging.Info(ctx, "approval escalated",
			slog.String("escalation", result.Escalation.Reason()),
		)
		return result, nil
	}

	s.metrics.RecordTransition(ctx, string(current.Status), spec.target)
	logging.Info(ctx, "work order transitioned",
		slog.String("transition", fmt.Sprintf("%s->%s", current.Status, spec.target)),
		slog.Int64("version", result.WorkOrder.Version),
	)
	return result, nil
}

func (st *txState) partLines(ctx context.Context, repo ports.WorkOrderRepository) ([]workorder.PartLine, error) {
	if st.linesReady {
		return st.lines, nil
	}
	lines, err := repo.ListPartLines(ctx, st.wo.ID)
	if err != nil {
		return nil, err
	}
	st.lines = lines
	st.linesReady = true
	return lines, nil
}

// authorize checks the action grant and that the order's location is inside the actor's scope.
func (s *Service) authorize(ctx context.Context, actor string, action ports.Action, wo *workorder.WorkOrder) (ports.Grant, error) {
	grant, err := s.authorizer.Authorize(ctx, ports.AuthorizationRequest{
		Actor:  actor,
		Action: action,
		Subject: ports.AuthorizationSubject{
			WorkOrderID:        wo.ID,
			Number:             wo.Number,
			Discipline:         wo.Discipline,
			Location:           wo.Location,
			Assignment:         wo.Assignment,
			EstimatedTotalCost: wo.Estimated.TotalCost,
			PriorityScore:      wo.PriorityScore,
		},
	})
	if err != nil {
		return ports.Grant{}, errs.Wrap(err, "authorize")
	}
	if !grant.Allowed {
		detail := fmt.Sprintf("%s is not permitted to %s", actor, action)
		if grant.Reason != "" {
			detail += ": " + grant.Reason
		}
		return ports.Grant{}, workorder.Authorityf("%s", detail)
	}
	if !grant.Scope.Contains(wo.Location) {
		return ports.Grant{}, workorder.Authorityf("%s has no scope over plant %q area %q sector %q",
			actor, wo.Location.PlantID, wo.Location.AreaID, wo.Location.SectorID)
	}
	return grant, nil
}

// classify turns port sentinels into typed lifecycle errors and records the failure metrics.
func (s *Service) classify(ctx context.Context, err error, wo *workorder.WorkOrder, target workorder.Status, actor string) error {
	var out error
	switch {
	case errors.Is(err, ports.ErrStaleWorkOrder), errors.Is(err, ports.ErrConcurrentWrite):
		out = &workorder.Error{Kind: workorder.KindConflict, Detail: "work order was modified concurrently", Err: err}
	case errors.Is(err, ports.ErrStockExhausted):
		out = &workorder.Error{Kind: workorder.KindInsufficientStock, Detail: "catalog stock is insufficient", Err: err}
	case errors.Is(err, ports.ErrWorkOrderNotFound):
		out = &workorder.Error{Kind: workorder.KindNotFound, Detail: "work order not found", Err: err}
	case errors.Is(err, ports.ErrPartLineNotFound):
		out = &workorder.Error{Kind: workorder.KindNotFound, Detail: "part line not found", Err: err}
	case errors.Is(err, ports.ErrCatalogPartNotFound):
		out = &workorder.Error{Kind: workorder.KindValidation, Detail: "unknown catalog part", Err: err}
	case errors.Is(err, ports.ErrExecutionNotFound):
		out = &workorder.Error{Kind: workorder.KindInvariantViolation, Detail: "execution record missing", Err: err}
	default:
		out = err
	}

	var ctxWO *workorder.WorkOrder
	if wo != nil && wo.ID != 0 {
		ctxWO = wo
	}
	out = workorder.WithContext(out, ctxWO, target, actor)

	switch workorder.KindOf(out) {
	case workorder.KindConflict:
		s.metrics.RecordConflict(ctx)
	case workorder.KindInsufficientStock:
		s.metrics.RecordStockRejection(ctx)
	}
	return out
}
