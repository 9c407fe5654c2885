package lifecycle

import (
	"context"
	"strings"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
)

// Approve admits a requested order when its estimated cost and priority are
// within the actor's threshold. Otherwise the result carries an Escalation,
// the order stays requested and no history row is written.
func (s *Service) Approve(ctx context.Context, input ApproveInput) (Result, error) {
	reason := strings.TrimSpace(input.Reason)
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionApprove,
		target:          workorder.StatusApproved,
		reason:          reason,
		expectedVersion: input.ExpectedVersion,
		apply: func(_ context.Context, st *txState) error {
			if st.grant.Threshold == nil {
				return workorder.Authorityf("no approval threshold configured")
			}
			threshold := *st.grant.Threshold
			decision := workorder.EvaluateApproval(st.wo.Estimated.TotalCost, st.wo.PriorityScore, threshold)
			if !decision.Allowed {
				st.escalation = decision.Escalation
				return nil
			}

			st.wo.Approved = &workorder.StageStamp{Actor: strings.TrimSpace(input.Actor), At: st.now}
			st.meta = workorder.TransitionMetadata{
				PriorityScore:      st.wo.PriorityScore,
				EstimatedTotalCost: st.wo.Estimated.TotalCost,
				Threshold:          &threshold,
			}
			return nil
		},
	})
}

func (s *Service) Reject(ctx context.Context, input RejectInput) (Result, error) {
	reason, err := workorder.RequireReason(input.Reason, "reject")
	if err != nil {
		return Result{}, err
	}
	return s.transition(ctx, transitionSpec{
		ref:             input.Ref,
		actor:           input.Actor,
		action:          ports.ActionReject,
		target:          workorder.StatusRejected,
		reason:          reason,
		expectedVersion: input.ExpectedVersion,
		apply: func(_ context.Context, st *txState) error {
			st.wo.Rejected = &workorder.StageStamp{Actor: strings.TrimSpace(input.Actor), At: st.now}
			st.wo.RejectionReason = reason
			st.meta = workorder.TransitionMetadata{RejectionReason: reason}
			return nil
		},
	})
}
