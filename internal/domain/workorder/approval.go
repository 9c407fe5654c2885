package workorder

import (
	"fmt"
	"strings"
)

// Threshold is the ceiling under which an actor may approve on their own.
type Threshold struct {
	MaxCost          Money `json:"max_cost"`
	MaxPriorityScore int   `json:"max_priority_score"`
}

// Escalation describes why an approval has to be routed to a higher authority.
type Escalation struct {
	EstimatedTotalCost Money     `json:"estimated_total_cost"`
	PriorityScore      int       `json:"priority_score"`
	Threshold          Threshold `json:"threshold"`
	CostExceeded       bool      `json:"cost_exceeded"`
	PriorityExceeded   bool      `json:"priority_exceeded"`
}

func (e Escalation) Reason() string {
	parts := make([]string, 0, 2)
	if e.CostExceeded {
		parts = append(parts, fmt.Sprintf("estimated cost %s exceeds limit %s", e.EstimatedTotalCost, e.Threshold.MaxCost))
	}
	if e.PriorityExceeded {
		parts = append(parts, fmt.Sprintf("priority score %d exceeds limit %d", e.PriorityScore, e.Threshold.MaxPriorityScore))
	}
	return strings.Join(parts, "; ")
}

type ApprovalDecision struct {
	Allowed    bool
	Escalation *Escalation
}

// EvaluateApproval admits the order only when both cost and priority are within the threshold.
// Exceeding either one escalates rather than denies.
func EvaluateApproval(cost Money, priorityScore int, threshold Threshold) ApprovalDecision {
	costExceeded := cost > threshold.MaxCost
	priorityExceeded := priorityScore > threshold.MaxPriorityScore
	if !costExceeded && !priorityExceeded {
		return ApprovalDecision{Allowed: true}
	}
	return ApprovalDecision{
		Escalation: &Escalation{
			EstimatedTotalCost: cost,
			PriorityScore:      priorityScore,
			Threshold:          threshold,
			CostExceeded:       costExceeded,
			PriorityExceeded:   priorityExceeded,
		},
	}
}

// RequireReason enforces the non-empty reason rule for reject and cancel.
func RequireReason(reason string, action string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", validationf("%s requires a reason", action)
	}
	return trimmed, nil
}
