package workorder

import (
	"fmt"
	"strings"
	"time"
)

type ExecutionStatus string

const (
	ExecutionAssigned   ExecutionStatus = "assigned"
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionPaused     ExecutionStatus = "paused"
	ExecutionCompleted  ExecutionStatus = "completed"
)

func ParseExecutionStatus(raw string) (ExecutionStatus, error) {
	switch s := ExecutionStatus(strings.TrimSpace(raw)); s {
	case ExecutionAssigned, ExecutionInProgress, ExecutionPaused, ExecutionCompleted:
		return s, nil
	}
	return "", validationf("unknown execution status %q", raw)
}

// Checklist is the set of completion flags the executor confirms.
type Checklist struct {
	WorkPerformed  bool   `json:"work_performed"`
	SafetyVerified bool   `json:"safety_verified"`
	AreaCleaned    bool   `json:"area_cleaned"`
	ToolsReturned  bool   `json:"tools_returned"`
	Notes          string `json:"notes,omitempty"`
}

// Missing lists the unchecked mandatory flags.
func (c Checklist) Missing() []string {
	missing := make([]string, 0, 4)
	if !c.WorkPerformed {
		missing = append(missing, "work_performed")
	}
	if !c.SafetyVerified {
		missing = append(missing, "safety_verified")
	}
	if !c.AreaCleaned {
		missing = append(missing, "area_cleaned")
	}
	if !c.ToolsReturned {
		missing = append(missing, "tools_returned")
	}
	return missing
}

func (c Checklist) Satisfied() bool {
	return len(c.Missing()) == 0
}

// Execution tracks active work time. Pause and resume are pure timestamp
// arithmetic; nothing here runs a timer.
type Execution struct {
	WorkOrderID     uint64
	Executor        string
	Status          ExecutionStatus
	StartedAt       *time.Time
	PausedAt        *time.Time
	ResumedAt       *time.Time
	CompletedAt     *time.Time
	TotalPause      time.Duration
	PauseCount      int
	Checklist       Checklist
	ActualDuration  time.Duration
	DurationAnomaly bool
	UpdatedAt       time.Time
}

func NewExecution(workOrderID uint64, executor string, now time.Time) *Execution {
	return &Execution{
		WorkOrderID: workOrderID,
		Executor:    executor,
		Status:      ExecutionAssigned,
		UpdatedAt:   now,
	}
}

func (e *Execution) illegal(op string) error {
	return &Error{
		Kind:        KindInvalidTransition,
		WorkOrderID: e.WorkOrderID,
		Detail:      fmt.Sprintf("cannot %s an execution that is %s", op, e.Status),
	}
}

// Start stamps started_at once; calling it again while in progress is a no-op.
func (e *Execution) Start(now time.Time) error {
	switch e.Status {
	case ExecutionInProgress:
		return nil
	case ExecutionAssigned:
	default:
		return e.illegal("start")
	}
	if e.StartedAt == nil {
		started := now
		e.StartedAt = &started
	}
	e.Status = ExecutionInProgress
	e.UpdatedAt = now
	return nil
}

func (e *Execution) Pause(now time.Time) error {
	if e.Status != ExecutionInProgress {
		return e.illegal("pause")
	}
	paused := now
	e.PausedAt = &paused
	e.PauseCount++
	e.Status = ExecutionPaused
	e.UpdatedAt = now
	return nil
}

// Resume folds the paused interval into TotalPause.
func (e *Execution) Resume(now time.Time) error {
	if e.Status != ExecutionPaused {
		return e.illegal("resume")
	}
	if e.PausedAt == nil {
		return invariantf("paused execution has no paused_at")
	}
	interval := now.Sub(*e.PausedAt)
	if interval < 0 {
		return invariantf("resume at %s precedes pause at %s", now.Format(time.RFC3339), e.PausedAt.Format(time.RFC3339))
	}
	e.TotalPause += interval
	resumed := now
	e.ResumedAt = &resumed
	e.Status = ExecutionInProgress
	e.UpdatedAt = now
	return nil
}

// Complete is only legal from in_progress; a paused execution must be resumed first.
func (e *Execution) Complete(now time.Time, checklist Checklist) error {
	if e.Status != ExecutionInProgress {
		return e.illegal("complete")
	}
	if missing := checklist.Missing(); len(missing) > 0 {
		return validationf("completion checklist incomplete: %s", strings.Join(missing, ", "))
	}
	if e.StartedAt == nil {
		return invariantf("in-progress execution has no started_at")
	}

	completed := now
	e.CompletedAt = &completed
	e.Checklist = checklist
	e.ActualDuration, e.DurationAnomaly = ActiveDuration(*e.StartedAt, now, e.TotalPause)
	e.Status = ExecutionCompleted
	e.UpdatedAt = now
	return nil
}

// ActiveDuration is completed - started - paused, floored at zero.
// anomaly reports that the raw value was negative.
func ActiveDuration(started time.Time, completed time.Time, paused time.Duration) (time.Duration, bool) {
	raw := completed.Sub(started) - paused
	if raw < 0 {
		return 0, true
	}
	return raw, false
}

func (e *Execution) IsImmutable() bool {
	return e.Status == ExecutionCompleted
}
