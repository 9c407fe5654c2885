package workorder

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusPlanned    Status = "planned"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusVerified   Status = "verified"
	StatusClosed     Status = "closed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusRequested,
	StatusApproved,
	StatusRejected,
	StatusPlanned,
	StatusScheduled,
	StatusInProgress,
	StatusPaused,
	StatusCompleted,
	StatusVerified,
	StatusClosed,
	StatusCancelled,
}

var transitions = map[Status][]Status{
	StatusRequested:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusPlanned, StatusCancelled},
	StatusPlanned:    {StatusScheduled, StatusCancelled},
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused:     {StatusInProgress, StatusCancelled},
	StatusCompleted:  {StatusVerified, StatusCancelled},
	StatusVerified:   {StatusClosed},
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus rejects anything outside the closed set.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", validationf("unknown status %q", raw)
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusClosed || s == StatusCancelled
}

// IsActiveExecution reports whether the order currently occupies its assignee.
func (s Status) IsActiveExecution() bool {
	return s == StatusScheduled || s == StatusInProgress || s == StatusPaused
}

// NextStatuses lists the statuses reachable in one step.
func (s Status) NextStatuses() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from Status, to Status) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidTransition error when to is unreachable from from.
func CheckTransition(from Status, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &Error{
		Kind:    KindInvalidTransition,
		Current: from,
		Target:  to,
		Detail:  fmt.Sprintf("%s cannot move to %s", from, to),
	}
}
