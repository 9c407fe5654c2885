package workorder

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityUrgent    Priority = "urgent"
	PriorityHigh      Priority = "high"
	PriorityNormal    Priority = "normal"
	PriorityLow       Priority = "low"
)

const (
	MinPriorityScore = 0
	MaxPriorityScore = 100
)

var priorityScores = map[Priority]int{
	PriorityEmergency: 100,
	PriorityUrgent:    80,
	PriorityHigh:      60,
	PriorityNormal:    40,
	PriorityLow:       20,
}

// ParsePriority defaults an empty label to normal.
func ParsePriority(raw string) (Priority, error) {
	label := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if label == "" {
		return PriorityNormal, nil
	}
	if _, ok := priorityScores[label]; !ok {
		return "", validationf("unknown priority %q", raw)
	}
	return label, nil
}

func (p Priority) Score() int {
	return priorityScores[p]
}

// ResolvePriorityScore returns the label score, or the override clamped to [0,100].
func ResolvePriorityScore(label Priority, override *int) int {
	if override == nil {
		return label.Score()
	}
	return ClampPriorityScore(*override)
}

func ClampPriorityScore(score int) int {
	if score < MinPriorityScore {
		return MinPriorityScore
	}
	if score > MaxPriorityScore {
		return MaxPriorityScore
	}
	return score
}

// QueueLess orders by score desc, due date asc (missing last), requested_at asc, id asc.
func QueueLess(a, b *WorkOrder) bool {
	return compareQueue(a, b) < 0
}

// SortQueue sorts orders in place using the queue ordering.
func SortQueue(orders []WorkOrder) {
	slices.SortStableFunc(orders, func(a, b WorkOrder) int {
		return compareQueue(&a, &b)
	})
}

func compareQueue(a, b *WorkOrder) int {
	if a.PriorityScore != b.PriorityScore {
		if a.PriorityScore > b.PriorityScore {
			return -1
		}
		return 1
	}
	if c := compareOptionalTime(a.RequestedDueDate, b.RequestedDueDate); c != 0 {
		return c
	}
	if c := a.Requested.At.Compare(b.Requested.At); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}
