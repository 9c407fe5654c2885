package workorder

import (
	"fmt"
	"time"
)

// TransitionMetadata is the typed payload attached to a history row.
// Only the fields relevant to the transition are set.
type TransitionMetadata struct {
	PriorityScore      int            `json:"priority_score,omitempty"`
	EstimatedTotalCost Money          `json:"estimated_total_cost,omitempty"`
	Threshold          *Threshold     `json:"threshold,omitempty"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	Assignment         *Assignment    `json:"assignment,omitempty"`
	ReservedParts      int            `json:"reserved_parts,omitempty"`
	ReleasedStock      []StockRelease `json:"released_stock,omitempty"`
	PauseCount         int            `json:"pause_count,omitempty"`
	TotalPauseSeconds  int64          `json:"total_pause_seconds,omitempty"`
	ActualMinutes      float64        `json:"actual_minutes,omitempty"`
	DurationAnomaly    bool           `json:"duration_anomaly,omitempty"`
	Checklist          *Checklist     `json:"checklist,omitempty"`
}

// HistoryEntry is one immutable row of the status history.
type HistoryEntry struct {
	Seq         uint64
	EventUID    string
	WorkOrderID uint64
	From        *Status
	To          Status
	Actor       string
	Reason      string
	Metadata    TransitionMetadata
	OccurredAt  time.Time
}

func (h HistoryEntry) FromLabel() string {
	if h.From == nil {
		return "-"
	}
	return string(*h.From)
}

// ReconstructPath replays the rows and returns the status sequence,
// starting at requested. Gaps or a missing creation row are invariant violations.
func ReconstructPath(entries []HistoryEntry) ([]Status, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	first := entries[0]
	if first.From != nil || first.To != StatusRequested {
		return nil, invariantf("history must start with creation into %s, got %s -> %s", StatusRequested, first.FromLabel(), first.To)
	}

	path := make([]Status, 0, len(entries))
	path = append(path, first.To)
	for i := 1; i < len(entries); i++ {
		entry := entries[i]
		prev := path[len(path)-1]
		if entry.From == nil || *entry.From != prev {
			return nil, invariantf("history gap at seq %d: expected from %s, got %s", entry.Seq, prev, entry.FromLabel())
		}
		if !CanTransition(prev, entry.To) {
			return nil, invariantf("history seq %d records illegal transition %s -> %s", entry.Seq, prev, entry.To)
		}
		if entry.OccurredAt.Before(entries[i-1].OccurredAt) {
			return nil, invariantf("history seq %d is out of order", entry.Seq)
		}
		path = append(path, entry.To)
	}
	return path, nil
}

func (h HistoryEntry) String() string {
	return fmt.Sprintf("%s %s -> %s by %s", h.OccurredAt.Format(time.RFC3339), h.FromLabel(), h.To, h.Actor)
}
