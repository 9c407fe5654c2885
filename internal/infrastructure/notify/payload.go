package notify

import (
	"encoding/json"
	"strings"
	"time"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
)

const DefaultSubjectPrefix = "maintflow.workorders"

// Payload is the wire form of a history event.
type Payload struct {
	EventUID    string                       `json:"event_uid"`
	Seq         uint64                       `json:"seq"`
	WorkOrderID uint64                       `json:"work_order_id"`
	Number      string                       `json:"number"`
	Discipline  string                       `json:"discipline"`
	From        string                       `json:"from,omitempty"`
	To          string                       `json:"to"`
	Actor       string                       `json:"actor"`
	Reason      string                       `json:"reason,omitempty"`
	Metadata    workorder.TransitionMetadata `json:"metadata"`
	OccurredAt  time.Time                    `json:"occurred_at"`
}

func NewPayload(event ports.HistoryEvent) Payload {
	p := Payload{
		EventUID:    event.EventUID,
		Seq:         event.Seq,
		WorkOrderID: event.WorkOrderID,
		Number:      event.Number,
		Discipline:  string(event.Discipline),
		To:          string(event.To),
		Actor:       event.Actor,
		Reason:      event.Reason,
		Metadata:    event.Metadata,
		OccurredAt:  event.OccurredAt.UTC(),
	}
	if event.From != nil {
		p.From = string(*event.From)
	}
	return p
}

func EncodePayload(event ports.HistoryEvent) ([]byte, error) {
	return json.Marshal(NewPayload(event))
}

// Subject builds "<prefix>.<discipline>.<to_status>".
func Subject(prefix string, event ports.HistoryEvent) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	discipline := string(event.Discipline)
	if discipline == "" {
		discipline = string(workorder.DisciplineMaintenance)
	}
	return prefix + "." + discipline + "." + string(event.To)
}
