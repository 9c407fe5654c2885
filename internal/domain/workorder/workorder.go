package workorder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Discipline string

const (
	DisciplineMaintenance Discipline = "maintenance"
	DisciplineQuality     Discipline = "quality"
)

func ParseDiscipline(raw string) (Discipline, error) {
	switch Discipline(strings.ToLower(strings.TrimSpace(raw))) {
	case DisciplineMaintenance, "":
		return DisciplineMaintenance, nil
	case DisciplineQuality:
		return DisciplineQuality, nil
	}
	return "", validationf("unknown discipline %q", raw)
}

func (d Discipline) numberPrefix() string {
	if d == DisciplineQuality {
		return "QLT"
	}
	return "MNT"
}

type TargetKind string

const (
	TargetAsset      TargetKind = "asset"
	TargetInstrument TargetKind = "instrument"
)

type TargetRef struct {
	Kind TargetKind
	ID   string
}

func ParseTargetKind(raw string) (TargetKind, error) {
	switch TargetKind(strings.ToLower(strings.TrimSpace(raw))) {
	case TargetAsset:
		return TargetAsset, nil
	case TargetInstrument:
		return TargetInstrument, nil
	}
	return "", validationf("unknown target kind %q", raw)
}

// Location is the hierarchy position of a target, as resolved by the directory.
type Location struct {
	PlantID  string
	AreaID   string
	SectorID string
}

type LinkKind string

const (
	LinkFollowUp    LinkKind = "follow_up"
	LinkDuplicateOf LinkKind = "duplicate_of"
	LinkParent      LinkKind = "parent"
	LinkRelated     LinkKind = "related"
)

func ParseLinkKind(raw string) (LinkKind, error) {
	switch LinkKind(strings.ToLower(strings.TrimSpace(raw))) {
	case LinkFollowUp:
		return LinkFollowUp, nil
	case LinkDuplicateOf:
		return LinkDuplicateOf, nil
	case LinkParent:
		return LinkParent, nil
	case LinkRelated, "":
		return LinkRelated, nil
	}
	return "", validationf("unknown link kind %q", raw)
}

type Link struct {
	WorkOrderID uint64
	Kind        LinkKind
}

type Source struct {
	Type string
	ID   string
}

// SafetyRequirements is stored as JSON but handled as a typed value everywhere else.
type SafetyRequirements struct {
	PermitRequired bool     `json:"permit_required"`
	LockoutTagout  bool     `json:"lockout_tagout"`
	PPE            []string `json:"ppe,omitempty"`
	Hazards        []string `json:"hazards,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

type Assignment struct {
	TeamID       string `json:"team_id,omitempty"`
	TechnicianID string `json:"technician_id,omitempty"`
}

func (a Assignment) IsZero() bool {
	return strings.TrimSpace(a.TeamID) == "" && strings.TrimSpace(a.TechnicianID) == ""
}

type ScheduleWindow struct {
	Start time.Time
	End   time.Time
}

func (w ScheduleWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

func (w ScheduleWindow) Overlaps(other ScheduleWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// StageStamp records who moved the order into a stage and when.
type StageStamp struct {
	Actor string
	At    time.Time
}

func (s *StageStamp) IsZero() bool {
	return s == nil || (s.Actor == "" && s.At.IsZero())
}

type Costs struct {
	Hours     float64
	PartsCost Money
	LaborCost Money
	TotalCost Money
}

type WorkOrder struct {
	ID          uint64
	Number      string
	Discipline  Discipline
	Category    string
	Type        string
	Title       string
	Description string

	Priority      Priority
	PriorityScore int

	Status  Status
	Version int64

	Target   TargetRef
	Location Location

	Requested StageStamp
	Approved  *StageStamp
	Rejected  *StageStamp
	Planned   *StageStamp
	Scheduled *StageStamp
	Verified  *StageStamp
	Closed    *StageStamp
	Cancelled *StageStamp

	Estimated Costs
	Actual    Costs

	ActualStartDate  *time.Time
	ActualEndDate    *time.Time
	RequestedDueDate *time.Time
	Schedule         *ScheduleWindow
	Assignment       Assignment

	Source      Source
	Link        *Link
	Safety      SafetyRequirements
	Tags        []string
	TemplateRef string

	RejectionReason    string
	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatNumber renders the human-facing number for a stored id.
func FormatNumber(discipline Discipline, id uint64) string {
	return fmt.Sprintf("%s-%06d", discipline.numberPrefix(), id)
}

// ParseRef accepts "42", "#42" or a formatted number such as "MNT-000042".
func ParseRef(ref string) (uint64, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return 0, ErrRefRequired
	}

	numText := strings.TrimPrefix(trimmed, "#")
	if prefix, rest, ok := strings.Cut(trimmed, "-"); ok {
		switch strings.ToUpper(prefix) {
		case "MNT", "QLT":
			numText = rest
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
		}
	}

	id, err := strconv.ParseUint(numText, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return id, nil
}

// RecomputeCosts refreshes the estimated and actual aggregates from the part lines.
func (wo *WorkOrder) RecomputeCosts(lines []PartLine) {
	wo.Estimated.PartsCost = EstimatedPartsCost(lines)
	wo.Estimated.TotalCost = wo.Estimated.LaborCost + wo.Estimated.PartsCost
	wo.Actual.PartsCost = ActualPartsCost(lines)
	wo.Actual.TotalCost = wo.Actual.LaborCost + wo.Actual.PartsCost
}

// CheckInvariants validates the cross-field rules that must hold after every write.
func (wo *WorkOrder) CheckInvariants(lines []PartLine) error {
	if wo.ActualStartDate != nil && wo.ActualEndDate != nil && wo.ActualEndDate.Before(*wo.ActualStartDate) {
		return invariantf("actual end %s is before actual start %s",
			wo.ActualEndDate.Format(time.RFC3339), wo.ActualStartDate.Format(time.RFC3339))
	}
	if wo.PriorityScore < MinPriorityScore || wo.PriorityScore > MaxPriorityScore {
		return invariantf("priority score %d outside [0,100]", wo.PriorityScore)
	}
	if want := wo.Estimated.LaborCost + EstimatedPartsCost(lines); wo.Estimated.TotalCost != want {
		return invariantf("estimated total %s does not match labor plus parts %s", wo.Estimated.TotalCost, want)
	}
	if wo.Schedule != nil && wo.Schedule.End.Before(wo.Schedule.Start) {
		return invariantf("schedule end is before schedule start")
	}
	return nil
}

// NormalizeTags trims, dedupes and drops empty tags, keeping first-seen order.
func NormalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
