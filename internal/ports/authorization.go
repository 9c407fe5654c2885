package ports

import (
	"context"
	"slices"

	"maintflow/internal/domain/workorder"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionPlan     Action = "plan"
	ActionSchedule Action = "schedule"
	ActionExecute  Action = "execute"
	ActionVerify   Action = "verify"
	ActionClose    Action = "close"
	ActionCancel   Action = "cancel"
	ActionParts    Action = "parts"
)

// Scope is the set of hierarchy entities an actor can reach, per level.
type Scope struct {
	Global  bool
	Plants  []string
	Areas   []string
	Sectors []string
	Teams   []string
}

// Contains reports whether loc falls under any plant, area or sector of the scope.
func (s Scope) Contains(loc workorder.Location) bool {
	if s.Global {
		return true
	}
	return (loc.PlantID != "" && slices.Contains(s.Plants, loc.PlantID)) ||
		(loc.AreaID != "" && slices.Contains(s.Areas, loc.AreaID)) ||
		(loc.SectorID != "" && slices.Contains(s.Sectors, loc.SectorID))
}

func (s Scope) HasTeam(teamID string) bool {
	return teamID != "" && slices.Contains(s.Teams, teamID)
}

type AuthorizationSubject struct {
	WorkOrderID        uint64
	Number             string
	Discipline         workorder.Discipline
	Location           workorder.Location
	Assignment         workorder.Assignment
	EstimatedTotalCost workorder.Money
	PriorityScore      int
}

type AuthorizationRequest struct {
	Actor   string
	Action  Action
	Subject AuthorizationSubject
}

// Grant is the authorization output contract. Threshold is set for approval actions.
type Grant struct {
	Allowed   bool
	Reason    string
	Threshold *workorder.Threshold
	Scope     Scope
}

type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (Grant, error)
	ResolveScope(ctx context.Context, actor string) (Scope, error)
}
