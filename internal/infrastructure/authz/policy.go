package authz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

const policyVersion = 1

type thresholdConfig struct {
	MaxCostCents     int64 `toml:"max_cost_cents"`
	MaxPriorityScore int   `toml:"max_priority_score"`
}

type scopeConfig struct {
	Global  bool     `toml:"global"`
	Plants  []string `toml:"plants"`
	Areas   []string `toml:"areas"`
	Sectors []string `toml:"sectors"`
}

type actorConfig struct {
	Roles     []string         `toml:"roles"`
	Teams     []string         `toml:"teams"`
	Threshold *thresholdConfig `toml:"threshold"`
	Scope     scopeConfig      `toml:"scope"`
}

type policyFile struct {
	Version int                    `toml:"version"`
	Roles   map[string][]string    `toml:"roles"`
	Actors  map[string]actorConfig `toml:"actors"`
}

// Policy answers authorization requests from a static TOML file.
//
//	version = 1
//	[roles]
//	supervisor = ["approve", "reject", "cancel", "close"]
//	[actors.sup-1]
//	roles = ["supervisor"]
//	threshold = { max_cost_cents = 500000, max_priority_score = 80 }
//	scope = { plants = ["P1"] }
type Policy struct {
	roles  map[string][]ports.Action
	actors map[string]actorConfig
}

var _ ports.Authorizer = (*Policy)(nil)

func LoadPolicy(path string) (*Policy, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("authz policy file is required")
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, errs.Wrapf(err, "read authz policy %q", trimmed)
	}
	policy, err := ParsePolicy(raw)
	if err != nil {
		return nil, errs.Wrapf(err, "parse authz policy %q", trimmed)
	}
	return policy, nil
}

func ParsePolicy(raw []byte) (*Policy, error) {
	var file policyFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Version != policyVersion {
		return nil, fmt.Errorf("unsupported policy version %d: expected version = %d", file.Version, policyVersion)
	}

	roles := make(map[string][]ports.Action, len(file.Roles))
	for name, actions := range file.Roles {
		role := strings.TrimSpace(name)
		for _, raw := range actions {
			action, err := parseAction(raw)
			if err != nil {
				return nil, fmt.Errorf("roles.%s: %w", role, err)
			}
			roles[role] = append(roles[role], action)
		}
	}

	actors := make(map[string]actorConfig, len(file.Actors))
	for name, actor := range file.Actors {
		id := strings.TrimSpace(name)
		for _, role := range actor.Roles {
			if _, ok := roles[strings.TrimSpace(role)]; !ok {
				return nil, fmt.Errorf("actors.%s: unknown role %q", id, role)
			}
		}
		if t := actor.Threshold; t != nil {
			if t.MaxCostCents < 0 {
				return nil, fmt.Errorf("actors.%s.threshold.max_cost_cents must not be negative", id)
			}
			if t.MaxPriorityScore < workorder.MinPriorityScore || t.MaxPriorityScore > workorder.MaxPriorityScore {
				return nil, fmt.Errorf("actors.%s.threshold.max_priority_score must be within [0,100]", id)
			}
		}
		actors[id] = actor
	}
	return &Policy{roles: roles, actors: actors}, nil
}

func parseAction(raw string) (ports.Action, error) {
	action := ports.Action(strings.ToLower(strings.TrimSpace(raw)))
	switch action {
	case ports.ActionCreate, ports.ActionApprove, ports.ActionReject, ports.ActionPlan,
		ports.ActionSchedule, ports.ActionExecute, ports.ActionVerify, ports.ActionClose,
		ports.ActionCancel, ports.ActionParts:
		return action, nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

func (p *Policy) Authorize(ctx context.Context, req ports.AuthorizationRequest) (ports.Grant, error) {
	if ctx == nil {
		return ports.Grant{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Grant{}, errs.Wrap(err, "check context")
	}

	actor, ok := p.actors[strings.TrimSpace(req.Actor)]
	if !ok {
		return ports.Grant{Reason: fmt.Sprintf("actor %q is not in the policy", req.Actor)}, nil
	}
	grant := ports.Grant{Scope: scopeOf(actor)}
	if !p.allows(actor, req.Action) {
		grant.Reason = fmt.Sprintf("no role of %s grants %s", req.Actor, req.Action)
		return grant, nil
	}
	grant.Allowed = true
	if actor.Threshold != nil && (req.Action == ports.ActionApprove) {
		grant.Threshold = &workorder.Threshold{
			MaxCost:          workorder.Money(actor.Threshold.MaxCostCents),
			MaxPriorityScore: actor.Threshold.MaxPriorityScore,
		}
	}
	return grant, nil
}

func (p *Policy) ResolveScope(ctx context.Context, actor string) (ports.Scope, error) {
	if ctx == nil {
		return ports.Scope{}, errors.New("context is required")
	}
	cfg, ok := p.actors[strings.TrimSpace(actor)]
	if !ok {
		return ports.Scope{}, nil
	}
	return scopeOf(cfg), nil
}

func (p *Policy) allows(actor actorConfig, action ports.Action) bool {
	for _, role := range actor.Roles {
		if slices.Contains(p.roles[strings.TrimSpace(role)], action) {
			return true
		}
	}
	return false
}

func scopeOf(actor actorConfig) ports.Scope {
	return ports.Scope{
		Global:  actor.Scope.Global,
		Plants:  slices.Clone(actor.Scope.Plants),
		Areas:   slices.Clone(actor.Scope.Areas),
		Sectors: slices.Clone(actor.Scope.Sectors),
		Teams:   slices.Clone(actor.Teams),
	}
}
