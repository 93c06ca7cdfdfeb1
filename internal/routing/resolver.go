package routing

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
)

type Method string

const (
	MethodManual             Method = "manual"
	MethodRule               Method = "rule"
	MethodRoundRobin         Method = "round_robin"
	MethodDepartmentDirector Method = "department_director"
)

// Result is the outcome of an assignment. RuleID is set for rule and
// round-robin results.
type Result struct {
	UserID         string
	UserName       string
	DepartmentID   string
	DepartmentName string
	Method         Method
	RuleID         string
}

type resolverStore interface {
	GetClient(ctx context.Context, firmID, clientID string) (store.Client, error)
	GetActiveUser(ctx context.Context, firmID, userID string) (store.User, error)
	FindMembership(ctx context.Context, q store.MembershipQuery) (store.Membership, error)
	DepartmentDirector(ctx context.Context, firmID, departmentID string) (store.Membership, error)
}

type ruleSource interface {
	ActiveRules(ctx context.Context, firmID string) ([]store.RoutingRule, error)
}

type rotation interface {
	Next(ctx context.Context, departmentID string) (*store.RotationCandidate, error)
}

// Resolver decides who a new client or matter is routed to.
type Resolver struct {
	store    resolverStore
	rules    ruleSource
	rotation rotation
	log      zerolog.Logger
}

func NewResolver(s resolverStore, rules ruleSource, rotation rotation, log zerolog.Logger) *Resolver {
	return &Resolver{store: s, rules: rules, rotation: rotation, log: log}
}

// Assign resolves exactly one assignee for the request, trying in order the
// client's pinned director, the firm's active rules by priority, and the
// department director. It returns ErrNoEligibleAssignee when all of them come
// up empty.
//
// A round-robin slot consumed while evaluating a rule is not given back if
// the rule ends up not producing the result.
func (r *Resolver) Assign(ctx context.Context, firmID string, req Request) (Result, error) {
	client, err := r.loadClient(ctx, firmID, req.ClientID)
	if err != nil {
		return Result{}, err
	}

	if client != nil && client.PrimaryDirectorID != nil {
		result, ok, err := r.manual(ctx, firmID, *client.PrimaryDirectorID)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return r.assigned(firmID, result), nil
		}
		r.log.Debug().
			Str("firm_id", firmID).
			Str("client_id", client.ID).
			Str("director_id", *client.PrimaryDirectorID).
			Msg("pinned director has no valid membership; falling through to rules")
	}

	rules, err := r.rules.ActiveRules(ctx, firmID)
	if err != nil {
		return Result{}, fmt.Errorf("load routing rules: %w", err)
	}
	for _, rule := range evaluationOrder(rules) {
		if !Matches(client, req, rule.Conditions) {
			continue
		}
		result, ok, err := r.applyRule(ctx, firmID, rule)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return r.assigned(firmID, result), nil
		}
	}

	departmentID := req.DepartmentID
	if departmentID == "" && client != nil && client.DepartmentID != nil {
		departmentID = *client.DepartmentID
	}
	if departmentID != "" {
		director, err := r.store.DepartmentDirector(ctx, firmID, departmentID)
		switch {
		case err == nil:
			return r.assigned(firmID, fromMembership(director, MethodDepartmentDirector, "")), nil
		case !isMissing(err):
			return Result{}, fmt.Errorf("load department director: %w", err)
		}
	}

	assignmentsTotal.WithLabelValues("none").Inc()
	r.log.Info().
		Str("firm_id", firmID).
		Str("client_id", req.ClientID).
		Str("matter_type", req.MatterType).
		Str("department_id", departmentID).
		Msg("no eligible assignee")
	return Result{}, ErrNoEligibleAssignee
}

// loadClient returns nil when the client id is empty or names no client.
func (r *Resolver) loadClient(ctx context.Context, firmID, clientID string) (*store.Client, error) {
	if clientID == "" {
		return nil, nil
	}
	client, err := r.store.GetClient(ctx, firmID, clientID)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	return &client, nil
}

func (r *Resolver) manual(ctx context.Context, firmID, directorID string) (Result, bool, error) {
	membership, err := r.store.FindMembership(ctx, store.MembershipQuery{
		FirmID:         firmID,
		UserID:         directorID,
		PreferDirector: true,
	})
	if isMissing(err) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("resolve pinned director: %w", err)
	}
	return fromMembership(membership, MethodManual, ""), true, nil
}

// applyRule reports ok=false when the rule cannot produce a user, in which
// case evaluation moves on to the next matching rule.
func (r *Resolver) applyRule(ctx context.Context, firmID string, rule store.RoutingRule) (Result, bool, error) {
	if rule.RoundRobin {
		next, err := r.rotation.Next(ctx, rule.DepartmentID)
		if err != nil {
			return Result{}, false, fmt.Errorf("round-robin for department %s: %w", rule.DepartmentID, err)
		}
		if next == nil {
			r.log.Debug().Str("rule_id", rule.ID).Str("department_id", rule.DepartmentID).Msg("round-robin department has no eligible users")
			return Result{}, false, nil
		}
		return Result{
			UserID:         next.UserID,
			UserName:       next.UserName,
			DepartmentID:   next.DepartmentID,
			DepartmentName: next.DepartmentName,
			Method:         MethodRoundRobin,
			RuleID:         rule.ID,
		}, true, nil
	}

	if rule.AssignToUserID == nil {
		return Result{}, false, nil
	}

	membership, err := r.store.FindMembership(ctx, store.MembershipQuery{
		FirmID:             firmID,
		UserID:             *rule.AssignToUserID,
		PreferDepartmentID: rule.DepartmentID,
	})
	if err == nil {
		return fromMembership(membership, MethodRule, rule.ID), true, nil
	}
	if !isMissing(err) {
		return Result{}, false, fmt.Errorf("resolve rule assignee: %w", err)
	}

	// An active assignee without any department is reported under the
	// rule's department.
	user, err := r.store.GetActiveUser(ctx, firmID, *rule.AssignToUserID)
	if isMissing(err) {
		r.log.Debug().Str("rule_id", rule.ID).Str("user_id", *rule.AssignToUserID).Msg("rule assignee cannot be resolved")
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("resolve rule assignee: %w", err)
	}
	return Result{
		UserID:         user.ID,
		UserName:       user.FullName(),
		DepartmentID:   rule.DepartmentID,
		DepartmentName: rule.DepartmentName,
		Method:         MethodRule,
		RuleID:         rule.ID,
	}, true, nil
}

func (r *Resolver) assigned(firmID string, result Result) Result {
	assignmentsTotal.WithLabelValues(string(result.Method)).Inc()
	r.log.Info().
		Str("firm_id", firmID).
		Str("method", string(result.Method)).
		Str("user_id", result.UserID).
		Str("department_id", result.DepartmentID).
		Str("rule_id", result.RuleID).
		Msg("director assigned")
	return result
}

// evaluationOrder sorts active rules by priority descending, then creation
// order, then id.
func evaluationOrder(rules []store.RoutingRule) []store.RoutingRule {
	ordered := make([]store.RoutingRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active {
			ordered = append(ordered, rule)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered
}

func fromMembership(m store.Membership, method Method, ruleID string) Result {
	return Result{
		UserID:         m.UserID,
		UserName:       m.UserName,
		DepartmentID:   m.DepartmentID,
		DepartmentName: m.DepartmentName,
		Method:         method,
		RuleID:         ruleID,
	}
}
