package routing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
	"legalnexus/api/internal/util"
)

type ruleStore interface {
	ListActiveRules(ctx context.Context, firmID string) ([]store.RoutingRule, error)
	ListRules(ctx context.Context, firmID string) ([]store.RoutingRule, error)
	GetRule(ctx context.Context, firmID, ruleID string) (store.RoutingRule, error)
	CreateRule(ctx context.Context, rule store.RoutingRule) (store.RoutingRule, error)
	UpdateRule(ctx context.Context, firmID, ruleID string, patch store.RulePatch) (store.RoutingRule, error)
	DeleteRule(ctx context.Context, firmID, ruleID string) error
	RoutingStats(ctx context.Context, firmID string) (store.RoutingStats, error)
	GetActiveUser(ctx context.Context, firmID, userID string) (store.User, error)
	GetDepartment(ctx context.Context, firmID, departmentID string) (store.Department, error)
}

// RuleCache holds each firm's active rules in evaluation order.
type RuleCache interface {
	GetRules(ctx context.Context, firmID string) ([]store.RoutingRule, bool, error)
	SetRules(ctx context.Context, firmID string, rules []store.RoutingRule) error
	InvalidateRules(ctx context.Context, firmID string) error
}

// RuleInput is a rule as submitted for creation.
type RuleInput struct {
	Name           string
	DepartmentID   string
	Priority       int
	Conditions     store.RuleConditions
	AssignToUserID string
	RoundRobin     bool
}

// RuleService manages the rule store and serves active rules to the
// resolver through the cache.
type RuleService struct {
	store ruleStore
	cache RuleCache
	log   zerolog.Logger
}

// NewRuleService accepts a nil cache, in which case every read hits the store.
func NewRuleService(s ruleStore, cache RuleCache, log zerolog.Logger) *RuleService {
	return &RuleService{store: s, cache: cache, log: log}
}

func (s *RuleService) ActiveRules(ctx context.Context, firmID string) ([]store.RoutingRule, error) {
	if s.cache != nil {
		rules, ok, err := s.cache.GetRules(ctx, firmID)
		switch {
		case err != nil:
			ruleCacheLookups.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("firm_id", firmID).Msg("rule cache read failed")
		case ok:
			ruleCacheLookups.WithLabelValues("hit").Inc()
			return rules, nil
		default:
			ruleCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	rules, err := s.store.ListActiveRules(ctx, firmID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetRules(ctx, firmID, rules); err != nil {
			s.log.Warn().Err(err).Str("firm_id", firmID).Msg("rule cache write failed")
		}
	}
	return rules, nil
}

func (s *RuleService) List(ctx context.Context, firmID string) ([]store.RoutingRule, error) {
	return s.store.ListRules(ctx, firmID)
}

func (s *RuleService) Get(ctx context.Context, firmID, ruleID string) (store.RoutingRule, error) {
	rule, err := s.store.GetRule(ctx, firmID, ruleID)
	if isMissing(err) {
		return store.RoutingRule{}, ErrRuleNotFound
	}
	return rule, err
}

func (s *RuleService) Create(ctx context.Context, firmID, actorID string, in RuleInput) (store.RoutingRule, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.RoutingRule{}, invalidRule("name is required")
	}
	if strings.TrimSpace(in.DepartmentID) == "" {
		return store.RoutingRule{}, invalidRule("departmentId is required")
	}
	if !in.RoundRobin && in.AssignToUserID == "" {
		return store.RoutingRule{}, invalidRule("a rule must either use round-robin or name an assignee")
	}
	if err := ValidateConditions(in.Conditions); err != nil {
		return store.RoutingRule{}, err
	}
	if err := s.checkDepartment(ctx, firmID, in.DepartmentID); err != nil {
		return store.RoutingRule{}, err
	}

	rule := store.RoutingRule{
		ID:           util.NewID(),
		FirmID:       firmID,
		Name:         name,
		DepartmentID: in.DepartmentID,
		Priority:     in.Priority,
		Conditions:   in.Conditions,
		RoundRobin:   in.RoundRobin,
		Active:       true,
	}
	if in.AssignToUserID != "" {
		if err := s.checkAssignee(ctx, firmID, in.AssignToUserID); err != nil {
			return store.RoutingRule{}, err
		}
		assignee := in.AssignToUserID
		rule.AssignToUserID = &assignee
	}
	if actorID != "" {
		actor := actorID
		rule.CreatedBy = &actor
	}

	created, err := s.store.CreateRule(ctx, rule)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return store.RoutingRule{}, invalidRule("unknown department or assignee")
		}
		return store.RoutingRule{}, err
	}
	s.invalidate(ctx, firmID)
	s.log.Info().Str("firm_id", firmID).Str("rule_id", created.ID).Str("actor_id", actorID).Msg("routing rule created")
	return created, nil
}

// Update applies a partial update. An empty patch is rejected.
func (s *RuleService) Update(ctx context.Context, firmID, ruleID string, patch store.RulePatch) (store.RoutingRule, error) {
	if patch.Empty() {
		return store.RoutingRule{}, invalidRule("no fields to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return store.RoutingRule{}, invalidRule("name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Conditions != nil {
		if err := ValidateConditions(*patch.Conditions); err != nil {
			return store.RoutingRule{}, err
		}
	}

	current, err := s.Get(ctx, firmID, ruleID)
	if err != nil {
		return store.RoutingRule{}, err
	}
	roundRobin := current.RoundRobin
	if patch.RoundRobin != nil {
		roundRobin = *patch.RoundRobin
	}
	hasAssignee := current.AssignToUserID != nil
	if patch.AssignToUserID != nil {
		hasAssignee = *patch.AssignToUserID != ""
		if hasAssignee {
			if err := s.checkAssignee(ctx, firmID, *patch.AssignToUserID); err != nil {
				return store.RoutingRule{}, err
			}
		}
	}
	if !roundRobin && !hasAssignee {
		return store.RoutingRule{}, invalidRule("a rule must either use round-robin or name an assignee")
	}

	updated, err := s.store.UpdateRule(ctx, firmID, ruleID, patch)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RoutingRule{}, ErrRuleNotFound
	}
	if err != nil {
		return store.RoutingRule{}, err
	}
	s.invalidate(ctx, firmID)
	s.log.Info().Str("firm_id", firmID).Str("rule_id", ruleID).Msg("routing rule updated")
	return updated, nil
}

func (s *RuleService) Delete(ctx context.Context, firmID, ruleID string) error {
	err := s.store.DeleteRule(ctx, firmID, ruleID)
	if isMissing(err) {
		return ErrRuleNotFound
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx, firmID)
	s.log.Info().Str("firm_id", firmID).Str("rule_id", ruleID).Msg("routing rule deleted")
	return nil
}

func (s *RuleService) Stats(ctx context.Context, firmID string) (store.RoutingStats, error) {
	return s.store.RoutingStats(ctx, firmID)
}

func (s *RuleService) checkDepartment(ctx context.Context, firmID, departmentID string) error {
	_, err := s.store.GetDepartment(ctx, firmID, departmentID)
	if isMissing(err) {
		return invalidRule("department %s does not exist", departmentID)
	}
	if err != nil {
		return fmt.Errorf("check department: %w", err)
	}
	return nil
}

func (s *RuleService) checkAssignee(ctx context.Context, firmID, userID string) error {
	_, err := s.store.GetActiveUser(ctx, firmID, userID)
	if isMissing(err) {
		return invalidRule("assignee %s is not an active user of the firm", userID)
	}
	if err != nil {
		return fmt.Errorf("check assignee: %w", err)
	}
	return nil
}

func (s *RuleService) invalidate(ctx context.Context, firmID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRules(ctx, firmID); err != nil {
		s.log.Warn().Err(err).Str("firm_id", firmID).Msg("rule cache invalidation failed")
	}
}
