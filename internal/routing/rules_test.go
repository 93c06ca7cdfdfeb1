package routing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
)

type fakeRuleStore struct {
	rules      map[string]store.RoutingRule
	listCalls  int
	users      map[string]bool
	depts      map[string]bool
	lastPatch  store.RulePatch
	createdErr error
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{
		rules: map[string]store.RoutingRule{},
		users: map[string]bool{"u1": true},
		depts: map[string]bool{"d1": true},
	}
}

func (f *fakeRuleStore) ListActiveRules(context.Context, string) ([]store.RoutingRule, error) {
	f.listCalls++
	out := make([]store.RoutingRule, 0, len(f.rules))
	for _, rule := range f.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (f *fakeRuleStore) ListRules(context.Context, string) ([]store.RoutingRule, error) {
	out := make([]store.RoutingRule, 0, len(f.rules))
	for _, rule := range f.rules {
		out = append(out, rule)
	}
	return out, nil
}

func (f *fakeRuleStore) GetRule(_ context.Context, _, ruleID string) (store.RoutingRule, error) {
	rule, ok := f.rules[ruleID]
	if !ok {
		return store.RoutingRule{}, sql.ErrNoRows
	}
	return rule, nil
}

func (f *fakeRuleStore) CreateRule(_ context.Context, rule store.RoutingRule) (store.RoutingRule, error) {
	if f.createdErr != nil {
		return store.RoutingRule{}, f.createdErr
	}
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRuleStore) UpdateRule(_ context.Context, _, ruleID string, patch store.RulePatch) (store.RoutingRule, error) {
	rule, ok := f.rules[ruleID]
	if !ok {
		return store.RoutingRule{}, sql.ErrNoRows
	}
	f.lastPatch = patch
	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if patch.Active != nil {
		rule.Active = *patch.Active
	}
	if patch.RoundRobin != nil {
		rule.RoundRobin = *patch.RoundRobin
	}
	if patch.AssignToUserID != nil {
		if *patch.AssignToUserID == "" {
			rule.AssignToUserID = nil
		} else {
			rule.AssignToUserID = patch.AssignToUserID
		}
	}
	f.rules[ruleID] = rule
	return rule, nil
}

func (f *fakeRuleStore) DeleteRule(_ context.Context, _, ruleID string) error {
	if _, ok := f.rules[ruleID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.rules, ruleID)
	return nil
}

func (f *fakeRuleStore) RoutingStats(context.Context, string) (store.RoutingStats, error) {
	return store.RoutingStats{TotalRules: len(f.rules)}, nil
}

func (f *fakeRuleStore) GetActiveUser(_ context.Context, _, userID string) (store.User, error) {
	if !f.users[userID] {
		return store.User{}, sql.ErrNoRows
	}
	return store.User{ID: userID, IsActive: true}, nil
}

func (f *fakeRuleStore) GetDepartment(_ context.Context, _, departmentID string) (store.Department, error) {
	if !f.depts[departmentID] {
		return store.Department{}, sql.ErrNoRows
	}
	return store.Department{ID: departmentID}, nil
}

type fakeRuleCache struct {
	entries     map[string][]store.RoutingRule
	getErr      error
	invalidated int
}

func newFakeRuleCache() *fakeRuleCache {
	return &fakeRuleCache{entries: map[string][]store.RoutingRule{}}
}

func (c *fakeRuleCache) GetRules(_ context.Context, firmID string) ([]store.RoutingRule, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	rules, ok := c.entries[firmID]
	return rules, ok, nil
}

func (c *fakeRuleCache) SetRules(_ context.Context, firmID string, rules []store.RoutingRule) error {
	c.entries[firmID] = rules
	return nil
}

func (c *fakeRuleCache) InvalidateRules(_ context.Context, firmID string) error {
	c.invalidated++
	delete(c.entries, firmID)
	return nil
}

func TestRuleServiceCreateValidates(t *testing.T) {
	cases := map[string]RuleInput{
		"missing name":        {DepartmentID: "d1", RoundRobin: true},
		"missing department":  {Name: "r", RoundRobin: true},
		"neither target":      {Name: "r", DepartmentID: "d1"},
		"unknown department":  {Name: "r", DepartmentID: "nope", RoundRobin: true},
		"unknown assignee":    {Name: "r", DepartmentID: "d1", AssignToUserID: "ghost"},
		"invalid value range": {Name: "r", DepartmentID: "d1", RoundRobin: true, Conditions: store.RuleConditions{ValueMin: ptr(10.0), ValueMax: ptr(5.0)}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewRuleService(newFakeRuleStore(), nil, zerolog.Nop())
			_, err := svc.Create(context.Background(), firm, "actor", in)
			if !errors.Is(err, ErrInvalidRuleDefinition) {
				t.Fatalf("expected ErrInvalidRuleDefinition, got %v", err)
			}
		})
	}
}

func TestRuleServiceCreateStoresActiveRuleAndInvalidatesCache(t *testing.T) {
	rs := newFakeRuleStore()
	cache := newFakeRuleCache()
	svc := NewRuleService(rs, cache, zerolog.Nop())

	created, err := svc.Create(context.Background(), firm, "actor", RuleInput{
		Name: "  Big litigation  ", DepartmentID: "d1", Priority: 7, AssignToUserID: "u1",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" || !created.Active || created.Name != "Big litigation" {
		t.Fatalf("unexpected created rule: %+v", created)
	}
	if created.AssignToUserID == nil || *created.AssignToUserID != "u1" {
		t.Fatalf("assignee not stored: %+v", created)
	}
	if created.CreatedBy == nil || *created.CreatedBy != "actor" {
		t.Fatalf("creator not stored: %+v", created)
	}
	if cache.invalidated != 1 {
		t.Fatalf("expected cache invalidation, got %d", cache.invalidated)
	}
}

func TestRuleServiceCreateMapsInvalidReference(t *testing.T) {
	rs := newFakeRuleStore()
	rs.createdErr = store.ErrInvalidReference
	svc := NewRuleService(rs, nil, zerolog.Nop())

	_, err := svc.Create(context.Background(), firm, "", RuleInput{Name: "r", DepartmentID: "d1", RoundRobin: true})
	if !errors.Is(err, ErrInvalidRuleDefinition) {
		t.Fatalf("expected ErrInvalidRuleDefinition, got %v", err)
	}
}

func TestRuleServiceActiveRulesUsesCache(t *testing.T) {
	rs := newFakeRuleStore()
	rs.rules["r1"] = store.RoutingRule{ID: "r1", Active: true}
	cache := newFakeRuleCache()
	svc := NewRuleService(rs, cache, zerolog.Nop())

	for i := 0; i < 3; i++ {
		rules, err := svc.ActiveRules(context.Background(), firm)
		if err != nil {
			t.Fatalf("ActiveRules returned error: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(rules))
		}
	}
	if rs.listCalls != 1 {
		t.Fatalf("expected a single store read, got %d", rs.listCalls)
	}
}

func TestRuleServiceActiveRulesFallsBackOnCacheError(t *testing.T) {
	rs := newFakeRuleStore()
	rs.rules["r1"] = store.RoutingRule{ID: "r1", Active: true}
	cache := newFakeRuleCache()
	cache.getErr = errors.New("redis down")
	svc := NewRuleService(rs, cache, zerolog.Nop())

	rules, err := svc.ActiveRules(context.Background(), firm)
	if err != nil {
		t.Fatalf("ActiveRules returned error: %v", err)
	}
	if len(rules) != 1 || rs.listCalls != 1 {
		t.Fatalf("expected store fallback, got %d rules and %d reads", len(rules), rs.listCalls)
	}
}

func TestRuleServiceUpdate(t *testing.T) {
	rs := newFakeRuleStore()
	rs.rules["r1"] = store.RoutingRule{ID: "r1", Name: "old", Active: true, AssignToUserID: ptr("u1")}
	cache := newFakeRuleCache()
	svc := NewRuleService(rs, cache, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Update(ctx, firm, "r1", store.RulePatch{}); !errors.Is(err, ErrInvalidRuleDefinition) {
		t.Fatalf("empty patch: expected ErrInvalidRuleDefinition, got %v", err)
	}
	if _, err := svc.Update(ctx, firm, "missing", store.RulePatch{Priority: ptr(3)}); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("missing rule: expected ErrRuleNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, firm, "r1", store.RulePatch{AssignToUserID: ptr("")}); !errors.Is(err, ErrInvalidRuleDefinition) {
		t.Fatalf("clearing the only target: expected ErrInvalidRuleDefinition, got %v", err)
	}

	updated, err := svc.Update(ctx, firm, "r1", store.RulePatch{Name: ptr(" renamed "), Active: ptr(false)})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "renamed" || updated.Active {
		t.Fatalf("unexpected updated rule: %+v", updated)
	}
	if cache.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", cache.invalidated)
	}

	updated, err = svc.Update(ctx, firm, "r1", store.RulePatch{RoundRobin: ptr(true), AssignToUserID: ptr("")})
	if err != nil {
		t.Fatalf("switching to round robin returned error: %v", err)
	}
	if !updated.RoundRobin || updated.AssignToUserID != nil {
		t.Fatalf("expected round robin without assignee: %+v", updated)
	}
}

func TestRuleServiceDelete(t *testing.T) {
	rs := newFakeRuleStore()
	rs.rules["r1"] = store.RoutingRule{ID: "r1"}
	svc := NewRuleService(rs, nil, zerolog.Nop())

	if err := svc.Delete(context.Background(), firm, "r1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := svc.Delete(context.Background(), firm, "r1"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound on second delete, got %v", err)
	}
}
