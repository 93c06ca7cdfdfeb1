package app

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"legalnexus/api/internal/rbac"
	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/store"
)

func TestAssignRoute(t *testing.T) {
	server, deps := newTestServer(t)
	var got routing.Request
	var gotFirm string
	deps.assigner.assignFn = func(_ context.Context, firmID string, req routing.Request) (routing.Result, error) {
		gotFirm, got = firmID, req
		return routing.Result{
			UserID:         "u2",
			UserName:       "Dana Reyes",
			DepartmentID:   "d1",
			DepartmentName: "Litigation",
			Method:         routing.MethodRule,
			RuleID:         "r1",
		}, nil
	}

	rr, payload := do(t, server.Handler(), http.MethodPost, "/api/routing/assign", tokenFor(t, "u1", rbac.LevelStaff),
		`{"clientId":" c1 ","matterType":"litigation","estimatedValue":250000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotFirm != "firm-1" || got.ClientID != "c1" || got.MatterType != "litigation" {
		t.Fatalf("unexpected request firm=%s req=%+v", gotFirm, got)
	}
	if got.EstimatedValue == nil || *got.EstimatedValue != 250000 {
		t.Fatalf("estimated value not passed through: %+v", got.EstimatedValue)
	}
	if payload["userId"] != "u2" || payload["method"] != "rule" || payload["ruleId"] != "r1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestAssignRouteWithoutAssignee(t *testing.T) {
	server, _ := newTestServer(t)

	rr, payload := do(t, server.Handler(), http.MethodPost, "/api/routing/assign", tokenFor(t, "u1", rbac.LevelAssociate), `{}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	if payload["code"] != "NO_ELIGIBLE_ASSIGNEE" {
		t.Fatalf("expected code NO_ELIGIBLE_ASSIGNEE, got %v", payload["code"])
	}
}

func TestAssignRouteUnknownRoleIsForbidden(t *testing.T) {
	server, _ := newTestServer(t)

	rr, payload := do(t, server.Handler(), http.MethodPost, "/api/routing/assign", tokenFor(t, "u1", rbac.LevelUnknown), `{}`)
	if rr.Code != http.StatusForbidden || payload["code"] != "FORBIDDEN" {
		t.Fatalf("unexpected response %d %v", rr.Code, payload)
	}
}

func TestRuleAdministrationRequiresPartner(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
	}{
		{method: http.MethodPost, path: "/api/routing/rules", body: `{"name":"x","departmentId":"d1","roundRobin":true}`},
		{method: http.MethodPut, path: "/api/routing/rules/r1", body: `{"priority":5}`},
		{method: http.MethodDelete, path: "/api/routing/rules/r1"},
	}

	for _, level := range []rbac.Level{rbac.LevelAssociate, rbac.LevelParalegal, rbac.LevelStaff} {
		for _, tc := range tests {
			t.Run(fmt.Sprintf("%s %s %s", level, tc.method, tc.path), func(t *testing.T) {
				server, _ := newTestServer(t)
				rr, payload := do(t, server.Handler(), tc.method, tc.path, tokenFor(t, "u1", level), tc.body)
				if rr.Code != http.StatusForbidden {
					t.Fatalf("expected status 403, got %d", rr.Code)
				}
				if payload["code"] != "FORBIDDEN" {
					t.Fatalf("expected code FORBIDDEN, got %v", payload["code"])
				}
			})
		}
	}
}

func TestCreateRuleRoute(t *testing.T) {
	server, deps := newTestServer(t)
	var got routing.RuleInput
	var actor string
	deps.rules.createFn = func(_ context.Context, _, actorID string, in routing.RuleInput) (store.RoutingRule, error) {
		actor, got = actorID, in
		return store.RoutingRule{ID: "r9", Name: in.Name, DepartmentID: in.DepartmentID, Priority: in.Priority, Conditions: in.Conditions, Active: true}, nil
	}

	rr, payload := do(t, server.Handler(), http.MethodPost, "/api/routing/rules", tokenFor(t, "partner-1", rbac.LevelPartner),
		`{"name":"Large litigation","departmentId":"d1","priority":10,"conditions":{"matter_type":"litigation","value_min":100000},"assignToUserId":"u3"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if actor != "partner-1" || got.AssignToUserID != "u3" || got.Priority != 10 {
		t.Fatalf("unexpected input actor=%s in=%+v", actor, got)
	}
	if got.Conditions.MatterType == nil || *got.Conditions.MatterType != "litigation" || got.Conditions.ValueMin == nil {
		t.Fatalf("conditions not parsed: %+v", got.Conditions)
	}
	if payload["id"] != "r9" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestCreateRuleRouteRejectsMalformedConditions(t *testing.T) {
	server, deps := newTestServer(t)
	called := false
	deps.rules.createFn = func(context.Context, string, string, routing.RuleInput) (store.RoutingRule, error) {
		called = true
		return store.RoutingRule{}, nil
	}

	rr, payload := do(t, server.Handler(), http.MethodPost, "/api/routing/rules", tokenFor(t, "u1", rbac.LevelAdmin),
		`{"name":"x","departmentId":"d1","roundRobin":true,"conditions":{"value_min":"lots"}}`)
	if rr.Code != http.StatusBadRequest || payload["code"] != "INVALID_RULE_DEFINITION" {
		t.Fatalf("unexpected response %d %v", rr.Code, payload)
	}
	if called {
		t.Fatal("rule service must not be called with malformed conditions")
	}
}

func TestUpdateRuleRoute(t *testing.T) {
	t.Run("null conditions clear them", func(t *testing.T) {
		server, deps := newTestServer(t)
		var got store.RulePatch
		deps.rules.updateFn = func(_ context.Context, _, ruleID string, patch store.RulePatch) (store.RoutingRule, error) {
			got = patch
			return store.RoutingRule{ID: ruleID}, nil
		}

		rr, _ := do(t, server.Handler(), http.MethodPut, "/api/routing/rules/r1", tokenFor(t, "u1", rbac.LevelPartner),
			`{"conditions":null,"active":false}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
		}
		if got.Conditions == nil || *got.Conditions != (store.RuleConditions{}) {
			t.Fatalf("expected cleared conditions, got %+v", got.Conditions)
		}
		if got.Active == nil || *got.Active {
			t.Fatalf("expected active=false, got %v", got.Active)
		}
		if got.Name != nil || got.Priority != nil {
			t.Fatalf("absent fields must stay nil: %+v", got)
		}
	})

	t.Run("absent conditions are untouched", func(t *testing.T) {
		server, deps := newTestServer(t)
		var got store.RulePatch
		deps.rules.updateFn = func(_ context.Context, _, ruleID string, patch store.RulePatch) (store.RoutingRule, error) {
			got = patch
			return store.RoutingRule{ID: ruleID}, nil
		}

		rr, _ := do(t, server.Handler(), http.MethodPut, "/api/routing/rules/r1", tokenFor(t, "u1", rbac.LevelPartner), `{"priority":3}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if got.Conditions != nil || got.Priority == nil || *got.Priority != 3 {
			t.Fatalf("unexpected patch %+v", got)
		}
	})

	t.Run("empty patch", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.rules.updateFn = func(context.Context, string, string, store.RulePatch) (store.RoutingRule, error) {
			return store.RoutingRule{}, fmt.Errorf("%w: no fields to update", routing.ErrInvalidRuleDefinition)
		}

		rr, payload := do(t, server.Handler(), http.MethodPut, "/api/routing/rules/r1", tokenFor(t, "u1", rbac.LevelPartner), `{}`)
		if rr.Code != http.StatusBadRequest || payload["code"] != "INVALID_RULE_DEFINITION" {
			t.Fatalf("unexpected response %d %v", rr.Code, payload)
		}
	})
}

func TestDeleteRuleRouteNotFound(t *testing.T) {
	server, deps := newTestServer(t)
	deps.rules.deleteFn = func(context.Context, string, string) error { return routing.ErrRuleNotFound }

	rr, payload := do(t, server.Handler(), http.MethodDelete, "/api/routing/rules/missing", tokenFor(t, "u1", rbac.LevelPartner), "")
	if rr.Code != http.StatusNotFound || payload["code"] != "RULE_NOT_FOUND" {
		t.Fatalf("unexpected response %d %v", rr.Code, payload)
	}
}

func TestListRulesAndStatsRoutes(t *testing.T) {
	server, deps := newTestServer(t)
	assignee := "u3"
	deps.rules.listFn = func(context.Context, string) ([]store.RoutingRule, error) {
		return []store.RoutingRule{{ID: "r1", Name: "Fixed", DepartmentName: "Litigation", AssignToUserID: &assignee, AssignedUserName: "Sam Ortiz"}}, nil
	}
	token := tokenFor(t, "u1", rbac.LevelStaff)

	rr, payload := do(t, server.Handler(), http.MethodGet, "/api/routing/rules", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	rules, _ := payload["rules"].([]any)
	if len(rules) != 1 {
		t.Fatalf("expected one rule, got %v", payload["rules"])
	}
	first := rules[0].(map[string]any)
	if first["departmentName"] != "Litigation" || first["assignedUserName"] != "Sam Ortiz" {
		t.Fatalf("expected names in rule view, got %v", first)
	}

	rr, payload = do(t, server.Handler(), http.MethodGet, "/api/routing/stats", token, "")
	if rr.Code != http.StatusOK || payload["totalRules"] != float64(3) || payload["departmentsWithRotation"] != float64(1) {
		t.Fatalf("unexpected stats %d %v", rr.Code, payload)
	}
}
