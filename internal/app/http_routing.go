package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"legalnexus/api/internal/rbac"
	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/store"
)

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionAssign) {
		return
	}
	var body struct {
		ClientID       string   `json:"clientId"`
		MatterType     string   `json:"matterType"`
		EstimatedValue *float64 `json:"estimatedValue"`
		DepartmentID   string   `json:"departmentId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.services.Assigner.Assign(r.Context(), session.FirmID, routing.Request{
		ClientID:       strings.TrimSpace(body.ClientID),
		MatterType:     strings.TrimSpace(body.MatterType),
		EstimatedValue: body.EstimatedValue,
		DepartmentID:   strings.TrimSpace(body.DepartmentID),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentView(result))
}

func (s *HTTPServer) handleListRules(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewRules) {
		return
	}
	rules, err := s.services.Rules.List(r.Context(), session.FirmID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, toRuleView(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": views})
}

func (s *HTTPServer) handleGetRule(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewRules) {
		return
	}
	rule, err := s.services.Rules.Get(r.Context(), session.FirmID, chi.URLParam(r, "ruleID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleView(rule))
}

func (s *HTTPServer) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionManageRules) {
		return
	}
	var body struct {
		Name           string          `json:"name"`
		DepartmentID   string          `json:"departmentId"`
		Priority       int             `json:"priority"`
		Conditions     json.RawMessage `json:"conditions"`
		AssignToUserID string          `json:"assignToUserId"`
		RoundRobin     bool            `json:"roundRobin"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	conditions, err := routing.ParseConditions(body.Conditions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rule, err := s.services.Rules.Create(r.Context(), session.FirmID, session.UserID, routing.RuleInput{
		Name:           body.Name,
		DepartmentID:   strings.TrimSpace(body.DepartmentID),
		Priority:       body.Priority,
		Conditions:     conditions,
		AssignToUserID: strings.TrimSpace(body.AssignToUserID),
		RoundRobin:     body.RoundRobin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleView(rule))
}

// handleUpdateRule applies the fields present in the body. A null
// conditions value clears them; an empty assignToUserId removes the fixed
// assignee.
func (s *HTTPServer) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionManageRules) {
		return
	}
	var body struct {
		Name           *string         `json:"name"`
		Priority       *int            `json:"priority"`
		Conditions     json.RawMessage `json:"conditions"`
		AssignToUserID *string         `json:"assignToUserId"`
		RoundRobin     *bool           `json:"roundRobin"`
		Active         *bool           `json:"active"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	patch := store.RulePatch{
		Name:           body.Name,
		Priority:       body.Priority,
		AssignToUserID: body.AssignToUserID,
		RoundRobin:     body.RoundRobin,
		Active:         body.Active,
	}
	if len(body.Conditions) > 0 {
		conditions, err := routing.ParseConditions(body.Conditions)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		patch.Conditions = &conditions
	}
	rule, err := s.services.Rules.Update(r.Context(), session.FirmID, chi.URLParam(r, "ruleID"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleView(rule))
}

func (s *HTTPServer) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionManageRules) {
		return
	}
	if err := s.services.Rules.Delete(r.Context(), session.FirmID, chi.URLParam(r, "ruleID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRuleStats(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewRules) {
		return
	}
	stats, err := s.services.Rules.Stats(r.Context(), session.FirmID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalRules":              stats.TotalRules,
		"activeRules":             stats.ActiveRules,
		"roundRobinRules":         stats.RoundRobinRules,
		"departmentsWithRotation": stats.DepartmentsWithRotation,
	})
}
