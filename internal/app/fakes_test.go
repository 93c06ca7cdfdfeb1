package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/access"
	"legalnexus/api/internal/auth"
	"legalnexus/api/internal/rbac"
	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/store"
)

const testSecret = "test-secret"

type fakeAssigner struct {
	assignFn func(ctx context.Context, firmID string, req routing.Request) (routing.Result, error)
}

func (f *fakeAssigner) Assign(ctx context.Context, firmID string, req routing.Request) (routing.Result, error) {
	if f.assignFn != nil {
		return f.assignFn(ctx, firmID, req)
	}
	return routing.Result{}, routing.ErrNoEligibleAssignee
}

type fakeRules struct {
	listFn   func(ctx context.Context, firmID string) ([]store.RoutingRule, error)
	getFn    func(ctx context.Context, firmID, ruleID string) (store.RoutingRule, error)
	createFn func(ctx context.Context, firmID, actorID string, in routing.RuleInput) (store.RoutingRule, error)
	updateFn func(ctx context.Context, firmID, ruleID string, patch store.RulePatch) (store.RoutingRule, error)
	deleteFn func(ctx context.Context, firmID, ruleID string) error
}

func (f *fakeRules) List(ctx context.Context, firmID string) ([]store.RoutingRule, error) {
	if f.listFn != nil {
		return f.listFn(ctx, firmID)
	}
	return nil, nil
}

func (f *fakeRules) Get(ctx context.Context, firmID, ruleID string) (store.RoutingRule, error) {
	if f.getFn != nil {
		return f.getFn(ctx, firmID, ruleID)
	}
	return store.RoutingRule{}, routing.ErrRuleNotFound
}

func (f *fakeRules) Create(ctx context.Context, firmID, actorID string, in routing.RuleInput) (store.RoutingRule, error) {
	if f.createFn != nil {
		return f.createFn(ctx, firmID, actorID, in)
	}
	return store.RoutingRule{}, nil
}

func (f *fakeRules) Update(ctx context.Context, firmID, ruleID string, patch store.RulePatch) (store.RoutingRule, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, firmID, ruleID, patch)
	}
	return store.RoutingRule{}, nil
}

func (f *fakeRules) Delete(ctx context.Context, firmID, ruleID string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, firmID, ruleID)
	}
	return nil
}

func (f *fakeRules) Stats(context.Context, string) (store.RoutingStats, error) {
	return store.RoutingStats{TotalRules: 3, ActiveRules: 2, RoundRobinRules: 1, DepartmentsWithRotation: 1}, nil
}

type fakeExplainer struct {
	explainFn func(ctx context.Context, req access.AccessRequest) (access.Decision, error)
}

func (f *fakeExplainer) Explain(ctx context.Context, req access.AccessRequest) (access.Decision, error) {
	if f.explainFn != nil {
		return f.explainFn(ctx, req)
	}
	return access.Decision{Allowed: true, Basis: access.BasisPublic}, nil
}

type fakeDocuments struct {
	listFn     func(ctx context.Context, userID, firmID string, filters access.Filters) ([]store.Document, error)
	bulkFn     func(ctx context.Context, userID string, ids []string) (map[string]bool, error)
	updateFn   func(ctx context.Context, firmID, documentID, value string) (store.Document, error)
	shareFn    func(ctx context.Context, firmID string, by access.AccessRequest, in access.ShareInput) (store.DocumentShare, error)
	revokeFn   func(ctx context.Context, firmID, documentID, shareID string) error
	downloadFn func(ctx context.Context, firmID string, req access.AccessRequest) (access.DownloadLink, access.Decision, error)
}

func (f *fakeDocuments) AccessibleDocuments(ctx context.Context, userID, firmID string, filters access.Filters) ([]store.Document, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID, firmID, filters)
	}
	return nil, nil
}

func (f *fakeDocuments) CheckBulk(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	if f.bulkFn != nil {
		return f.bulkFn(ctx, userID, ids)
	}
	return map[string]bool{}, nil
}

func (f *fakeDocuments) RecommendedAccessLevel(_ context.Context, _, documentType string) (access.Level, error) {
	if documentType == "contract" {
		return access.LevelPartnerOnly, nil
	}
	return access.LevelMatterTeam, nil
}

func (f *fakeDocuments) UpdateAccessLevel(ctx context.Context, firmID, documentID, value string) (store.Document, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, firmID, documentID, value)
	}
	return store.Document{ID: documentID, AccessLevel: value}, nil
}

func (f *fakeDocuments) Share(ctx context.Context, firmID string, by access.AccessRequest, in access.ShareInput) (store.DocumentShare, error) {
	if f.shareFn != nil {
		return f.shareFn(ctx, firmID, by, in)
	}
	return store.DocumentShare{}, nil
}

func (f *fakeDocuments) RevokeShare(ctx context.Context, firmID, documentID, shareID string) error {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, firmID, documentID, shareID)
	}
	return nil
}

func (f *fakeDocuments) Shares(context.Context, string, string) ([]store.DocumentShare, error) {
	return nil, nil
}

func (f *fakeDocuments) UserAccessStats(context.Context, string, string) (access.AccessStats, error) {
	return access.AccessStats{Total: 2, ByLevel: map[access.Level]int{access.LevelPublic: 2}}, nil
}

func (f *fakeDocuments) Download(ctx context.Context, firmID string, req access.AccessRequest) (access.DownloadLink, access.Decision, error) {
	if f.downloadFn != nil {
		return f.downloadFn(ctx, firmID, req)
	}
	return access.DownloadLink{}, access.Decision{}, access.ErrDownloadUnavailable
}

type fakeAudit struct {
	statsFn   func(ctx context.Context, firmID string, filter store.AccessLogFilter) (store.AccessStats, error)
	historyFn func(ctx context.Context, firmID, userID string, limit int) ([]store.AccessLog, error)
	cleaned   int
}

func (f *fakeAudit) DocumentHistory(context.Context, string, string, int) ([]store.AccessLog, error) {
	return nil, nil
}

func (f *fakeAudit) UserHistory(ctx context.Context, firmID, userID string, limit int) ([]store.AccessLog, error) {
	if f.historyFn != nil {
		return f.historyFn(ctx, firmID, userID, limit)
	}
	return nil, nil
}

func (f *fakeAudit) RecentDenials(context.Context, string, int) ([]store.AccessLog, error) {
	return nil, nil
}

func (f *fakeAudit) Stats(ctx context.Context, firmID string, filter store.AccessLogFilter) (store.AccessStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx, firmID, filter)
	}
	return store.AccessStats{ByAction: map[string]int64{}}, nil
}

func (f *fakeAudit) MostAccessed(context.Context, string, int, int) ([]store.DocumentAccessCount, error) {
	return nil, nil
}

func (f *fakeAudit) UserActivity(_ context.Context, _, userID string, _ int) (store.UserActivitySummary, error) {
	return store.UserActivitySummary{UserID: userID, TotalAccesses: 4, Granted: 3, Denied: 1, ByAction: map[string]int64{"view": 4}}, nil
}

func (f *fakeAudit) Cleanup(context.Context, string) (int64, error) {
	f.cleaned++
	return 7, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testDeps struct {
	assigner  *fakeAssigner
	rules     *fakeRules
	explainer *fakeExplainer
	documents *fakeDocuments
	audit     *fakeAudit
}

func newTestServer(t *testing.T) (*HTTPServer, *testDeps) {
	t.Helper()
	deps := &testDeps{
		assigner:  &fakeAssigner{},
		rules:     &fakeRules{},
		explainer: &fakeExplainer{},
		documents: &fakeDocuments{},
		audit:     &fakeAudit{},
	}
	server := NewHTTPServer(Services{
		Assigner:  deps.assigner,
		Rules:     deps.rules,
		Access:    deps.explainer,
		Documents: deps.documents,
		Audit:     deps.audit,
		Readiness: map[string]Pinger{
			"database": pingFunc(func(context.Context) error { return nil }),
		},
	}, testSecret, "*", zerolog.Nop())
	return server, deps
}

func tokenFor(t *testing.T, userID string, level rbac.Level) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.NewClaims(userID, "firm-1", int(level), time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

// do sends a request and decodes a JSON object response.
func do(t *testing.T, handler http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, payload
}
