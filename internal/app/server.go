package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"legalnexus/api/internal/access"
	"legalnexus/api/internal/metrics"
	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/store"
)

type Assigner interface {
	Assign(ctx context.Context, firmID string, req routing.Request) (routing.Result, error)
}

type RuleManager interface {
	List(ctx context.Context, firmID string) ([]store.RoutingRule, error)
	Get(ctx context.Context, firmID, ruleID string) (store.RoutingRule, error)
	Create(ctx context.Context, firmID, actorID string, in routing.RuleInput) (store.RoutingRule, error)
	Update(ctx context.Context, firmID, ruleID string, patch store.RulePatch) (store.RoutingRule, error)
	Delete(ctx context.Context, firmID, ruleID string) error
	Stats(ctx context.Context, firmID string) (store.RoutingStats, error)
}

type AccessExplainer interface {
	Explain(ctx context.Context, req access.AccessRequest) (access.Decision, error)
}

type DocumentManager interface {
	AccessibleDocuments(ctx context.Context, userID, firmID string, filters access.Filters) ([]store.Document, error)
	CheckBulk(ctx context.Context, userID string, documentIDs []string) (map[string]bool, error)
	RecommendedAccessLevel(ctx context.Context, firmID, documentType string) (access.Level, error)
	UpdateAccessLevel(ctx context.Context, firmID, documentID, value string) (store.Document, error)
	Share(ctx context.Context, firmID string, by access.AccessRequest, in access.ShareInput) (store.DocumentShare, error)
	RevokeShare(ctx context.Context, firmID, documentID, shareID string) error
	Shares(ctx context.Context, firmID, documentID string) ([]store.DocumentShare, error)
	UserAccessStats(ctx context.Context, userID, firmID string) (access.AccessStats, error)
	Download(ctx context.Context, firmID string, req access.AccessRequest) (access.DownloadLink, access.Decision, error)
}

type AuditLog interface {
	DocumentHistory(ctx context.Context, firmID, documentID string, limit int) ([]store.AccessLog, error)
	UserHistory(ctx context.Context, firmID, userID string, limit int) ([]store.AccessLog, error)
	RecentDenials(ctx context.Context, firmID string, limit int) ([]store.AccessLog, error)
	Stats(ctx context.Context, firmID string, filter store.AccessLogFilter) (store.AccessStats, error)
	MostAccessed(ctx context.Context, firmID string, days, limit int) ([]store.DocumentAccessCount, error)
	UserActivity(ctx context.Context, firmID, userID string, days int) (store.UserActivitySummary, error)
	Cleanup(ctx context.Context, firmID string) (int64, error)
}

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the domain operations served over HTTP. Readiness maps a
// dependency name to its check; "database" is expected.
type Services struct {
	Assigner  Assigner
	Rules     RuleManager
	Access    AccessExplainer
	Documents DocumentManager
	Audit     AuditLog
	Readiness map[string]Pinger
}

type HTTPServer struct {
	services   Services
	jwtSecret  []byte
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(services Services, jwtSecret, corsOrigin string, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		services:   services,
		jwtSecret:  []byte(jwtSecret),
		corsOrigin: corsOrigin,
		log:        log,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(metrics.Middleware)
	r.Use(s.accessLog)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Route("/api/routing", func(r chi.Router) {
			r.Post("/assign", s.handleAssign)
			r.Get("/stats", s.handleRuleStats)
			r.Get("/rules", s.handleListRules)
			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules/{ruleID}", s.handleGetRule)
			r.Put("/rules/{ruleID}", s.handleUpdateRule)
			r.Delete("/rules/{ruleID}", s.handleDeleteRule)
		})

		r.Route("/api/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/access-check", s.handleBulkAccessCheck)
			r.Route("/{documentID}", func(r chi.Router) {
				r.Get("/access", s.handleExplainAccess)
				r.Get("/download", s.handleDownload)
				r.Put("/access-level", s.handleUpdateAccessLevel)
				r.Get("/shares", s.handleListShares)
				r.Post("/shares", s.handleShare)
				r.Delete("/shares/{shareID}", s.handleRevokeShare)
				r.Get("/history", s.handleDocumentHistory)
			})
		})

		r.Get("/api/document-types/{code}/recommended-access-level", s.handleRecommendedAccessLevel)

		r.Get("/api/me/access-stats", s.handleMyAccessStats)
		r.Get("/api/me/activity", s.handleMyActivity)

		r.Route("/api/audit", func(r chi.Router) {
			r.Get("/stats", s.handleAuditStats)
			r.Get("/most-accessed", s.handleMostAccessed)
			r.Get("/denials", s.handleRecentDenials)
			r.Post("/cleanup", s.handleAuditCleanup)
		})
	})

	return r
}
