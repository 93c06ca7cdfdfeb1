package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"legalnexus/api/internal/rbac"
	"legalnexus/api/internal/store"
)

const recentActivityLimit = 20

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := make(map[string]any, len(s.services.Readiness))
	for name, dep := range s.services.Readiness {
		if err := dep.Ping(ctx); err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	status, statusCode := "ready", http.StatusOK
	if !ready {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

// handleMyActivity returns the caller's activity summary with their most
// recent access log entries.
func (s *HTTPServer) handleMyActivity(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	days, err := queryInt(r, "days", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summary, err := s.services.Audit.UserActivity(r.Context(), session.FirmID, session.UserID, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recent, err := s.services.Audit.UserHistory(r.Context(), session.FirmID, session.UserID, recentActivityLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": activityView(summary),
		"recent":  toAccessLogViews(recent),
	})
}

func (s *HTTPServer) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewAudit) {
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	stats, err := s.services.Audit.Stats(r.Context(), session.FirmID, store.AccessLogFilter{
		UserID:     strings.TrimSpace(query.Get("userId")),
		DocumentID: strings.TrimSpace(query.Get("documentId")),
		From:       from,
		To:         to,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessStatsView(stats))
}

func (s *HTTPServer) handleMostAccessed(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewAudit) {
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	days, err := queryInt(r, "days", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.services.Audit.MostAccessed(r.Context(), session.FirmID, days, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]accessCountView, 0, len(counts))
	for _, count := range counts {
		views = append(views, accessCountView(count))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": views})
}

func (s *HTTPServer) handleRecentDenials(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewAudit) {
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.services.Audit.RecentDenials(r.Context(), session.FirmID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"denials": toAccessLogViews(entries)})
}

func (s *HTTPServer) handleAuditCleanup(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionCleanupAudit) {
		return
	}
	deleted, err := s.services.Audit.Cleanup(r.Context(), session.FirmID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info().Str("firm_id", session.FirmID).Str("user_id", session.UserID).Int64("deleted", deleted).Msg("access log cleanup")
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
