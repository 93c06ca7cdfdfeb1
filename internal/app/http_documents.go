package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"legalnexus/api/internal/access"
	"legalnexus/api/internal/rbac"
)

const maxBulkCheck = 500

func (s *HTTPServer) accessRequest(r *http.Request, session Session, documentID string, action access.Action) access.AccessRequest {
	return access.AccessRequest{
		UserID:     session.UserID,
		FirmID:     session.FirmID,
		DocumentID: documentID,
		Action:     action,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	}
}

func (s *HTTPServer) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	query := r.URL.Query()
	filters := access.Filters{
		MatterID:     strings.TrimSpace(query.Get("matterId")),
		AccessLevel:  strings.TrimSpace(query.Get("accessLevel")),
		DocumentType: strings.TrimSpace(query.Get("documentType")),
		Query:        strings.TrimSpace(query.Get("q")),
	}
	if filters.AccessLevel != "" {
		if _, err := access.ParseLevel(filters.AccessLevel); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	docs, err := s.services.Documents.AccessibleDocuments(r.Context(), session.UserID, session.FirmID, filters)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, toDocumentView(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": views})
}

func (s *HTTPServer) handleBulkAccessCheck(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	var body struct {
		DocumentIDs []string `json:"documentIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if len(body.DocumentIDs) > maxBulkCheck {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "too many documentIds", map[string]any{"max": maxBulkCheck})
		return
	}
	results, err := s.services.Documents.CheckBulk(r.Context(), session.UserID, body.DocumentIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleExplainAccess answers 200 for grants and denials alike.
func (s *HTTPServer) handleExplainAccess(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	action, err := access.ParseAction(strings.TrimSpace(r.URL.Query().Get("action")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	documentID := chi.URLParam(r, "documentID")
	decision, err := s.services.Access.Explain(r.Context(), s.accessRequest(r, session, documentID, action))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documentId": documentID,
		"action":     action,
		"allowed":    decision.Allowed,
		"reason":     decision.Reason,
		"basis":      decision.Basis,
	})
}

func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	documentID := chi.URLParam(r, "documentID")
	link, decision, err := s.services.Documents.Download(r.Context(), session.FirmID, s.accessRequest(r, session, documentID, access.ActionDownload))
	if errors.Is(err, access.ErrAccessDenied) {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Access denied", map[string]any{"reason": decision.Reason})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (s *HTTPServer) handleUpdateAccessLevel(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionChangeAccessLevel) {
		return
	}
	var body struct {
		AccessLevel string `json:"accessLevel"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := s.services.Documents.UpdateAccessLevel(r.Context(), session.FirmID, chi.URLParam(r, "documentID"), strings.TrimSpace(body.AccessLevel))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentView(doc))
}

func (s *HTTPServer) handleListShares(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionShareDocument) {
		return
	}
	shares, err := s.services.Documents.Shares(r.Context(), session.FirmID, chi.URLParam(r, "documentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]shareView, 0, len(shares))
	for _, share := range shares {
		views = append(views, toShareView(share))
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": views})
}

// handleShare defaults the permission to view.
func (s *HTTPServer) handleShare(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionShareDocument) {
		return
	}
	var body struct {
		SharedWithUserID       string     `json:"sharedWithUserId"`
		SharedWithDepartmentID string     `json:"sharedWithDepartmentId"`
		Permission             string     `json:"permission"`
		ExpiresAt              *time.Time `json:"expiresAt"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	permission := strings.TrimSpace(body.Permission)
	if permission == "" {
		permission = string(access.PermissionView)
	}
	documentID := chi.URLParam(r, "documentID")
	share, err := s.services.Documents.Share(r.Context(), session.FirmID, s.accessRequest(r, session, documentID, access.ActionShare), access.ShareInput{
		DocumentID:             documentID,
		SharedWithUserID:       body.SharedWithUserID,
		SharedWithDepartmentID: body.SharedWithDepartmentID,
		Permission:             permission,
		ExpiresAt:              body.ExpiresAt,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShareView(share))
}

func (s *HTTPServer) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionChangeAccessLevel) {
		return
	}
	err := s.services.Documents.RevokeShare(r.Context(), session.FirmID, chi.URLParam(r, "documentID"), chi.URLParam(r, "shareID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDocumentHistory(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	if !s.allowed(w, r, session, rbac.ActionViewAudit) {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.services.Audit.DocumentHistory(r.Context(), session.FirmID, chi.URLParam(r, "documentID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": toAccessLogViews(entries)})
}

func (s *HTTPServer) handleRecommendedAccessLevel(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	code := chi.URLParam(r, "code")
	level, err := s.services.Documents.RecommendedAccessLevel(r.Context(), session.FirmID, code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documentType": code, "accessLevel": level})
}

func (s *HTTPServer) handleMyAccessStats(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	stats, err := s.services.Documents.UserAccessStats(r.Context(), session.UserID, session.FirmID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
