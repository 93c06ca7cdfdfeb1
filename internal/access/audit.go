package access

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	defaultDays     = 30
)

type auditStore interface {
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	ListDocumentAccessLogs(ctx context.Context, documentID string, limit int) ([]store.AccessLog, error)
	ListUserAccessLogs(ctx context.Context, firmID, userID string, limit int) ([]store.AccessLog, error)
	ListRecentDenials(ctx context.Context, firmID string, limit int) ([]store.AccessLog, error)
	AccessStats(ctx context.Context, firmID string, filter store.AccessLogFilter) (store.AccessStats, error)
	MostAccessedDocuments(ctx context.Context, firmID string, since time.Time, limit int) ([]store.DocumentAccessCount, error)
	UserActivity(ctx context.Context, firmID, userID string, since time.Time) (store.UserActivitySummary, error)
	DeleteAccessLogsBefore(ctx context.Context, firmID string, cutoff time.Time) (int64, error)
}

// AuditService reads the access log and enforces its retention.
type AuditService struct {
	store     auditStore
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuditService(s auditStore, retention time.Duration, log zerolog.Logger) *AuditService {
	return &AuditService{store: s, retention: retention, log: log, now: time.Now}
}

// DocumentHistory returns the newest log entries of a firm document.
func (s *AuditService) DocumentHistory(ctx context.Context, firmID, documentID string, limit int) ([]store.AccessLog, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if isMissing(err) || (err == nil && doc.FirmID != firmID) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListDocumentAccessLogs(ctx, documentID, clampLimit(limit))
}

func (s *AuditService) UserHistory(ctx context.Context, firmID, userID string, limit int) ([]store.AccessLog, error) {
	return s.store.ListUserAccessLogs(ctx, firmID, userID, clampLimit(limit))
}

func (s *AuditService) RecentDenials(ctx context.Context, firmID string, limit int) ([]store.AccessLog, error) {
	return s.store.ListRecentDenials(ctx, firmID, clampLimit(limit))
}

func (s *AuditService) Stats(ctx context.Context, firmID string, filter store.AccessLogFilter) (store.AccessStats, error) {
	return s.store.AccessStats(ctx, firmID, filter)
}

// MostAccessed ranks documents by granted accesses over the last days.
func (s *AuditService) MostAccessed(ctx context.Context, firmID string, days, limit int) ([]store.DocumentAccessCount, error) {
	return s.store.MostAccessedDocuments(ctx, firmID, s.since(days), clampLimit(limit))
}

func (s *AuditService) UserActivity(ctx context.Context, firmID, userID string, days int) (store.UserActivitySummary, error) {
	return s.store.UserActivity(ctx, firmID, userID, s.since(days))
}

// Cleanup deletes the firm's log entries older than the retention period.
func (s *AuditService) Cleanup(ctx context.Context, firmID string) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.store.DeleteAccessLogsBefore(ctx, firmID, cutoff)
	if err != nil {
		return 0, err
	}
	auditCleanupDeletedTotal.Add(float64(deleted))
	s.log.Info().Str("firm_id", firmID).Time("cutoff", cutoff).Int64("deleted", deleted).Msg("access log retention applied")
	return deleted, nil
}

func (s *AuditService) since(days int) time.Time {
	if days <= 0 {
		days = defaultDays
	}
	return s.now().AddDate(0, 0, -days)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLogLimit
	case limit > maxLogLimit:
		return maxLogLimit
	default:
		return limit
	}
}
