package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) InsertAccessLog(ctx context.Context, entry AccessLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_access_logs (
			id, firm_id, document_id, user_id, action, granted,
			denial_reason, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.FirmID, entry.DocumentID, entry.UserID, entry.Action, entry.Granted,
		entry.DenialReason, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert access log: %w", classify(err))
	}
	return nil
}

const accessLogColumns = `
	l.id, l.firm_id, l.document_id, l.user_id, l.action, l.granted,
	l.denial_reason, l.ip_address, l.user_agent, l.created_at,
	COALESCE(d.title, ''), COALESCE(u.first_name || ' ' || u.last_name, '')`

const accessLogJoins = `
	FROM document_access_logs l
	LEFT JOIN legal_documents d ON d.id = l.document_id
	LEFT JOIN users u ON u.id = l.user_id`

func (s *PostgresStore) queryAccessLogs(ctx context.Context, query string, args ...any) ([]AccessLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := make([]AccessLog, 0)
	for rows.Next() {
		var item AccessLog
		if err := rows.Scan(
			&item.ID, &item.FirmID, &item.DocumentID, &item.UserID, &item.Action, &item.Granted,
			&item.DenialReason, &item.IPAddress, &item.UserAgent, &item.CreatedAt,
			&item.DocumentTitle, &item.UserName,
		); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ListDocumentAccessLogs(ctx context.Context, documentID string, limit int) ([]AccessLog, error) {
	items, err := s.queryAccessLogs(ctx, `SELECT `+accessLogColumns+accessLogJoins+`
		WHERE l.document_id = $1
		ORDER BY l.created_at DESC
		LIMIT $2
	`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list document access logs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListUserAccessLogs(ctx context.Context, firmID, userID string, limit int) ([]AccessLog, error) {
	items, err := s.queryAccessLogs(ctx, `SELECT `+accessLogColumns+accessLogJoins+`
		WHERE l.firm_id = $1 AND l.user_id = $2
		ORDER BY l.created_at DESC
		LIMIT $3
	`, firmID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user access logs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListRecentDenials(ctx context.Context, firmID string, limit int) ([]AccessLog, error) {
	items, err := s.queryAccessLogs(ctx, `SELECT `+accessLogColumns+accessLogJoins+`
		WHERE l.firm_id = $1 AND NOT l.granted
		ORDER BY l.created_at DESC
		LIMIT $2
	`, firmID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent denials: %w", err)
	}
	return items, nil
}

func accessLogPredicates(firmID string, filter AccessLogFilter) *predicates {
	p := newPredicates(firmID)
	if filter.UserID != "" {
		p.add("l.user_id = ?", filter.UserID)
	}
	if filter.DocumentID != "" {
		p.add("l.document_id = ?", filter.DocumentID)
	}
	if filter.From != nil {
		p.add("l.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		p.add("l.created_at < ?", *filter.To)
	}
	return p
}

func (s *PostgresStore) AccessStats(ctx context.Context, firmID string, filter AccessLogFilter) (AccessStats, error) {
	p := accessLogPredicates(firmID, filter)
	stats := AccessStats{ByAction: map[string]int64{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE l.granted),
			COUNT(*) FILTER (WHERE NOT l.granted),
			COUNT(DISTINCT l.user_id),
			COUNT(DISTINCT l.document_id)
		FROM document_access_logs l
		WHERE l.firm_id = $1`+p.sql(), p.args...).
		Scan(&stats.TotalAccesses, &stats.Granted, &stats.Denied, &stats.UniqueUsers, &stats.UniqueDocuments)
	if err != nil {
		return AccessStats{}, fmt.Errorf("access stats: %w", classify(err))
	}

	byAction, err := s.countByAction(ctx, `
		SELECT l.action, COUNT(*)
		FROM document_access_logs l
		WHERE l.firm_id = $1`+p.sql()+`
		GROUP BY l.action
	`, p.args...)
	if err != nil {
		return AccessStats{}, err
	}
	stats.ByAction = byAction
	return stats, nil
}

func (s *PostgresStore) countByAction(ctx context.Context, query string, args ...any) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count access logs by action: %w", classify(err))
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) MostAccessedDocuments(ctx context.Context, firmID string, since time.Time, limit int) ([]DocumentAccessCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.document_id, COALESCE(d.title, ''), COUNT(*), COUNT(DISTINCT l.user_id), MAX(l.created_at)
		FROM document_access_logs l
		LEFT JOIN legal_documents d ON d.id = l.document_id
		WHERE l.firm_id = $1 AND l.granted AND l.created_at >= $2
		GROUP BY l.document_id, d.title
		ORDER BY COUNT(*) DESC, MAX(l.created_at) DESC
		LIMIT $3
	`, firmID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("most accessed documents: %w", classify(err))
	}
	defer rows.Close()

	items := make([]DocumentAccessCount, 0)
	for rows.Next() {
		var item DocumentAccessCount
		if err := rows.Scan(&item.DocumentID, &item.Title, &item.AccessCount, &item.UniqueUsers, &item.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan access count: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UserActivity(ctx context.Context, firmID, userID string, since time.Time) (UserActivitySummary, error) {
	summary := UserActivitySummary{UserID: userID, Since: since}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE l.granted),
			COUNT(*) FILTER (WHERE NOT l.granted),
			COUNT(DISTINCT l.document_id)
		FROM document_access_logs l
		WHERE l.firm_id = $1 AND l.user_id = $2 AND l.created_at >= $3
	`, firmID, userID, since).Scan(&summary.TotalAccesses, &summary.Granted, &summary.Denied, &summary.UniqueDocuments)
	if err != nil {
		return UserActivitySummary{}, fmt.Errorf("user activity: %w", classify(err))
	}

	byAction, err := s.countByAction(ctx, `
		SELECT l.action, COUNT(*)
		FROM document_access_logs l
		WHERE l.firm_id = $1 AND l.user_id = $2 AND l.created_at >= $3
		GROUP BY l.action
	`, firmID, userID, since)
	if err != nil {
		return UserActivitySummary{}, err
	}
	summary.ByAction = byAction
	return summary, nil
}

// DeleteAccessLogsBefore enforces retention and reports how many rows went.
func (s *PostgresStore) DeleteAccessLogsBefore(ctx context.Context, firmID string, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM document_access_logs
		WHERE firm_id = $1 AND created_at < $2
	`, firmID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old access logs: %w", classify(err))
	}
	return result.RowsAffected()
}
