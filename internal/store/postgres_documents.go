package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const documentColumns = `
	d.id, d.firm_id, d.matter_id, d.title, d.document_type, d.access_level, d.file_key,
	d.file_size, d.mime_type, d.tags, d.version, d.uploaded_by, d.upload_date, d.last_accessed`

func (s *PostgresStore) scanDocument(row scanner) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID, &item.FirmID, &item.MatterID, &item.Title, &item.DocumentType, &item.AccessLevel, &item.FileKey,
		&item.FileSize, &item.MimeType, s.types.SQLScanner(&item.Tags), &item.Version, &item.UploadedBy, &item.UploadDate, &item.LastAccessed,
	)
	if err != nil {
		return Document{}, err
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	return item, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	item, err := s.scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM legal_documents d
		WHERE d.id = $1
	`, documentID))
	if err != nil {
		return Document{}, classify(err)
	}
	return item, nil
}

// ListDocuments returns the firm's documents matching filter, newest upload
// first.
func (s *PostgresStore) ListDocuments(ctx context.Context, firmID string, filter DocumentFilter) ([]Document, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []Document{}, nil
	}

	p := newPredicates(firmID)
	if filter.MatterID != "" {
		p.add("d.matter_id = ?", filter.MatterID)
	}
	if filter.AccessLevel != "" {
		p.add("d.access_level = ?", filter.AccessLevel)
	}
	if filter.DocumentType != "" {
		p.add("d.document_type = ?", filter.DocumentType)
	}
	if filter.IDs != nil {
		p.add("d.id = ANY(?::uuid[])", filter.IDs)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+`
		FROM legal_documents d
		WHERE d.firm_id = $1`+p.sql()+`
		ORDER BY d.upload_date DESC, d.id ASC
	`, p.args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", classify(err))
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := s.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateAccessLevel(ctx context.Context, firmID, documentID, accessLevel string) (Document, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE legal_documents
		SET access_level = $1
		WHERE id = $2 AND firm_id = $3
	`, accessLevel, documentID, firmID)
	if err != nil {
		return Document{}, fmt.Errorf("update access level: %w", classify(err))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return Document{}, sql.ErrNoRows
	}
	return s.GetDocument(ctx, documentID)
}

func (s *PostgresStore) TouchLastAccessed(ctx context.Context, documentID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE legal_documents SET last_accessed = $2 WHERE id = $1`, documentID, at); err != nil {
		return fmt.Errorf("touch last accessed: %w", classify(err))
	}
	return nil
}

// DefaultAccessLevel returns the configured default for a document type code.
func (s *PostgresStore) DefaultAccessLevel(ctx context.Context, firmID, documentType string) (string, error) {
	var level string
	err := s.db.QueryRowContext(ctx, `
		SELECT default_access_level
		FROM document_types
		WHERE code = $1 AND firm_id = $2
	`, documentType, firmID).Scan(&level)
	if err != nil {
		return "", classify(err)
	}
	return level, nil
}

const shareColumns = `
	ds.id, ds.document_id, ds.shared_by, ds.shared_with_user_id, ds.shared_with_department_id,
	ds.permission, ds.expires_at, ds.created_at,
	COALESCE(sb.first_name || ' ' || sb.last_name, ''),
	COALESCE(su.first_name || ' ' || su.last_name, ''),
	COALESCE(sd.name, '')`

const shareJoins = `
	FROM document_shares ds
	LEFT JOIN users sb ON sb.id = ds.shared_by
	LEFT JOIN users su ON su.id = ds.shared_with_user_id
	LEFT JOIN departments sd ON sd.id = ds.shared_with_department_id`

func scanShare(row scanner) (DocumentShare, error) {
	var item DocumentShare
	err := row.Scan(
		&item.ID, &item.DocumentID, &item.SharedBy, &item.SharedWithUserID, &item.SharedWithDepartmentID,
		&item.Permission, &item.ExpiresAt, &item.CreatedAt,
		&item.SharedByName, &item.SharedWithUserName, &item.SharedWithDepartmentName,
	)
	return item, err
}

func (s *PostgresStore) queryShares(ctx context.Context, query string, args ...any) ([]DocumentShare, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := make([]DocumentShare, 0)
	for rows.Next() {
		item, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSharesForSubject returns every share, expired ones included, granted to
// the user directly or to one of their departments on the given documents.
func (s *PostgresStore) ListSharesForSubject(ctx context.Context, userID string, departmentIDs, documentIDs []string) ([]DocumentShare, error) {
	if len(documentIDs) == 0 {
		return []DocumentShare{}, nil
	}
	if departmentIDs == nil {
		departmentIDs = []string{}
	}
	items, err := s.queryShares(ctx, `SELECT `+shareColumns+shareJoins+`
		WHERE ds.document_id = ANY($3::uuid[])
		AND (ds.shared_with_user_id = $1 OR ds.shared_with_department_id = ANY($2::uuid[]))
		ORDER BY ds.created_at ASC
	`, userID, departmentIDs, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("list subject shares: %w", err)
	}
	return items, nil
}

// ListActiveShares returns the document's shares that have not expired at now.
func (s *PostgresStore) ListActiveShares(ctx context.Context, documentID string, now time.Time) ([]DocumentShare, error) {
	items, err := s.queryShares(ctx, `SELECT `+shareColumns+shareJoins+`
		WHERE ds.document_id = $1
		AND (ds.expires_at IS NULL OR ds.expires_at > $2)
		ORDER BY ds.created_at DESC
	`, documentID, now)
	if err != nil {
		return nil, fmt.Errorf("list document shares: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateShare(ctx context.Context, share DocumentShare) (DocumentShare, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_shares (
			id, document_id, shared_by, shared_with_user_id,
			shared_with_department_id, permission, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, share.ID, share.DocumentID, share.SharedBy, share.SharedWithUserID,
		share.SharedWithDepartmentID, share.Permission, share.ExpiresAt)
	if err != nil {
		return DocumentShare{}, fmt.Errorf("insert share: %w", classify(err))
	}
	item, err := scanShare(s.db.QueryRowContext(ctx, `SELECT `+shareColumns+shareJoins+` WHERE ds.id = $1`, share.ID))
	if err != nil {
		return DocumentShare{}, fmt.Errorf("load created share: %w", err)
	}
	return item, nil
}

// DeleteShare revokes a share of the document. sql.ErrNoRows when absent.
func (s *PostgresStore) DeleteShare(ctx context.Context, documentID, shareID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM document_shares WHERE id = $1 AND document_id = $2`, shareID, documentID)
	if err != nil {
		return fmt.Errorf("delete share: %w", classify(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSearchableDocuments feeds the search index.
func (s *PostgresStore) ListSearchableDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM legal_documents d`)
	if err != nil {
		return nil, fmt.Errorf("list searchable documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := s.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
