package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches the generated fts column of legal_documents.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

func (p *PgFTS) SearchIDs(ctx context.Context, firmID, text string, limit int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	if limit <= 0 || limit > maxHits {
		limit = maxHits
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT d.id
		FROM legal_documents d, plainto_tsquery('english', $2) q
		WHERE d.firm_id = $1 AND d.fts @@ q
		ORDER BY ts_rank(d.fts, q) DESC, d.upload_date DESC
		LIMIT $3
	`, firmID, text, limit)
	if err != nil {
		return nil, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgfts scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
