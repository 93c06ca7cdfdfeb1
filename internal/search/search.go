// Package search finds legal documents by free text. Meilisearch serves the
// queries when reachable; PostgreSQL full-text search covers for it otherwise.
package search

import (
	"context"

	"legalnexus/api/internal/store"
)

// maxHits caps how many document ids one query may return.
const maxHits = 1000

// DocumentRecord is the data we index for a legal document. Access is not
// decided by the index; callers filter hits through the access policy.
type DocumentRecord struct {
	ID           string   `json:"id"`
	FirmID       string   `json:"firmId"`
	MatterID     string   `json:"matterId"`
	Title        string   `json:"title"`
	DocumentType string   `json:"documentType"`
	AccessLevel  string   `json:"accessLevel"`
	Tags         []string `json:"tags"`
}

func RecordFromDocument(doc store.Document) DocumentRecord {
	record := DocumentRecord{
		ID:           doc.ID,
		FirmID:       doc.FirmID,
		Title:        doc.Title,
		DocumentType: doc.DocumentType,
		AccessLevel:  doc.AccessLevel,
		Tags:         doc.Tags,
	}
	if doc.MatterID != nil {
		record.MatterID = *doc.MatterID
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	return record
}

// Searcher returns the ids of a firm's documents matching text, best match
// first.
type Searcher interface {
	SearchIDs(ctx context.Context, firmID, text string, limit int) ([]string, error)
}
