package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
)

// Index is the primary search backend. Healthy reports whether it is
// reachable.
type Index interface {
	Searcher
	Healthy() bool
	IndexDocuments(records []DocumentRecord) error
}

type documentSource interface {
	ListSearchableDocuments(ctx context.Context) ([]store.Document, error)
}

// Service queries the index when it is healthy and falls back to the
// database otherwise.
type Service struct {
	index    Index
	fallback Searcher
	source   documentSource
	log      zerolog.Logger
}

// NewService accepts a nil index when Meilisearch is not configured.
func NewService(index Index, fallback Searcher, source documentSource, log zerolog.Logger) *Service {
	return &Service{index: index, fallback: fallback, source: source, log: log}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// SearchDocumentIDs returns the ids of the firm's documents matching text.
func (s *Service) SearchDocumentIDs(ctx context.Context, firmID, text string) ([]string, error) {
	if s.indexReady() {
		ids, err := s.index.SearchIDs(ctx, firmID, text, maxHits)
		if err == nil {
			return ids, nil
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to pgfts")
	}

	ids, err := s.fallback.SearchIDs(ctx, firmID, text, maxHits)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return ids, nil
}

// IndexDocument pushes a document to the index in the background.
func (s *Service) IndexDocument(doc store.Document) {
	if !s.indexReady() {
		return
	}
	record := RecordFromDocument(doc)
	go func() {
		if err := s.index.IndexDocuments([]DocumentRecord{record}); err != nil {
			s.log.Warn().Err(err).Str("document_id", record.ID).Msg("index document")
		}
	}()
}

// ReindexAllFromPG loads every document from PostgreSQL into the index.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.indexReady() || s.source == nil {
		return
	}
	docs, err := s.source.ListSearchableDocuments(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("reindex load failed")
		return
	}
	records := make([]DocumentRecord, len(docs))
	for i, doc := range docs {
		records[i] = RecordFromDocument(doc)
	}
	if err := s.index.IndexDocuments(records); err != nil {
		s.log.Warn().Err(err).Int("documents", len(records)).Msg("reindex documents")
		return
	}
	s.log.Info().Int("documents", len(records)).Msg("search index rebuilt")
}
