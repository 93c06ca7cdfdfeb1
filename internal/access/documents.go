package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
	"legalnexus/api/internal/util"
)

type documentStore interface {
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetAccessSubject(ctx context.Context, userID string) (store.AccessSubject, error)
	MatterIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListDocuments(ctx context.Context, firmID string, filter store.DocumentFilter) ([]store.Document, error)
	ListSharesForSubject(ctx context.Context, userID string, departmentIDs, documentIDs []string) ([]store.DocumentShare, error)
	UpdateAccessLevel(ctx context.Context, firmID, documentID, accessLevel string) (store.Document, error)
	DefaultAccessLevel(ctx context.Context, firmID, documentType string) (string, error)
	ListActiveShares(ctx context.Context, documentID string, now time.Time) ([]store.DocumentShare, error)
	CreateShare(ctx context.Context, share store.DocumentShare) (store.DocumentShare, error)
	DeleteShare(ctx context.Context, documentID, shareID string) error
	GetActiveUser(ctx context.Context, firmID, userID string) (store.User, error)
	GetDepartment(ctx context.Context, firmID, departmentID string) (store.Department, error)
}

// DocumentSearcher narrows a firm's documents by free text.
type DocumentSearcher interface {
	SearchDocumentIDs(ctx context.Context, firmID, text string) ([]string, error)
}

// DocumentIndexer keeps the search index in step with access level changes.
type DocumentIndexer interface {
	IndexDocument(doc store.Document)
}

// DownloadSigner issues time-limited links to stored document files.
type DownloadSigner interface {
	PresignedDownloadURL(ctx context.Context, key, filename string) (string, time.Time, error)
}

// Filters narrow the accessible document listing. Query is matched by the
// configured searcher and ignored when there is none.
type Filters struct {
	MatterID     string
	AccessLevel  string
	DocumentType string
	Query        string
}

// ShareInput grants a user or a department access to a document. Exactly one
// grantee must be set.
type ShareInput struct {
	DocumentID             string
	SharedWithUserID       string
	SharedWithDepartmentID string
	Permission             string
	ExpiresAt              *time.Time
}

// AccessStats counts the documents a user can open, per access level.
type AccessStats struct {
	Total   int           `json:"totalAccessibleDocuments"`
	ByLevel map[Level]int `json:"byAccessLevel"`
}

type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DocumentService serves the document permission operations on top of the
// Evaluator.
type DocumentService struct {
	store     documentStore
	evaluator *Evaluator
	searcher  DocumentSearcher
	indexer   DocumentIndexer
	signer    DownloadSigner
	log       zerolog.Logger
}

// NewDocumentService accepts nil searcher, indexer and signer.
func NewDocumentService(s documentStore, evaluator *Evaluator, searcher DocumentSearcher, indexer DocumentIndexer, signer DownloadSigner, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		store:     s,
		evaluator: evaluator,
		searcher:  searcher,
		indexer:   indexer,
		signer:    signer,
		log:       log,
	}
}

// AccessibleDocuments lists the firm documents the user may open, newest
// upload first. It applies the same decision as Explain to every candidate,
// without logging. Unknown, inactive or foreign users get an empty list.
func (s *DocumentService) AccessibleDocuments(ctx context.Context, userID, firmID string, filters Filters) ([]store.Document, error) {
	if filters.AccessLevel != "" {
		if _, err := ParseLevel(filters.AccessLevel); err != nil {
			return nil, err
		}
	}

	subject, err := s.store.GetAccessSubject(ctx, userID)
	if isMissing(err) {
		return []store.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if subject.FirmID != firmID || !subject.IsActive {
		return []store.Document{}, nil
	}

	filter := store.DocumentFilter{
		MatterID:     filters.MatterID,
		AccessLevel:  filters.AccessLevel,
		DocumentType: filters.DocumentType,
	}
	if query := strings.TrimSpace(filters.Query); query != "" && s.searcher != nil {
		ids, err := s.searcher.SearchDocumentIDs(ctx, firmID, query)
		if err != nil {
			return nil, fmt.Errorf("search documents: %w", err)
		}
		filter.IDs = append([]string{}, ids...)
	}

	docs, err := s.store.ListDocuments(ctx, firmID, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return docs, nil
	}

	matterIDs, err := s.store.MatterIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load matter assignments: %w", err)
	}
	onMatter := make(map[string]bool, len(matterIDs))
	for _, id := range matterIDs {
		onMatter[id] = true
	}

	docIDs := make([]string, len(docs))
	for i, doc := range docs {
		docIDs[i] = doc.ID
	}
	shares, err := s.store.ListSharesForSubject(ctx, userID, subject.DepartmentIDs, docIDs)
	if err != nil {
		return nil, fmt.Errorf("load shares: %w", err)
	}
	sharesByDoc := make(map[string][]store.DocumentShare)
	for _, share := range shares {
		sharesByDoc[share.DocumentID] = append(sharesByDoc[share.DocumentID], share)
	}

	now := s.evaluator.now()
	accessible := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		facts := Facts{
			Now:      now,
			Subject:  subject,
			Document: doc,
			Shares:   sharesByDoc[doc.ID],
		}
		if doc.MatterID != nil {
			facts.OnMatterTeam = onMatter[*doc.MatterID]
		}
		if Decide(facts).Allowed {
			accessible = append(accessible, doc)
		}
	}
	return accessible, nil
}

// CheckBulk answers view access for several documents at once. Missing
// documents are false. Nothing is logged.
func (s *DocumentService) CheckBulk(ctx context.Context, userID string, documentIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(documentIDs))
	if len(documentIDs) == 0 {
		return result, nil
	}

	subject, err := s.store.GetAccessSubject(ctx, userID)
	if isMissing(err) {
		for _, id := range documentIDs {
			result[id] = false
		}
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := s.evaluator.now()
	for _, id := range documentIDs {
		if _, seen := result[id]; seen {
			continue
		}
		doc, err := s.store.GetDocument(ctx, id)
		if isMissing(err) {
			result[id] = false
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", id, err)
		}
		decision, err := s.evaluator.decide(ctx, subject, doc, now)
		if err != nil {
			return nil, err
		}
		result[id] = decision.Allowed
	}
	return result, nil
}

// RecommendedAccessLevel returns the firm's default level for a document
// type, or matter_team when the type is not configured.
func (s *DocumentService) RecommendedAccessLevel(ctx context.Context, firmID, documentType string) (Level, error) {
	value, err := s.store.DefaultAccessLevel(ctx, firmID, documentType)
	if isMissing(err) {
		return LevelMatterTeam, nil
	}
	if err != nil {
		return "", fmt.Errorf("load document type: %w", err)
	}
	level, err := ParseLevel(value)
	if err != nil {
		s.log.Warn().Str("firm_id", firmID).Str("document_type", documentType).Str("level", value).Msg("document type has an unknown default access level")
		return LevelMatterTeam, nil
	}
	return level, nil
}

// UpdateAccessLevel changes a document's level within the firm.
func (s *DocumentService) UpdateAccessLevel(ctx context.Context, firmID, documentID, value string) (store.Document, error) {
	level, err := ParseLevel(value)
	if err != nil {
		return store.Document{}, err
	}
	doc, err := s.store.UpdateAccessLevel(ctx, firmID, documentID, string(level))
	if isMissing(err) {
		return store.Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return store.Document{}, err
	}
	if s.indexer != nil {
		s.indexer.IndexDocument(doc)
	}
	s.log.Info().Str("firm_id", firmID).Str("document_id", documentID).Str("access_level", string(level)).Msg("document access level updated")
	return doc, nil
}

// Share grants access to a document. The sharer must be able to access the
// document themselves; the attempt is logged with action share.
func (s *DocumentService) Share(ctx context.Context, firmID string, by AccessRequest, in ShareInput) (store.DocumentShare, error) {
	userID := strings.TrimSpace(in.SharedWithUserID)
	departmentID := strings.TrimSpace(in.SharedWithDepartmentID)
	if (userID == "") == (departmentID == "") {
		return store.DocumentShare{}, invalidShare("exactly one of sharedWithUserId and sharedWithDepartmentId is required")
	}
	permission, err := ParsePermission(in.Permission)
	if err != nil {
		return store.DocumentShare{}, err
	}
	now := s.evaluator.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return store.DocumentShare{}, invalidShare("expiry must be in the future")
	}

	if _, err := s.documentInFirm(ctx, firmID, in.DocumentID); err != nil {
		return store.DocumentShare{}, err
	}

	by.DocumentID = in.DocumentID
	by.Action = ActionShare
	_, decision, err := s.evaluator.evaluate(ctx, by)
	if err != nil {
		return store.DocumentShare{}, err
	}
	if !decision.Allowed {
		return store.DocumentShare{}, denied(decision.Reason)
	}

	share := store.DocumentShare{
		ID:         util.NewID(),
		DocumentID: in.DocumentID,
		SharedBy:   by.UserID,
		Permission: string(permission),
		ExpiresAt:  in.ExpiresAt,
	}
	if userID != "" {
		if _, err := s.store.GetActiveUser(ctx, firmID, userID); isMissing(err) {
			return store.DocumentShare{}, invalidShare("user %s is not an active user of the firm", userID)
		} else if err != nil {
			return store.DocumentShare{}, fmt.Errorf("check share grantee: %w", err)
		}
		share.SharedWithUserID = &userID
	} else {
		if _, err := s.store.GetDepartment(ctx, firmID, departmentID); isMissing(err) {
			return store.DocumentShare{}, invalidShare("department %s does not exist", departmentID)
		} else if err != nil {
			return store.DocumentShare{}, fmt.Errorf("check share grantee: %w", err)
		}
		share.SharedWithDepartmentID = &departmentID
	}

	created, err := s.store.CreateShare(ctx, share)
	if errors.Is(err, store.ErrInvalidReference) {
		return store.DocumentShare{}, invalidShare("unknown grantee")
	}
	if err != nil {
		return store.DocumentShare{}, err
	}
	s.log.Info().
		Str("document_id", created.DocumentID).
		Str("share_id", created.ID).
		Str("shared_by", by.UserID).
		Str("permission", created.Permission).
		Msg("document shared")
	return created, nil
}

func (s *DocumentService) RevokeShare(ctx context.Context, firmID, documentID, shareID string) error {
	if _, err := s.documentInFirm(ctx, firmID, documentID); err != nil {
		return err
	}
	err := s.store.DeleteShare(ctx, documentID, shareID)
	if isMissing(err) {
		return ErrShareNotFound
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("document_id", documentID).Str("share_id", shareID).Msg("document share revoked")
	return nil
}

// Shares lists the document's unexpired shares, newest first.
func (s *DocumentService) Shares(ctx context.Context, firmID, documentID string) ([]store.DocumentShare, error) {
	if _, err := s.documentInFirm(ctx, firmID, documentID); err != nil {
		return nil, err
	}
	return s.store.ListActiveShares(ctx, documentID, s.evaluator.now())
}

func (s *DocumentService) UserAccessStats(ctx context.Context, userID, firmID string) (AccessStats, error) {
	docs, err := s.AccessibleDocuments(ctx, userID, firmID, Filters{})
	if err != nil {
		return AccessStats{}, err
	}
	stats := AccessStats{Total: len(docs), ByLevel: make(map[Level]int, len(Levels))}
	for _, level := range Levels {
		stats.ByLevel[level] = 0
	}
	for _, doc := range docs {
		stats.ByLevel[Level(doc.AccessLevel)]++
	}
	return stats, nil
}

// Download checks download access and returns a presigned link on grant. A
// denial is reported both in the Decision and as ErrAccessDenied.
func (s *DocumentService) Download(ctx context.Context, firmID string, req AccessRequest) (DownloadLink, Decision, error) {
	if _, err := s.documentInFirm(ctx, firmID, req.DocumentID); err != nil {
		return DownloadLink{}, Decision{}, err
	}
	req.Action = ActionDownload
	doc, decision, err := s.evaluator.evaluate(ctx, req)
	if err != nil {
		return DownloadLink{}, Decision{}, err
	}
	if !decision.Allowed {
		return DownloadLink{}, decision, denied(decision.Reason)
	}
	if s.signer == nil {
		return DownloadLink{}, decision, ErrDownloadUnavailable
	}
	if doc.FileKey == "" {
		return DownloadLink{}, decision, fmt.Errorf("%w: no stored file", ErrDocumentNotFound)
	}
	url, expires, err := s.signer.PresignedDownloadURL(ctx, doc.FileKey, doc.Title)
	if err != nil {
		return DownloadLink{}, decision, fmt.Errorf("sign download: %w", err)
	}
	return DownloadLink{URL: url, ExpiresAt: expires}, decision, nil
}

// documentInFirm hides documents of other firms behind ErrDocumentNotFound.
func (s *DocumentService) documentInFirm(ctx context.Context, firmID, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if isMissing(err) {
		return store.Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("load document: %w", err)
	}
	if doc.FirmID != firmID {
		return store.Document{}, ErrDocumentNotFound
	}
	return doc, nil
}
