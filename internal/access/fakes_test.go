package access

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sort"
	"time"

	"legalnexus/api/internal/store"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type memStore struct {
	documents   map[string]store.Document
	subjects    map[string]store.AccessSubject
	matterTeams map[string][]string // matter -> users
	shares      []store.DocumentShare
	departments map[string]store.Department
	docTypes    map[string]string
	logs        []store.AccessLog
	touched     map[string]time.Time

	insertLogErr error
	loadErr      error
}

func newMemStore() *memStore {
	return &memStore{
		documents:   map[string]store.Document{},
		subjects:    map[string]store.AccessSubject{},
		matterTeams: map[string][]string{},
		departments: map[string]store.Department{},
		docTypes:    map[string]string{},
		touched:     map[string]time.Time{},
	}
}

func (m *memStore) addUser(id, firmID string, level int, departments ...string) {
	m.subjects[id] = store.AccessSubject{
		UserID:        id,
		FirmID:        firmID,
		IsActive:      true,
		RoleLevel:     level,
		DepartmentIDs: departments,
	}
}

func (m *memStore) addDocument(id, firmID, level string, matterID string, uploaded time.Time) {
	doc := store.Document{ID: id, FirmID: firmID, Title: "Doc " + id, AccessLevel: level, FileKey: "files/" + id, UploadDate: uploaded}
	if matterID != "" {
		doc.MatterID = &matterID
	}
	m.documents[id] = doc
}

func (m *memStore) shareWithUser(documentID, userID string, expires *time.Time) {
	m.shares = append(m.shares, store.DocumentShare{
		ID: "s-" + documentID + "-" + userID, DocumentID: documentID, SharedWithUserID: &userID,
		Permission: "view", ExpiresAt: expires, CreatedAt: testNow.Add(-time.Hour),
	})
}

func (m *memStore) shareWithDepartment(documentID, departmentID string, expires *time.Time) {
	m.shares = append(m.shares, store.DocumentShare{
		ID: "s-" + documentID + "-" + departmentID, DocumentID: documentID, SharedWithDepartmentID: &departmentID,
		Permission: "view", ExpiresAt: expires, CreatedAt: testNow.Add(-time.Hour),
	})
}

func (m *memStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	if m.loadErr != nil {
		return store.Document{}, m.loadErr
	}
	doc, ok := m.documents[id]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return doc, nil
}

func (m *memStore) GetAccessSubject(_ context.Context, userID string) (store.AccessSubject, error) {
	subject, ok := m.subjects[userID]
	if !ok {
		return store.AccessSubject{}, sql.ErrNoRows
	}
	return subject, nil
}

func (m *memStore) IsOnMatterTeam(_ context.Context, userID, matterID string) (bool, error) {
	return slices.Contains(m.matterTeams[matterID], userID), nil
}

func (m *memStore) MatterIDsForUser(_ context.Context, userID string) ([]string, error) {
	out := []string{}
	for matter, users := range m.matterTeams {
		if slices.Contains(users, userID) {
			out = append(out, matter)
		}
	}
	return out, nil
}

func (m *memStore) ListSharesForSubject(_ context.Context, userID string, departmentIDs, documentIDs []string) ([]store.DocumentShare, error) {
	out := []store.DocumentShare{}
	for _, share := range m.shares {
		if !slices.Contains(documentIDs, share.DocumentID) {
			continue
		}
		if (share.SharedWithUserID != nil && *share.SharedWithUserID == userID) ||
			(share.SharedWithDepartmentID != nil && slices.Contains(departmentIDs, *share.SharedWithDepartmentID)) {
			out = append(out, share)
		}
	}
	return out, nil
}

func (m *memStore) InsertAccessLog(_ context.Context, entry store.AccessLog) error {
	if m.insertLogErr != nil {
		return m.insertLogErr
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) TouchLastAccessed(_ context.Context, documentID string, at time.Time) error {
	m.touched[documentID] = at
	return nil
}

func (m *memStore) ListDocuments(_ context.Context, firmID string, filter store.DocumentFilter) ([]store.Document, error) {
	out := []store.Document{}
	for _, doc := range m.documents {
		if doc.FirmID != firmID {
			continue
		}
		if filter.MatterID != "" && (doc.MatterID == nil || *doc.MatterID != filter.MatterID) {
			continue
		}
		if filter.AccessLevel != "" && doc.AccessLevel != filter.AccessLevel {
			continue
		}
		if filter.DocumentType != "" && doc.DocumentType != filter.DocumentType {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, doc.ID) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out, nil
}

func (m *memStore) UpdateAccessLevel(_ context.Context, firmID, documentID, level string) (store.Document, error) {
	doc, ok := m.documents[documentID]
	if !ok || doc.FirmID != firmID {
		return store.Document{}, sql.ErrNoRows
	}
	doc.AccessLevel = level
	m.documents[documentID] = doc
	return doc, nil
}

func (m *memStore) DefaultAccessLevel(_ context.Context, firmID, documentType string) (string, error) {
	level, ok := m.docTypes[firmID+"/"+documentType]
	if !ok {
		return "", sql.ErrNoRows
	}
	return level, nil
}

func (m *memStore) ListActiveShares(_ context.Context, documentID string, now time.Time) ([]store.DocumentShare, error) {
	out := []store.DocumentShare{}
	for _, share := range m.shares {
		if share.DocumentID == documentID && (share.ExpiresAt == nil || share.ExpiresAt.After(now)) {
			out = append(out, share)
		}
	}
	return out, nil
}

func (m *memStore) CreateShare(_ context.Context, share store.DocumentShare) (store.DocumentShare, error) {
	share.CreatedAt = testNow
	m.shares = append(m.shares, share)
	return share, nil
}

func (m *memStore) DeleteShare(_ context.Context, documentID, shareID string) error {
	for i, share := range m.shares {
		if share.ID == shareID && share.DocumentID == documentID {
			m.shares = append(m.shares[:i], m.shares[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) GetActiveUser(_ context.Context, firmID, userID string) (store.User, error) {
	subject, ok := m.subjects[userID]
	if !ok || subject.FirmID != firmID || !subject.IsActive {
		return store.User{}, sql.ErrNoRows
	}
	return store.User{ID: userID, FirmID: firmID, IsActive: true}, nil
}

func (m *memStore) GetDepartment(_ context.Context, firmID, departmentID string) (store.Department, error) {
	dept, ok := m.departments[departmentID]
	if !ok || dept.FirmID != firmID {
		return store.Department{}, sql.ErrNoRows
	}
	return dept, nil
}

func (m *memStore) ListDocumentAccessLogs(_ context.Context, documentID string, limit int) ([]store.AccessLog, error) {
	out := []store.AccessLog{}
	for _, entry := range m.logs {
		if entry.DocumentID == documentID && len(out) < limit {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memStore) ListUserAccessLogs(context.Context, string, string, int) ([]store.AccessLog, error) {
	return m.logs, nil
}

func (m *memStore) ListRecentDenials(context.Context, string, int) ([]store.AccessLog, error) {
	return nil, errors.New("not used")
}

func (m *memStore) AccessStats(context.Context, string, store.AccessLogFilter) (store.AccessStats, error) {
	return store.AccessStats{TotalAccesses: int64(len(m.logs))}, nil
}

func (m *memStore) MostAccessedDocuments(context.Context, string, time.Time, int) ([]store.DocumentAccessCount, error) {
	return nil, nil
}

func (m *memStore) UserActivity(_ context.Context, _, userID string, since time.Time) (store.UserActivitySummary, error) {
	return store.UserActivitySummary{UserID: userID, Since: since}, nil
}

func (m *memStore) DeleteAccessLogsBefore(_ context.Context, firmID string, cutoff time.Time) (int64, error) {
	kept := m.logs[:0]
	var deleted int64
	for _, entry := range m.logs {
		if entry.FirmID == firmID && entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	m.logs = kept
	return deleted, nil
}

func timePtr(t time.Time) *time.Time { return &t }
