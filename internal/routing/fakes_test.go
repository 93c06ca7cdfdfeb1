package routing

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"legalnexus/api/internal/store"
)

type fakeStore struct {
	getClientFn          func(context.Context, string, string) (store.Client, error)
	getActiveUserFn      func(context.Context, string, string) (store.User, error)
	findMembershipFn     func(context.Context, store.MembershipQuery) (store.Membership, error)
	departmentDirectorFn func(context.Context, string, string) (store.Membership, error)
}

func (f *fakeStore) GetClient(ctx context.Context, firmID, clientID string) (store.Client, error) {
	if f.getClientFn != nil {
		return f.getClientFn(ctx, firmID, clientID)
	}
	return store.Client{}, sql.ErrNoRows
}

func (f *fakeStore) GetActiveUser(ctx context.Context, firmID, userID string) (store.User, error) {
	if f.getActiveUserFn != nil {
		return f.getActiveUserFn(ctx, firmID, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) FindMembership(ctx context.Context, q store.MembershipQuery) (store.Membership, error) {
	if f.findMembershipFn != nil {
		return f.findMembershipFn(ctx, q)
	}
	return store.Membership{}, sql.ErrNoRows
}

func (f *fakeStore) DepartmentDirector(ctx context.Context, firmID, departmentID string) (store.Membership, error) {
	if f.departmentDirectorFn != nil {
		return f.departmentDirectorFn(ctx, firmID, departmentID)
	}
	return store.Membership{}, sql.ErrNoRows
}

type staticRules []store.RoutingRule

func (s staticRules) ActiveRules(context.Context, string) ([]store.RoutingRule, error) {
	return s, nil
}

// memoryRotation keeps round-robin state in memory with the same selection
// function the database path uses.
type memoryRotation struct {
	members map[string][]store.RotationCandidate // department -> members
	active  map[string]bool                      // user -> active
	last    map[string]*store.RotationCandidate  // department -> last assigned
	calls   int
}

func newMemoryRotation() *memoryRotation {
	return &memoryRotation{
		members: map[string][]store.RotationCandidate{},
		active:  map[string]bool{},
		last:    map[string]*store.RotationCandidate{},
	}
}

func (m *memoryRotation) addMember(departmentID, userID string, joined time.Time) {
	m.members[departmentID] = append(m.members[departmentID], store.RotationCandidate{
		UserID:         userID,
		UserName:       "User " + userID,
		CreatedAt:      joined,
		DepartmentID:   departmentID,
		DepartmentName: "Dept " + departmentID,
	})
	m.active[userID] = true
}

func (m *memoryRotation) AdvanceRotation(_ context.Context, departmentID string, pick store.RotationPicker) (*store.RotationCandidate, error) {
	m.calls++
	eligible := make([]store.RotationCandidate, 0)
	for _, c := range m.members[departmentID] {
		if m.active[c.UserID] {
			eligible = append(eligible, c)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].UserID < eligible[j].UserID
	})
	next := pick(eligible, m.last[departmentID])
	if next != nil {
		m.last[departmentID] = next
	}
	return next, nil
}

func ptr[T any](v T) *T {
	return &v
}

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
