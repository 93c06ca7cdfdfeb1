package routing

import (
	"context"

	"legalnexus/api/internal/store"
)

type rotationStore interface {
	AdvanceRotation(ctx context.Context, departmentID string, pick store.RotationPicker) (*store.RotationCandidate, error)
}

// RoundRobin hands out department members in rotation. The cursor lives in
// the database; see store.AdvanceRotation for the locking.
type RoundRobin struct {
	store rotationStore
}

func NewRoundRobin(s rotationStore) *RoundRobin {
	return &RoundRobin{store: s}
}

// Next returns the next eligible member of the department, or nil when the
// department has none.
func (r *RoundRobin) Next(ctx context.Context, departmentID string) (*store.RotationCandidate, error) {
	return r.store.AdvanceRotation(ctx, departmentID, NextInRotation)
}

// NextInRotation picks the first eligible user ordered strictly after last,
// wrapping to the start. eligible must be sorted by (CreatedAt, UserID). A
// last user that is no longer eligible is skipped past by its position in
// that order.
func NextInRotation(eligible []store.RotationCandidate, last *store.RotationCandidate) *store.RotationCandidate {
	if len(eligible) == 0 {
		return nil
	}
	if last != nil {
		for i := range eligible {
			if rotatesAfter(eligible[i], *last) {
				next := eligible[i]
				return &next
			}
		}
	}
	next := eligible[0]
	return &next
}

func rotatesAfter(a, b store.RotationCandidate) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.UserID > b.UserID
}
