package access

import (
	"slices"
	"time"

	"legalnexus/api/internal/rbac"
	"legalnexus/api/internal/store"
)

// Facts is everything a decision depends on. Decide never reads anything
// else, so the same facts always give the same decision.
type Facts struct {
	Now          time.Time
	Subject      store.AccessSubject
	Document     store.Document
	OnMatterTeam bool
	// Shares may hold shares of other documents or grantees; only those
	// granted on Document to the subject or one of its departments count.
	Shares []store.DocumentShare
}

// Decision is the outcome of an access check. Reason is set on denial, Basis
// on grant.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Basis   string `json:"basis,omitempty"`
}

func allow(basis string) Decision {
	return Decision{Allowed: true, Basis: basis}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Decide applies the access table for the document's level. The levels are
// evaluated on their own terms, not as a ladder: a partner passes
// partner_only but not restricted unless also on the matter team.
func Decide(f Facts) Decision {
	if f.Subject.FirmID == "" || f.Subject.FirmID != f.Document.FirmID {
		return deny(ReasonNotInFirm)
	}
	if !f.Subject.IsActive {
		return deny(ReasonUserInactive)
	}

	partner := rbac.Normalize(f.Subject.RoleLevel).IsPartner()
	shared, onlyExpired := shareState(f)

	switch Level(f.Document.AccessLevel) {
	case LevelPublic:
		return allow(BasisPublic)
	case LevelMatterTeam:
		switch {
		case f.OnMatterTeam:
			return allow(BasisMatterTeam)
		case shared:
			return allow(BasisShare)
		case partner:
			return allow(BasisPartner)
		}
		return deny(denialReason(ReasonNotOnMatterTeam, onlyExpired))
	case LevelPartnerOnly:
		switch {
		case partner:
			return allow(BasisPartner)
		case shared:
			return allow(BasisShare)
		}
		return deny(denialReason(ReasonInsufficientLevel, onlyExpired))
	case LevelRestricted:
		switch {
		case shared:
			return allow(BasisShare)
		case f.OnMatterTeam && partner:
			return allow(BasisElevatedMatterTeam)
		}
		return deny(denialReason(ReasonInsufficientLevel, onlyExpired))
	default:
		return deny(ReasonInsufficientLevel)
	}
}

func denialReason(reason string, onlyExpired bool) string {
	if onlyExpired {
		return ReasonShareExpired
	}
	return reason
}

// shareState reports whether an unexpired share applies, and whether
// applicable shares exist but have all expired.
func shareState(f Facts) (active, onlyExpired bool) {
	expired := false
	for _, share := range f.Shares {
		if !appliesTo(share, f.Document.ID, f.Subject) {
			continue
		}
		if share.ExpiresAt != nil && !share.ExpiresAt.After(f.Now) {
			expired = true
			continue
		}
		return true, false
	}
	return false, expired
}

func appliesTo(share store.DocumentShare, documentID string, subject store.AccessSubject) bool {
	if share.DocumentID != documentID {
		return false
	}
	if share.SharedWithUserID != nil {
		return *share.SharedWithUserID == subject.UserID
	}
	if share.SharedWithDepartmentID != nil {
		return slices.Contains(subject.DepartmentIDs, *share.SharedWithDepartmentID)
	}
	return false
}
