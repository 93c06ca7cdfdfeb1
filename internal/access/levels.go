package access

import "fmt"

// Level is a document's access level.
type Level string

const (
	LevelPublic      Level = "public"
	LevelMatterTeam  Level = "matter_team"
	LevelPartnerOnly Level = "partner_only"
	LevelRestricted  Level = "restricted"
)

// Levels lists every access level from least to most guarded.
var Levels = []Level{LevelPublic, LevelMatterTeam, LevelPartnerOnly, LevelRestricted}

func ParseLevel(value string) (Level, error) {
	for _, level := range Levels {
		if string(level) == value {
			return level, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccessLevel, value)
}

// Action is what a user attempts on a document. Every action is recorded in
// the access log.
type Action string

const (
	ActionView     Action = "view"
	ActionDownload Action = "download"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionShare    Action = "share"
)

// ParseAction defaults an empty value to view.
func ParseAction(value string) (Action, error) {
	switch Action(value) {
	case "":
		return ActionView, nil
	case ActionView, ActionDownload, ActionEdit, ActionDelete, ActionShare:
		return Action(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, value)
	}
}

// Permission is the grant carried by a share. Any permission lets the grantee
// pass the access check.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionEdit   Permission = "edit"
	PermissionManage Permission = "manage"
)

func ParsePermission(value string) (Permission, error) {
	switch Permission(value) {
	case PermissionView, PermissionEdit, PermissionManage:
		return Permission(value), nil
	default:
		return "", invalidShare("permission must be view, edit or manage")
	}
}

// Denial reasons.
const (
	ReasonNotInFirm         = "not_in_firm"
	ReasonUserInactive      = "user_inactive"
	ReasonUserNotFound      = "user_not_found"
	ReasonDocumentNotFound  = "document_not_found"
	ReasonInsufficientLevel = "insufficient_access_level"
	ReasonNotOnMatterTeam   = "not_on_matter_team"
	ReasonShareExpired      = "share_expired"
)

// Grant bases.
const (
	BasisPublic             = "public"
	BasisShare              = "share"
	BasisMatterTeam         = "matter_team"
	BasisPartner            = "partner"
	BasisElevatedMatterTeam = "elevated_matter_team"
)
