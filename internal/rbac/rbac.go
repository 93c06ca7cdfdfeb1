package rbac

// Level is a firm role level. Lower numbers carry more privilege: a
// partner (1) outranks an associate (2), and anything unknown sits at the
// bottom.
type Level int

type Action string

const (
	LevelAdmin     Level = 0
	LevelPartner   Level = 1
	LevelAssociate Level = 2
	LevelParalegal Level = 3
	LevelStaff     Level = 4
	LevelUnknown   Level = 999
)

const (
	ActionAssign            Action = "assign"
	ActionViewRules         Action = "view_rules"
	ActionManageRules       Action = "manage_rules"
	ActionShareDocument     Action = "share_document"
	ActionChangeAccessLevel Action = "change_access_level"
	ActionViewAudit         Action = "view_audit"
	ActionCleanupAudit      Action = "cleanup_audit"
)

// AtLeast reports whether l is as privileged as threshold or more.
func (l Level) AtLeast(threshold Level) bool {
	return l <= threshold
}

func (l Level) IsPartner() bool {
	return l.AtLeast(LevelPartner)
}

func (l Level) String() string {
	switch l {
	case LevelAdmin:
		return "admin"
	case LevelPartner:
		return "partner"
	case LevelAssociate:
		return "associate"
	case LevelParalegal:
		return "paralegal"
	case LevelStaff:
		return "staff"
	default:
		return "unknown"
	}
}

func Can(level Level, action Action) bool {
	level = Normalize(int(level))
	switch action {
	case ActionAssign, ActionViewRules, ActionShareDocument:
		return level.AtLeast(LevelStaff)
	case ActionManageRules, ActionChangeAccessLevel, ActionViewAudit, ActionCleanupAudit:
		return level.AtLeast(LevelPartner)
	default:
		return false
	}
}

// Normalize maps negative or out-of-range values to LevelUnknown. Levels
// between the named constants are kept, since firms define their own roles.
func Normalize(level int) Level {
	if level < int(LevelAdmin) || level > int(LevelUnknown) {
		return LevelUnknown
	}
	return Level(level)
}
