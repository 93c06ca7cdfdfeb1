package store

import (
	"strings"
	"time"
)

type User struct {
	ID        string
	FirmID    string
	RoleID    *string
	FirstName string
	LastName  string
	Email     string
	IsActive  bool
	CreatedAt time.Time
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Department struct {
	ID        string
	FirmID    string
	Name      string
	Code      string
	CreatedAt time.Time
}

// Membership is a user resolved together with one of their departments.
type Membership struct {
	UserID         string
	UserName       string
	DepartmentID   string
	DepartmentName string
	IsDirector     bool
}

// MembershipQuery selects one membership of a user. Preferred department and
// director memberships sort first; ties fall back to join order.
type MembershipQuery struct {
	FirmID             string
	UserID             string
	PreferDepartmentID string
	PreferDirector     bool
}

type Client struct {
	ID                string
	FirmID            string
	Name              string
	ClientType        string
	PrimaryDirectorID *string
	DepartmentID      *string
	CreatedAt         time.Time
}

// RuleConditions is the JSONB payload of a routing rule. Nil fields impose no
// constraint.
type RuleConditions struct {
	ClientType     *string  `json:"client_type,omitempty"`
	MatterType     *string  `json:"matter_type,omitempty"`
	ValueMin       *float64 `json:"value_min,omitempty"`
	ValueMax       *float64 `json:"value_max,omitempty"`
	DepartmentCode *string  `json:"department_code,omitempty"`
}

type RoutingRule struct {
	ID               string
	FirmID           string
	Name             string
	DepartmentID     string
	DepartmentName   string
	Priority         int
	Conditions       RuleConditions
	AssignToUserID   *string
	AssignedUserName string
	RoundRobin       bool
	Active           bool
	CreatedBy        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RulePatch lists the mutable rule fields. A nil field is left untouched; an
// empty AssignToUserID clears the fixed assignee.
type RulePatch struct {
	Name           *string
	Priority       *int
	Conditions     *RuleConditions
	AssignToUserID *string
	RoundRobin     *bool
	Active         *bool
}

func (p RulePatch) Empty() bool {
	return p.Name == nil && p.Priority == nil && p.Conditions == nil &&
		p.AssignToUserID == nil && p.RoundRobin == nil && p.Active == nil
}

type RoutingStats struct {
	TotalRules              int
	ActiveRules             int
	RoundRobinRules         int
	DepartmentsWithRotation int
}

// RotationCandidate is a department member in rotation order. The department
// fields are empty for the previously assigned user.
type RotationCandidate struct {
	UserID         string
	UserName       string
	CreatedAt      time.Time
	DepartmentID   string
	DepartmentName string
}

// RotationPicker chooses the next user given the eligible members in stable
// order and the previously assigned user (nil when none or deleted).
type RotationPicker func(eligible []RotationCandidate, last *RotationCandidate) *RotationCandidate

type RoundRobinState struct {
	DepartmentID  string
	LastUserID    *string
	RotationCount int64
	UpdatedAt     time.Time
}

// AccessSubject is what the access policy needs to know about a user.
type AccessSubject struct {
	UserID        string
	FirmID        string
	IsActive      bool
	RoleLevel     int
	DepartmentIDs []string
}

type Document struct {
	ID           string
	FirmID       string
	MatterID     *string
	Title        string
	DocumentType string
	AccessLevel  string
	FileKey      string
	FileSize     int64
	MimeType     string
	Tags         []string
	Version      int
	UploadedBy   *string
	UploadDate   time.Time
	LastAccessed *time.Time
}

// DocumentFilter narrows a firm's documents. IDs, when non-nil, restricts the
// result to those documents (an empty non-nil slice matches nothing).
type DocumentFilter struct {
	MatterID     string
	AccessLevel  string
	DocumentType string
	IDs          []string
}

type DocumentShare struct {
	ID                       string
	DocumentID               string
	SharedBy                 string
	SharedWithUserID         *string
	SharedWithDepartmentID   *string
	Permission               string
	ExpiresAt                *time.Time
	CreatedAt                time.Time
	SharedByName             string
	SharedWithUserName       string
	SharedWithDepartmentName string
}

type AccessLog struct {
	ID            string
	FirmID        string
	DocumentID    string
	UserID        string
	Action        string
	Granted       bool
	DenialReason  *string
	IPAddress     *string
	UserAgent     *string
	CreatedAt     time.Time
	DocumentTitle string
	UserName      string
}

type AccessLogFilter struct {
	UserID     string
	DocumentID string
	From       *time.Time
	To         *time.Time
}

type AccessStats struct {
	TotalAccesses   int64
	Granted         int64
	Denied          int64
	UniqueUsers     int64
	UniqueDocuments int64
	ByAction        map[string]int64
}

type DocumentAccessCount struct {
	DocumentID   string
	Title        string
	AccessCount  int64
	UniqueUsers  int64
	LastAccessed time.Time
}

type UserActivitySummary struct {
	UserID          string
	Since           time.Time
	TotalAccesses   int64
	Granted         int64
	Denied          int64
	UniqueDocuments int64
	ByAction        map[string]int64
}
