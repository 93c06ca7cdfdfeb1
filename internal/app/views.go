package app

import (
	"time"

	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/store"
)

type assignmentView struct {
	UserID         string  `json:"userId"`
	UserName       string  `json:"userName"`
	DepartmentID   string  `json:"departmentId,omitempty"`
	DepartmentName string  `json:"departmentName,omitempty"`
	Method         string  `json:"method"`
	RuleID         *string `json:"ruleId"`
}

func toAssignmentView(result routing.Result) assignmentView {
	view := assignmentView{
		UserID:         result.UserID,
		UserName:       result.UserName,
		DepartmentID:   result.DepartmentID,
		DepartmentName: result.DepartmentName,
		Method:         string(result.Method),
	}
	if result.RuleID != "" {
		ruleID := result.RuleID
		view.RuleID = &ruleID
	}
	return view
}

type ruleView struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	DepartmentID     string               `json:"departmentId"`
	DepartmentName   string               `json:"departmentName"`
	Priority         int                  `json:"priority"`
	Conditions       store.RuleConditions `json:"conditions"`
	AssignToUserID   *string              `json:"assignToUserId"`
	AssignedUserName string               `json:"assignedUserName,omitempty"`
	RoundRobin       bool                 `json:"roundRobin"`
	Active           bool                 `json:"active"`
	CreatedBy        *string              `json:"createdBy"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

func toRuleView(rule store.RoutingRule) ruleView {
	return ruleView{
		ID:               rule.ID,
		Name:             rule.Name,
		DepartmentID:     rule.DepartmentID,
		DepartmentName:   rule.DepartmentName,
		Priority:         rule.Priority,
		Conditions:       rule.Conditions,
		AssignToUserID:   rule.AssignToUserID,
		AssignedUserName: rule.AssignedUserName,
		RoundRobin:       rule.RoundRobin,
		Active:           rule.Active,
		CreatedBy:        rule.CreatedBy,
		CreatedAt:        rule.CreatedAt,
		UpdatedAt:        rule.UpdatedAt,
	}
}

type documentView struct {
	ID           string     `json:"id"`
	MatterID     *string    `json:"matterId"`
	Title        string     `json:"title"`
	DocumentType string     `json:"documentType"`
	AccessLevel  string     `json:"accessLevel"`
	FileSize     int64      `json:"fileSize"`
	MimeType     string     `json:"mimeType"`
	Tags         []string   `json:"tags"`
	Version      int        `json:"version"`
	UploadedBy   *string    `json:"uploadedBy"`
	UploadDate   time.Time  `json:"uploadDate"`
	LastAccessed *time.Time `json:"lastAccessed"`
}

func toDocumentView(doc store.Document) documentView {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentView{
		ID:           doc.ID,
		MatterID:     doc.MatterID,
		Title:        doc.Title,
		DocumentType: doc.DocumentType,
		AccessLevel:  doc.AccessLevel,
		FileSize:     doc.FileSize,
		MimeType:     doc.MimeType,
		Tags:         tags,
		Version:      doc.Version,
		UploadedBy:   doc.UploadedBy,
		UploadDate:   doc.UploadDate,
		LastAccessed: doc.LastAccessed,
	}
}

type shareView struct {
	ID                       string     `json:"id"`
	DocumentID               string     `json:"documentId"`
	SharedBy                 string     `json:"sharedBy"`
	SharedByName             string     `json:"sharedByName,omitempty"`
	SharedWithUserID         *string    `json:"sharedWithUserId"`
	SharedWithUserName       string     `json:"sharedWithUserName,omitempty"`
	SharedWithDepartmentID   *string    `json:"sharedWithDepartmentId"`
	SharedWithDepartmentName string     `json:"sharedWithDepartmentName,omitempty"`
	Permission               string     `json:"permission"`
	ExpiresAt                *time.Time `json:"expiresAt"`
	CreatedAt                time.Time  `json:"createdAt"`
}

func toShareView(share store.DocumentShare) shareView {
	return shareView{
		ID:                       share.ID,
		DocumentID:               share.DocumentID,
		SharedBy:                 share.SharedBy,
		SharedByName:             share.SharedByName,
		SharedWithUserID:         share.SharedWithUserID,
		SharedWithUserName:       share.SharedWithUserName,
		SharedWithDepartmentID:   share.SharedWithDepartmentID,
		SharedWithDepartmentName: share.SharedWithDepartmentName,
		Permission:               share.Permission,
		ExpiresAt:                share.ExpiresAt,
		CreatedAt:                share.CreatedAt,
	}
}

type accessLogView struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	DocumentTitle string    `json:"documentTitle,omitempty"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName,omitempty"`
	Action        string    `json:"action"`
	Granted       bool      `json:"granted"`
	DenialReason  *string   `json:"denialReason"`
	IPAddress     *string   `json:"ipAddress"`
	UserAgent     *string   `json:"userAgent"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toAccessLogViews(entries []store.AccessLog) []accessLogView {
	views := make([]accessLogView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, accessLogView{
			ID:            entry.ID,
			DocumentID:    entry.DocumentID,
			DocumentTitle: entry.DocumentTitle,
			UserID:        entry.UserID,
			UserName:      entry.UserName,
			Action:        entry.Action,
			Granted:       entry.Granted,
			DenialReason:  entry.DenialReason,
			IPAddress:     entry.IPAddress,
			UserAgent:     entry.UserAgent,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return views
}

type accessStatsView struct {
	TotalAccesses   int64            `json:"totalAccesses"`
	Granted         int64            `json:"granted"`
	Denied          int64            `json:"denied"`
	UniqueUsers     int64            `json:"uniqueUsers"`
	UniqueDocuments int64            `json:"uniqueDocuments"`
	ByAction        map[string]int64 `json:"byAction"`
}

type accessCountView struct {
	DocumentID   string    `json:"documentId"`
	Title        string    `json:"title"`
	AccessCount  int64     `json:"accessCount"`
	UniqueUsers  int64     `json:"uniqueUsers"`
	LastAccessed time.Time `json:"lastAccessed"`
}

type activityView struct {
	UserID          string           `json:"userId"`
	Since           time.Time        `json:"since"`
	TotalAccesses   int64            `json:"totalAccesses"`
	Granted         int64            `json:"granted"`
	Denied          int64            `json:"denied"`
	UniqueDocuments int64            `json:"uniqueDocuments"`
	ByAction        map[string]int64 `json:"byAction"`
}
