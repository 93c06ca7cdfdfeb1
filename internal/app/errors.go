package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"legalnexus/api/internal/access"
	"legalnexus/api/internal/auth"
	"legalnexus/api/internal/routing"
	"legalnexus/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError turns service errors into the JSON error envelope. Validation
// errors carry their wrapped message; anything unrecognised is a 500 with a
// generic message.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, routing.ErrNoEligibleAssignee):
		return http.StatusUnprocessableEntity, "NO_ELIGIBLE_ASSIGNEE", "No eligible assignee", nil
	case errors.Is(err, routing.ErrInvalidRuleDefinition):
		return http.StatusBadRequest, "INVALID_RULE_DEFINITION", err.Error(), nil
	case errors.Is(err, routing.ErrRuleNotFound):
		return http.StatusNotFound, "RULE_NOT_FOUND", "Routing rule not found", nil
	case errors.Is(err, access.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found", nil
	case errors.Is(err, access.ErrShareNotFound):
		return http.StatusNotFound, "SHARE_NOT_FOUND", "Share not found", nil
	case errors.Is(err, access.ErrInvalidShare):
		return http.StatusBadRequest, "INVALID_SHARE", err.Error(), nil
	case errors.Is(err, access.ErrInvalidAccessLevel):
		return http.StatusBadRequest, "INVALID_ACCESS_LEVEL", err.Error(), nil
	case errors.Is(err, access.ErrInvalidAction):
		return http.StatusBadRequest, "INVALID_ACTION", err.Error(), nil
	case errors.Is(err, access.ErrAccessDenied):
		return http.StatusForbidden, "ACCESS_DENIED", "Access denied", nil
	case errors.Is(err, access.ErrDownloadUnavailable):
		return http.StatusServiceUnavailable, "DOWNLOAD_UNAVAILABLE", "Document storage is not configured", nil
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Conflict", nil
	case errors.Is(err, store.ErrInvalidReference):
		return http.StatusBadRequest, "INVALID_REFERENCE", "Unknown referenced record", nil
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", nil
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
