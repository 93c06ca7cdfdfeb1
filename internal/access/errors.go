package access

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrShareNotFound      = errors.New("share not found")
	ErrInvalidShare       = errors.New("invalid share")
	ErrInvalidAccessLevel = errors.New("invalid access level")
	ErrInvalidAction      = errors.New("invalid access action")
	// ErrAccessDenied is returned by operations that require access to a
	// document, such as sharing or downloading it. Explain and CanAccess
	// report denials in the Decision instead.
	ErrAccessDenied        = errors.New("access denied")
	ErrDownloadUnavailable = errors.New("document storage is not configured")
)

func invalidShare(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidShare, fmt.Sprintf(format, args...))
}

func denied(reason string) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
}
