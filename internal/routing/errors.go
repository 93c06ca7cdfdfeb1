package routing

import (
	"database/sql"
	"errors"
	"fmt"

	"legalnexus/api/internal/store"
)

var (
	// ErrNoEligibleAssignee means no manual, rule or fallback path produced a
	// user. It is a business outcome, not a fault.
	ErrNoEligibleAssignee = errors.New("no eligible assignee")
	// ErrInvalidRuleDefinition rejects a rule before it is persisted.
	ErrInvalidRuleDefinition = errors.New("invalid rule definition")
	ErrRuleNotFound          = errors.New("routing rule not found")
)

func invalidRule(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRuleDefinition, fmt.Sprintf(format, args...))
}

// isMissing treats malformed ids like absent rows.
func isMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrInvalidInput)
}
