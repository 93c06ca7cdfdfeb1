package util

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string. Table primary keys are UUID columns,
// so ids carry no prefix.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether value parses as a UUID. Used to reject malformed path
// parameters before they reach a uuid-typed column.
func IsID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
