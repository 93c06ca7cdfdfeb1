package routing

import (
	"bytes"
	"encoding/json"
	"strings"

	"legalnexus/api/internal/store"
)

// Request is an assignment request. All fields are optional.
type Request struct {
	ClientID       string
	MatterType     string
	EstimatedValue *float64
	DepartmentID   string
}

func (r Request) value() float64 {
	if r.EstimatedValue == nil {
		return 0
	}
	return *r.EstimatedValue
}

// Matches reports whether every condition present in cond holds for the
// client and request. client may be nil.
//
// value_min is inclusive and value_max exclusive, both against the estimated
// value with a missing value read as 0. department_code is accepted but not
// evaluated.
func Matches(client *store.Client, req Request, cond store.RuleConditions) bool {
	if cond.ClientType != nil {
		if client == nil || client.ClientType != *cond.ClientType {
			return false
		}
	}
	if cond.MatterType != nil && req.MatterType != *cond.MatterType {
		return false
	}
	value := req.value()
	if cond.ValueMin != nil && value < *cond.ValueMin {
		return false
	}
	if cond.ValueMax != nil && value >= *cond.ValueMax {
		return false
	}
	return true
}

// ParseConditions strictly decodes a JSON conditions object. Empty input and
// null decode to no conditions.
func ParseConditions(raw []byte) (store.RuleConditions, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return store.RuleConditions{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	var cond store.RuleConditions
	if err := decoder.Decode(&cond); err != nil {
		return store.RuleConditions{}, invalidRule("malformed conditions: %v", err)
	}
	if decoder.More() {
		return store.RuleConditions{}, invalidRule("malformed conditions: trailing data")
	}
	if err := ValidateConditions(cond); err != nil {
		return store.RuleConditions{}, err
	}
	return cond, nil
}

func ValidateConditions(cond store.RuleConditions) error {
	for _, field := range []struct {
		key   string
		value *string
	}{
		{"client_type", cond.ClientType},
		{"matter_type", cond.MatterType},
		{"department_code", cond.DepartmentCode},
	} {
		if field.value != nil && strings.TrimSpace(*field.value) == "" {
			return invalidRule("%s must not be empty", field.key)
		}
	}
	if cond.ValueMin != nil && *cond.ValueMin < 0 {
		return invalidRule("value_min must not be negative")
	}
	if cond.ValueMax != nil && *cond.ValueMax <= 0 {
		return invalidRule("value_max must be positive")
	}
	if cond.ValueMin != nil && cond.ValueMax != nil && *cond.ValueMin >= *cond.ValueMax {
		return invalidRule("value_min must be below value_max")
	}
	return nil
}
