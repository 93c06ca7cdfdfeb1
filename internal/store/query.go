package store

import (
	"fmt"
	"strings"
)

// predicates accumulates AND-ed SQL conditions with positional arguments.
// Clauses are fixed SQL fragments with a single "?" placeholder; values only
// ever travel as arguments.
type predicates struct {
	clauses []string
	args    []any
}

func newPredicates(args ...any) *predicates {
	return &predicates{args: args}
}

// arg appends a value and returns its placeholder.
func (p *predicates) arg(value any) string {
	p.args = append(p.args, value)
	return fmt.Sprintf("$%d", len(p.args))
}

// add appends a clause, substituting "?" with the placeholder for value.
func (p *predicates) add(clause string, value any) {
	p.clauses = append(p.clauses, strings.Replace(clause, "?", p.arg(value), 1))
}

// addRaw appends a clause that takes no argument.
func (p *predicates) addRaw(clause string) {
	p.clauses = append(p.clauses, clause)
}

func (p *predicates) sql() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " AND " + strings.Join(p.clauses, " AND ")
}

// assignments accumulates SET items for an UPDATE.
type assignments struct {
	items []string
	p     *predicates
}

func (a *assignments) set(column string, value any) {
	a.items = append(a.items, column+" = "+a.p.arg(value))
}

func (a *assignments) sql() string {
	return strings.Join(a.items, ", ")
}
