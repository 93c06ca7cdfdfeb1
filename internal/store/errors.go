package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConflict         = errors.New("conflicting record")
	ErrInvalidReference = errors.New("referenced record does not exist")
	ErrInvalidInput     = errors.New("invalid input")
)

// classify maps constraint and input errors reported by Postgres onto the
// package sentinels. The original error stays in the chain.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	case pgerrcode.InvalidTextRepresentation, pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}
