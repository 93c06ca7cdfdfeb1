package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

type PostgresStore struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, types: pgtype.NewMap()}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetActiveUser returns an active user of the firm.
func (s *PostgresStore) GetActiveUser(ctx context.Context, firmID, userID string) (User, error) {
	var item User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, firm_id, role_id, first_name, last_name, email, is_active, created_at
		FROM users
		WHERE id=$1 AND firm_id=$2 AND is_active
	`, userID, firmID).Scan(&item.ID, &item.FirmID, &item.RoleID, &item.FirstName, &item.LastName, &item.Email, &item.IsActive, &item.CreatedAt)
	if err != nil {
		return User{}, classify(err)
	}
	return item, nil
}

func (s *PostgresStore) GetDepartment(ctx context.Context, firmID, departmentID string) (Department, error) {
	var item Department
	err := s.db.QueryRowContext(ctx, `
		SELECT id, firm_id, name, code, created_at
		FROM departments
		WHERE id=$1 AND firm_id=$2
	`, departmentID, firmID).Scan(&item.ID, &item.FirmID, &item.Name, &item.Code, &item.CreatedAt)
	if err != nil {
		return Department{}, classify(err)
	}
	return item, nil
}

func (s *PostgresStore) GetClient(ctx context.Context, firmID, clientID string) (Client, error) {
	var item Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, firm_id, name, client_type, primary_director_id, department_id, created_at
		FROM clients
		WHERE id=$1 AND firm_id=$2
	`, clientID, firmID).Scan(&item.ID, &item.FirmID, &item.Name, &item.ClientType, &item.PrimaryDirectorID, &item.DepartmentID, &item.CreatedAt)
	if err != nil {
		return Client{}, classify(err)
	}
	return item, nil
}

// FindMembership resolves an active user of the firm together with one of
// their departments. sql.ErrNoRows means the user is inactive, outside the
// firm, or has no department.
func (s *PostgresStore) FindMembership(ctx context.Context, q MembershipQuery) (Membership, error) {
	var item Membership
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.first_name || ' ' || u.last_name, d.id, d.name, ud.is_director
		FROM users u
		JOIN user_departments ud ON ud.user_id = u.id
		JOIN departments d ON d.id = ud.department_id AND d.firm_id = u.firm_id
		WHERE u.id = $1 AND u.firm_id = $2 AND u.is_active
		ORDER BY
			CASE WHEN $3 <> '' AND d.id::text = $3 THEN 0 ELSE 1 END,
			CASE WHEN $4 AND ud.is_director THEN 0 ELSE 1 END,
			ud.joined_at ASC,
			d.id ASC
		LIMIT 1
	`, q.UserID, q.FirmID, q.PreferDepartmentID, q.PreferDirector).Scan(&item.UserID, &item.UserName, &item.DepartmentID, &item.DepartmentName, &item.IsDirector)
	if err != nil {
		return Membership{}, classify(err)
	}
	return item, nil
}

// DepartmentDirector returns the earliest-registered active director of the
// department.
func (s *PostgresStore) DepartmentDirector(ctx context.Context, firmID, departmentID string) (Membership, error) {
	var item Membership
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.first_name || ' ' || u.last_name, d.id, d.name, ud.is_director
		FROM users u
		JOIN user_departments ud ON ud.user_id = u.id
		JOIN departments d ON d.id = ud.department_id
		WHERE ud.department_id = $1
		AND d.firm_id = $2
		AND ud.is_director
		AND u.is_active
		ORDER BY u.created_at ASC, u.id ASC
		LIMIT 1
	`, departmentID, firmID).Scan(&item.UserID, &item.UserName, &item.DepartmentID, &item.DepartmentName, &item.IsDirector)
	if err != nil {
		return Membership{}, classify(err)
	}
	return item, nil
}

// GetAccessSubject loads the firm, status, role level and departments of a
// user. Users without a role get level 999.
func (s *PostgresStore) GetAccessSubject(ctx context.Context, userID string) (AccessSubject, error) {
	var item AccessSubject
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.firm_id, u.is_active, COALESCE(r.level, 999)
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`, userID).Scan(&item.UserID, &item.FirmID, &item.IsActive, &item.RoleLevel)
	if err != nil {
		return AccessSubject{}, classify(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT department_id
		FROM user_departments
		WHERE user_id = $1
		ORDER BY joined_at ASC, department_id ASC
	`, userID)
	if err != nil {
		return AccessSubject{}, fmt.Errorf("list user departments: %w", err)
	}
	defer rows.Close()

	item.DepartmentIDs = make([]string, 0)
	for rows.Next() {
		var departmentID string
		if err := rows.Scan(&departmentID); err != nil {
			return AccessSubject{}, fmt.Errorf("scan user department: %w", err)
		}
		item.DepartmentIDs = append(item.DepartmentIDs, departmentID)
	}
	if err := rows.Err(); err != nil {
		return AccessSubject{}, fmt.Errorf("iterate user departments: %w", err)
	}
	return item, nil
}

// MatterIDsForUser lists the matters the user is assigned to.
func (s *PostgresStore) MatterIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT matter_id
		FROM matter_assignments
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list matter assignments: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var matterID string
		if err := rows.Scan(&matterID); err != nil {
			return nil, fmt.Errorf("scan matter assignment: %w", err)
		}
		items = append(items, matterID)
	}
	return items, rows.Err()
}

func (s *PostgresStore) IsOnMatterTeam(ctx context.Context, userID, matterID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM matter_assignments WHERE matter_id=$1 AND user_id=$2)
	`, matterID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check matter team: %w", classify(err))
	}
	return exists, nil
}

// inTx runs fn in a transaction, rolling back on error or panic.
func (s *PostgresStore) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
