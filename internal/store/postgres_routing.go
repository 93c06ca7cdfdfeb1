package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const ruleColumns = `
	rr.id, rr.firm_id, rr.name, rr.department_id, COALESCE(d.name, ''), rr.priority, rr.conditions,
	rr.assign_to_user_id, COALESCE(u.first_name || ' ' || u.last_name, ''),
	rr.round_robin, rr.active, rr.created_by, rr.created_at, rr.updated_at`

const ruleJoins = `
	FROM routing_rules rr
	LEFT JOIN departments d ON d.id = rr.department_id
	LEFT JOIN users u ON u.id = rr.assign_to_user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (RoutingRule, error) {
	var item RoutingRule
	var conditions []byte
	if err := row.Scan(
		&item.ID, &item.FirmID, &item.Name, &item.DepartmentID, &item.DepartmentName, &item.Priority, &conditions,
		&item.AssignToUserID, &item.AssignedUserName,
		&item.RoundRobin, &item.Active, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return RoutingRule{}, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &item.Conditions); err != nil {
			return RoutingRule{}, fmt.Errorf("decode conditions of rule %s: %w", item.ID, err)
		}
	}
	return item, nil
}

func (s *PostgresStore) queryRules(ctx context.Context, query string, args ...any) ([]RoutingRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := make([]RoutingRule, 0)
	for rows.Next() {
		item, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListActiveRules returns the firm's active rules in evaluation order:
// priority descending, then creation order.
func (s *PostgresStore) ListActiveRules(ctx context.Context, firmID string) ([]RoutingRule, error) {
	items, err := s.queryRules(ctx, `SELECT `+ruleColumns+ruleJoins+`
		WHERE rr.firm_id = $1 AND rr.active
		ORDER BY rr.priority DESC, rr.created_at ASC, rr.id ASC
	`, firmID)
	if err != nil {
		return nil, fmt.Errorf("list active routing rules: %w", err)
	}
	return items, nil
}

// ListRules returns every rule of the firm, inactive ones included.
func (s *PostgresStore) ListRules(ctx context.Context, firmID string) ([]RoutingRule, error) {
	items, err := s.queryRules(ctx, `SELECT `+ruleColumns+ruleJoins+`
		WHERE rr.firm_id = $1
		ORDER BY rr.priority DESC, rr.created_at ASC, rr.id ASC
	`, firmID)
	if err != nil {
		return nil, fmt.Errorf("list routing rules: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRule(ctx context.Context, firmID, ruleID string) (RoutingRule, error) {
	item, err := scanRule(s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+ruleJoins+`
		WHERE rr.id = $1 AND rr.firm_id = $2
	`, ruleID, firmID))
	if err != nil {
		return RoutingRule{}, classify(err)
	}
	return item, nil
}

func (s *PostgresStore) CreateRule(ctx context.Context, rule RoutingRule) (RoutingRule, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return RoutingRule{}, fmt.Errorf("encode conditions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routing_rules (
			id, firm_id, name, department_id, priority, conditions,
			assign_to_user_id, round_robin, active, created_by
		)
		SELECT $1, $2, $3, d.id, $5, $6::jsonb, $7, $8, $9, $10
		FROM departments d
		WHERE d.id = $4 AND d.firm_id = $2
	`, rule.ID, rule.FirmID, rule.Name, rule.DepartmentID, rule.Priority, string(conditions),
		rule.AssignToUserID, rule.RoundRobin, rule.Active, rule.CreatedBy)
	if err != nil {
		return RoutingRule{}, fmt.Errorf("insert routing rule: %w", classify(err))
	}
	created, err := s.GetRule(ctx, rule.FirmID, rule.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// The department guard above inserted nothing.
		return RoutingRule{}, fmt.Errorf("insert routing rule: department %s: %w", rule.DepartmentID, ErrInvalidReference)
	}
	if err != nil {
		return RoutingRule{}, fmt.Errorf("load created routing rule: %w", err)
	}
	return created, nil
}

// UpdateRule applies the non-nil fields of patch. sql.ErrNoRows is returned
// when the rule does not exist in the firm.
func (s *PostgresStore) UpdateRule(ctx context.Context, firmID, ruleID string, patch RulePatch) (RoutingRule, error) {
	if patch.Empty() {
		return RoutingRule{}, fmt.Errorf("update routing rule: %w: no fields to update", ErrInvalidInput)
	}

	p := newPredicates()
	set := &assignments{p: p}
	if patch.Name != nil {
		set.set("name", *patch.Name)
	}
	if patch.Priority != nil {
		set.set("priority", *patch.Priority)
	}
	if patch.Conditions != nil {
		conditions, err := json.Marshal(patch.Conditions)
		if err != nil {
			return RoutingRule{}, fmt.Errorf("encode conditions: %w", err)
		}
		set.set("conditions", string(conditions))
	}
	if patch.AssignToUserID != nil {
		var assignee *string
		if *patch.AssignToUserID != "" {
			assignee = patch.AssignToUserID
		}
		set.set("assign_to_user_id", assignee)
	}
	if patch.RoundRobin != nil {
		set.set("round_robin", *patch.RoundRobin)
	}
	if patch.Active != nil {
		set.set("active", *patch.Active)
	}

	query := fmt.Sprintf(`
		UPDATE routing_rules
		SET %s, updated_at = clock_timestamp()
		WHERE id = %s AND firm_id = %s
	`, set.sql(), p.arg(ruleID), p.arg(firmID))
	result, err := s.db.ExecContext(ctx, query, p.args...)
	if err != nil {
		return RoutingRule{}, fmt.Errorf("update routing rule: %w", classify(err))
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return RoutingRule{}, sql.ErrNoRows
	}
	return s.GetRule(ctx, firmID, ruleID)
}

func (s *PostgresStore) DeleteRule(ctx context.Context, firmID, ruleID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM routing_rules WHERE id=$1 AND firm_id=$2`, ruleID, firmID)
	if err != nil {
		return fmt.Errorf("delete routing rule: %w", classify(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete routing rule: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) RoutingStats(ctx context.Context, firmID string) (RoutingStats, error) {
	var stats RoutingStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE active),
			COUNT(*) FILTER (WHERE round_robin),
			(SELECT COUNT(*) FROM routing_round_robin_state rs
				JOIN departments d ON d.id = rs.department_id
				WHERE d.firm_id = $1)
		FROM routing_rules
		WHERE firm_id = $1
	`, firmID).Scan(&stats.TotalRules, &stats.ActiveRules, &stats.RoundRobinRules, &stats.DepartmentsWithRotation)
	if err != nil {
		return RoutingStats{}, fmt.Errorf("routing stats: %w", classify(err))
	}
	return stats, nil
}

// AdvanceRotation moves the department's round-robin cursor in a single
// transaction. A transaction-scoped advisory lock keyed on the department
// serialises concurrent callers, so they never receive the same step, even
// before the department has a state row.
// It returns nil when pick finds nobody; no state row is written then.
func (s *PostgresStore) AdvanceRotation(ctx context.Context, departmentID string, pick RotationPicker) (*RotationCandidate, error) {
	var next *RotationCandidate
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, departmentID); err != nil {
			return fmt.Errorf("lock rotation state: %w", classify(err))
		}

		var lastUserID *string
		err := tx.QueryRowContext(ctx, `
			SELECT last_user_id
			FROM routing_round_robin_state
			WHERE department_id = $1
		`, departmentID).Scan(&lastUserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load rotation state: %w", classify(err))
		}

		eligible, err := rotationCandidates(ctx, tx, departmentID)
		if err != nil {
			return err
		}

		var last *RotationCandidate
		if lastUserID != nil {
			var candidate RotationCandidate
			err := tx.QueryRowContext(ctx, `
				SELECT id, first_name || ' ' || last_name, created_at
				FROM users
				WHERE id = $1
			`, *lastUserID).Scan(&candidate.UserID, &candidate.UserName, &candidate.CreatedAt)
			switch {
			case err == nil:
				last = &candidate
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("load last rotation user: %w", err)
			}
		}

		next = pick(eligible, last)
		if next == nil {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO routing_round_robin_state (department_id, last_user_id, rotation_count, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (department_id) DO UPDATE
			SET last_user_id = EXCLUDED.last_user_id,
				rotation_count = routing_round_robin_state.rotation_count + 1,
				updated_at = NOW()
		`, departmentID, next.UserID); err != nil {
			return fmt.Errorf("advance rotation state: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// rotationCandidates lists active department members in stable order.
func rotationCandidates(ctx context.Context, tx *sql.Tx, departmentID string) ([]RotationCandidate, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT u.id, u.first_name || ' ' || u.last_name, u.created_at, d.id, d.name
		FROM users u
		JOIN user_departments ud ON ud.user_id = u.id
		JOIN departments d ON d.id = ud.department_id
		WHERE ud.department_id = $1 AND u.is_active
		ORDER BY u.created_at ASC, u.id ASC
	`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list rotation candidates: %w", err)
	}
	defer rows.Close()

	items := make([]RotationCandidate, 0)
	for rows.Next() {
		var item RotationCandidate
		if err := rows.Scan(&item.UserID, &item.UserName, &item.CreatedAt, &item.DepartmentID, &item.DepartmentName); err != nil {
			return nil, fmt.Errorf("scan rotation candidate: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rotation candidates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRoundRobinState(ctx context.Context, departmentID string) (RoundRobinState, error) {
	var item RoundRobinState
	err := s.db.QueryRowContext(ctx, `
		SELECT department_id, last_user_id, rotation_count, updated_at
		FROM routing_round_robin_state
		WHERE department_id = $1
	`, departmentID).Scan(&item.DepartmentID, &item.LastUserID, &item.RotationCount, &item.UpdatedAt)
	if err != nil {
		return RoundRobinState{}, classify(err)
	}
	return item, nil
}
