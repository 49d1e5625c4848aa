package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

// CountExecutions implements ruleengine.ExecutionRepository.
// Failed attempts count as well as successful ones.
func (s *PostgresStore) CountExecutions(ctx context.Context, ruleID, playerID string, since time.Time) (int64, error) {
	query := `
		SELECT count(*) FROM rule_executions
		WHERE rule_id = $1 AND player_id = $2
	`
	args := []any{ruleID, playerID}
	if !since.IsZero() {
		query += " AND created_at >= $3"
		args = append(args, since)
	}

	var n int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return n, nil
}

// RecordFailure implements ruleengine.ExecutionRepository.
func (s *PostgresStore) RecordFailure(ctx context.Context, exec ruleengine.Execution) error {
	exec.Success = false
	return insertExecution(ctx, s.db, exec)
}

// RecordSuccess implements ruleengine.ExecutionRepository. The execution row,
// the variant exposure and the rule counters are written in one transaction.
func (s *PostgresStore) RecordSuccess(ctx context.Context, exec ruleengine.Execution) error {
	exec.Success = true
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := insertExecution(ctx, tx, exec); err != nil {
			return err
		}

		if exec.VariantID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE rule_variants SET exposures = exposures + 1 WHERE id = $1`,
				*exec.VariantID,
			); err != nil {
				return fmt.Errorf("failed to increment variant exposures: %w", err)
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE rules
			SET total_executions = total_executions + 1,
			    last_executed_at = GREATEST(COALESCE(last_executed_at, $2), $2)
			WHERE id = $1
		`, exec.RuleID, exec.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to update rule counters: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("rule %q: %w", exec.RuleID, ErrNotFound)
		}
		return nil
	})
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertExecution(ctx context.Context, db execer, exec ruleengine.Execution) error {
	_, err := db.Exec(ctx, `
		INSERT INTO rule_executions (id, rule_id, variant_id, player_id, tenant_id, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		exec.ID,
		exec.RuleID,
		exec.VariantID,
		exec.PlayerID,
		exec.TenantID,
		exec.Success,
		exec.Error,
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}
