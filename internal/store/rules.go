package store

import (
	"context"
	"fmt"

	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

// ListActiveRules implements ruleengine.RuleRepository.
// Rules come back priority descending with their variants and compiled
// configuration. A rule whose configuration fails to compile is still
// returned, uncompiled, so the engine can report it as skipped.
func (s *PostgresStore) ListActiveRules(ctx context.Context, tenantID string) ([]ruleengine.Rule, error) {
	query := `
		SELECT id, tenant_id, name, active, trigger_type, trigger_config, conditions, priority,
		       start_date, end_date,
		       COALESCE(active_hours, '{}'), COALESCE(active_weekdays, '{}'),
		       max_executions_per_player, cooldown_period_days, conversion_goal,
		       total_executions, last_executed_at
		FROM rules
		WHERE tenant_id = $1 AND active
		ORDER BY priority DESC, id
	`

	rows, err := s.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []ruleengine.Rule
	index := make(map[string]int)
	for rows.Next() {
		var r ruleengine.Rule
		var triggerType string
		if err := rows.Scan(
			&r.ID,
			&r.TenantID,
			&r.Name,
			&r.Active,
			&triggerType,
			&r.TriggerConfig,
			&r.Conditions,
			&r.Priority,
			&r.StartDate,
			&r.EndDate,
			&r.ActiveHours,
			&r.ActiveWeekdays,
			&r.MaxExecutionsPerPlayer,
			&r.CooldownPeriodDays,
			&r.ConversionGoal,
			&r.TotalExecutions,
			&r.LastExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		r.TriggerType = ruleengine.TriggerType(triggerType)
		index[r.ID] = len(rules)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(rules) == 0 {
		return rules, nil
	}

	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	if err := s.attachVariants(ctx, ids, rules, index); err != nil {
		return nil, err
	}

	// Compilation errors are tolerated here; see the doc comment.
	_ = ruleengine.CompileRules(rules)
	return rules, nil
}

func (s *PostgresStore) attachVariants(ctx context.Context, ruleIDs []string, rules []ruleengine.Rule, index map[string]int) error {
	query := `
		SELECT id, rule_id, name, action_type, action_payload, weight, exposures
		FROM rule_variants
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, id
	`

	rows, err := s.db.Query(ctx, query, ruleIDs)
	if err != nil {
		return fmt.Errorf("failed to list rule variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v ruleengine.Variant
		if err := rows.Scan(&v.ID, &v.RuleID, &v.Name, &v.ActionType, &v.ActionPayload, &v.Weight, &v.Exposures); err != nil {
			return fmt.Errorf("failed to scan variant row: %w", err)
		}
		if i, ok := index[v.RuleID]; ok {
			rules[i].Variants = append(rules[i].Variants, v)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}
