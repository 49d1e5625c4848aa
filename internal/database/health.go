package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RequiredTables are the relations the automation core reads and writes.
// A pool that answers pings but lacks them points at a missing migration.
var RequiredTables = []string{
	"tenants",
	"events",
	"rules",
	"rule_variants",
	"rule_executions",
	"segments",
	"segment_members",
}

const missingTablesQuery = `
	SELECT t FROM unnest($1::text[]) AS t
	WHERE to_regclass(t) IS NULL`

// HealthChecker reports the database ready once it is reachable and migrated.
type HealthChecker struct {
	pool   *pgxpool.Pool
	tables []string
}

// NewHealthChecker checks pool against RequiredTables.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool, tables: RequiredTables}
}

func (h *HealthChecker) Name() string {
	return "postgres"
}

// Check pings the pool and then looks up every required table.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return errors.New("database pool is nil")
	}
	if err := h.pool.Ping(ctx); err != nil {
		return err
	}

	rows, err := h.pool.Query(ctx, missingTablesQuery, h.tables)
	if err != nil {
		return fmt.Errorf("schema lookup failed: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("schema lookup failed: %w", err)
		}
		missing = append(missing, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema lookup failed: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema not migrated, missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
