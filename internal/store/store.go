// Package store provides the Data Access Layer for Valkyrie.
// It implements every persistence contract of the core (event log, rules,
// executions, segments) on PostgreSQL using the pgx driver.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/valkyrie/internal/facts"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/segment"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Compile-time checks against the core contracts.
var (
	_ facts.EventReader              = (*PostgresStore)(nil)
	_ ruleengine.RuleRepository      = (*PostgresStore)(nil)
	_ ruleengine.ExecutionRepository = (*PostgresStore)(nil)
	_ segment.Repository             = (*PostgresStore)(nil)
)

// PostgresStore is the PostgreSQL implementation of the core repositories.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	validation.AssertNotNil(db, "store", "database pool")
	return &PostgresStore{db: db}
}

// ListTenants returns the IDs of every active tenant, ascending.
func (s *PostgresStore) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM tenants WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ids, nil
}
