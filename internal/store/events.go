package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

// eventFilter renders the WHERE clause shared by the event log reads.
func eventFilter(q facts.Query) (string, []any) {
	var b strings.Builder
	args := []any{q.TenantID, q.PlayerID}
	b.WriteString("tenant_id = $1 AND player_id = $2")

	if len(q.Names) > 0 {
		args = append(args, q.Names)
		b.WriteString(" AND name = ANY($" + strconv.Itoa(len(args)) + ")")
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		b.WriteString(" AND occurred_at >= $" + strconv.Itoa(len(args)))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		b.WriteString(" AND occurred_at < $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

// CountEvents implements facts.EventReader.
func (s *PostgresStore) CountEvents(ctx context.Context, q facts.Query) (int64, error) {
	where, args := eventFilter(q)

	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM events WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// SumAmount implements facts.EventReader.
// Non-numeric amounts count as zero, numeric strings are accepted.
func (s *PostgresStore) SumAmount(ctx context.Context, q facts.Query) (float64, error) {
	where, args := eventFilter(q)
	query := `
		SELECT COALESCE(SUM(
			CASE
				WHEN jsonb_typeof(properties->'amount') = 'number'
					THEN (properties->>'amount')::double precision
				WHEN jsonb_typeof(properties->'amount') = 'string'
					AND properties->>'amount' ~ '^\s*-?[0-9]+(\.[0-9]+)?\s*$'
					THEN trim(properties->>'amount')::double precision
				ELSE 0
			END
		), 0)
		FROM events WHERE ` + where

	var sum float64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum event amounts: %w", err)
	}
	return sum, nil
}

// ListEvents implements facts.EventReader. Events are returned newest first.
func (s *PostgresStore) ListEvents(ctx context.Context, q facts.Query) ([]facts.Event, error) {
	where, args := eventFilter(q)
	query := `
		SELECT id, tenant_id, player_id, name, properties, occurred_at
		FROM events WHERE ` + where + `
		ORDER BY occurred_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []facts.Event
	for rows.Next() {
		var e facts.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PlayerID, &e.Name, &e.Properties, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}
