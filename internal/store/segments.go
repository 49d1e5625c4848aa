package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/rafaeljc/valkyrie/internal/segment"
)

const segmentColumns = `id, tenant_id, name, criteria, updated_at`

func scanSegment(row pgx.Row) (segment.Segment, error) {
	var seg segment.Segment
	err := row.Scan(&seg.ID, &seg.TenantID, &seg.Name, &seg.Criteria, &seg.UpdatedAt)
	return seg, err
}

// ListSegments implements segment.Repository.
func (s *PostgresStore) ListSegments(ctx context.Context, tenantID string) ([]segment.Segment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE tenant_id = $1 ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var segments []segment.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return segments, nil
}

// GetSegment implements segment.Repository.
func (s *PostgresStore) GetSegment(ctx context.Context, tenantID, segmentID string) (*segment.Segment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE tenant_id = $1 AND id = $2`,
		tenantID, segmentID,
	)
	seg, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("segment %q: %w", segmentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &seg, nil
}

// ListPlayers implements segment.Repository. The player population is every
// player with at least one event in the tenant's log.
func (s *PostgresStore) ListPlayers(ctx context.Context, tenantID, afterID string, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT player_id FROM events
		WHERE tenant_id = $1 AND player_id > $2
		ORDER BY player_id
		LIMIT $3
	`, tenantID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return players, nil
}

// ListMembers returns the stored members of a segment, ascending.
func (s *PostgresStore) ListMembers(ctx context.Context, segmentID string) ([]string, error) {
	return listMembers(ctx, s.db, segmentID)
}

// ReplaceMembers implements segment.Repository. The segment row is locked for
// the duration of the transaction so concurrent recomputations serialize and
// each observes the other's result when diffing.
func (s *PostgresStore) ReplaceMembers(ctx context.Context, segmentID string, playerIDs []string) (entered, exited []string, err error) {
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM segments WHERE id = $1 FOR UPDATE`, segmentID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("segment %q: %w", segmentID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock segment: %w", err)
		}

		current, err := listMembers(ctx, tx, segmentID)
		if err != nil {
			return err
		}

		entered, exited = diffMembers(current, playerIDs)

		if len(exited) > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM segment_members WHERE segment_id = $1 AND player_id = ANY($2)`,
				segmentID, exited,
			); err != nil {
				return fmt.Errorf("failed to delete members: %w", err)
			}
		}
		if len(entered) > 0 {
			if _, err := tx.Exec(ctx, `
				INSERT INTO segment_members (segment_id, player_id)
				SELECT $1, unnest($2::text[])
			`, segmentID, entered); err != nil {
				return fmt.Errorf("failed to insert members: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE segments SET last_computed_at = NOW() WHERE id = $1`, segmentID); err != nil {
			return fmt.Errorf("failed to stamp segment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entered, exited, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMembers(ctx context.Context, db querier, segmentID string) ([]string, error) {
	rows, err := db.Query(ctx,
		`SELECT player_id FROM segment_members WHERE segment_id = $1 ORDER BY player_id`,
		segmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return members, nil
}

// diffMembers returns the sorted, de-duplicated players present only in next
// (entered) and only in current (exited).
func diffMembers(current, next []string) (entered, exited []string) {
	before := make(map[string]struct{}, len(current))
	for _, id := range current {
		before[id] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))
	for _, id := range next {
		after[id] = struct{}{}
	}

	for id := range after {
		if _, ok := before[id]; !ok {
			entered = append(entered, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			exited = append(exited, id)
		}
	}
	slices.Sort(entered)
	slices.Sort(exited)
	return entered, exited
}
