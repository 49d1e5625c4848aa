package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

func TestEventFilter(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     facts.Query
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "Should scope to tenant and player only",
			query:     facts.Query{TenantID: "t1", PlayerID: "p1"},
			wantWhere: "tenant_id = $1 AND player_id = $2",
			wantArgs:  []any{"t1", "p1"},
		},
		{
			name:      "Should add names and an inclusive lower bound",
			query:     facts.Query{TenantID: "t1", PlayerID: "p1", Names: []string{"login"}, Since: since},
			wantWhere: "tenant_id = $1 AND player_id = $2 AND name = ANY($3) AND occurred_at >= $4",
			wantArgs:  []any{"t1", "p1", []string{"login"}, since},
		},
		{
			name:      "Should number an exclusive upper bound after the lower bound",
			query:     facts.Query{TenantID: "t1", PlayerID: "p1", Since: since, Until: until},
			wantWhere: "tenant_id = $1 AND player_id = $2 AND occurred_at >= $3 AND occurred_at < $4",
			wantArgs:  []any{"t1", "p1", since, until},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			where, args := eventFilter(tt.query)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
