package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffMembers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		current     []string
		next        []string
		wantEntered []string
		wantExited  []string
	}{
		{
			name:        "Should report everyone as entered on first computation",
			current:     nil,
			next:        []string{"p2", "p1"},
			wantEntered: []string{"p1", "p2"},
		},
		{
			name:       "Should report everyone as exited when nobody matches anymore",
			current:    []string{"p1", "p2"},
			next:       nil,
			wantExited: []string{"p1", "p2"},
		},
		{
			name:        "Should report only the changes",
			current:     []string{"p1", "p2", "p3"},
			next:        []string{"p2", "p3", "p4"},
			wantEntered: []string{"p4"},
			wantExited:  []string{"p1"},
		},
		{
			name:    "Should report nothing when membership is unchanged",
			current: []string{"p1", "p2"},
			next:    []string{"p2", "p1"},
		},
		{
			name:        "Should ignore duplicates in the new membership",
			current:     []string{"p1"},
			next:        []string{"p2", "p2", "p1"},
			wantEntered: []string{"p2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entered, exited := diffMembers(tt.current, tt.next)
			assert.Equal(t, tt.wantEntered, entered)
			assert.Equal(t, tt.wantExited, exited)
		})
	}
}
