package ruleengine_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/ruleengine/ruleenginetest"
)

func TestSelectVariant(t *testing.T) {
	t.Parallel()

	variants := []ruleengine.Variant{
		{ID: "control", Weight: 1},
		{ID: "treatment", Weight: 3},
	}

	t.Run("Should return nil for an empty variant list", func(t *testing.T) {
		assert.Nil(t, ruleengine.SelectVariant(nil, ruleenginetest.NewScriptedRand(0.5)))
	})

	t.Run("Should map draws onto cumulative weights", func(t *testing.T) {
		tests := []struct {
			draw float64
			want string
		}{
			{0.0, "control"},
			{0.1, "control"},
			{0.25, "control"}, // remainder reaches exactly 0 on the first variant
			{0.26, "treatment"},
			{0.5, "treatment"},
			{0.999, "treatment"},
		}
		for _, tt := range tests {
			got := ruleengine.SelectVariant(variants, ruleenginetest.NewScriptedRand(tt.draw))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID, "draw %v", tt.draw)
		}
	})

	t.Run("Should select the heavier variant three times as often over an even sweep", func(t *testing.T) {
		const steps = 400
		counts := map[string]int{}
		for i := range steps {
			draw := (float64(i) + 0.5) / steps
			counts[ruleengine.SelectVariant(variants, ruleenginetest.NewScriptedRand(draw)).ID]++
		}
		assert.Equal(t, 100, counts["control"])
		assert.Equal(t, 300, counts["treatment"])
	})

	t.Run("Should approximate weights with a seeded source", func(t *testing.T) {
		rnd := rand.New(rand.NewPCG(42, 7))
		counts := map[string]int{}
		for range 20_000 {
			counts[ruleengine.SelectVariant(variants, rnd).ID]++
		}
		ratio := float64(counts["treatment"]) / float64(counts["control"])
		assert.InDelta(t, 3.0, ratio, 0.25)
	})

	t.Run("Should treat non-positive weights as 1", func(t *testing.T) {
		unweighted := []ruleengine.Variant{{ID: "a"}, {ID: "b", Weight: -5}}

		assert.Equal(t, "a", ruleengine.SelectVariant(unweighted, ruleenginetest.NewScriptedRand(0.49)).ID)
		assert.Equal(t, "b", ruleengine.SelectVariant(unweighted, ruleenginetest.NewScriptedRand(0.51)).ID)
	})
}
