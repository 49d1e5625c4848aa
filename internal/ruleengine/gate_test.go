package ruleengine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/ruleengine/ruleenginetest"
)

// Wednesday, 15:00 UTC.
var now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestCheckTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule ruleengine.Rule
		want ruleengine.Denial
	}{
		{name: "Should admit a rule without restrictions", rule: ruleengine.Rule{}, want: ruleengine.DenialNone},
		{name: "Should deny before the start date", rule: ruleengine.Rule{StartDate: ptr(now.Add(time.Hour))}, want: ruleengine.DenialNotStarted},
		{name: "Should deny after the end date", rule: ruleengine.Rule{EndDate: ptr(now.Add(-time.Hour))}, want: ruleengine.DenialEnded},
		{name: "Should admit inside the window", rule: ruleengine.Rule{StartDate: ptr(now.Add(-time.Hour)), EndDate: ptr(now.Add(time.Hour))}, want: ruleengine.DenialNone},
		{name: "Should deny outside active hours", rule: ruleengine.Rule{ActiveHours: []int{9, 10, 11}}, want: ruleengine.DenialOutsideHours},
		{name: "Should admit during an active hour", rule: ruleengine.Rule{ActiveHours: []int{14, 15}}, want: ruleengine.DenialNone},
		{name: "Should deny on an inactive weekday", rule: ruleengine.Rule{ActiveWeekdays: []int{0, 6}}, want: ruleengine.DenialOutsideWeekdays},
		{name: "Should admit on an active weekday", rule: ruleengine.Rule{ActiveWeekdays: []int{3}}, want: ruleengine.DenialNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ruleengine.CheckTime(&tt.rule, now))
		})
	}
}

func compiledConditions(t *testing.T, raw string) *ruleengine.Conditions {
	t.Helper()
	rules := []ruleengine.Rule{{
		ID:            "r",
		TriggerType:   ruleengine.TriggerEvent,
		TriggerConfig: json.RawMessage(`{"eventName": "login"}`),
		Conditions:    json.RawMessage(raw),
	}}
	require.NoError(t, ruleengine.CompileRules(rules))
	return &rules[0].Compiled.Conditions
}

func TestCheckConditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		conditions string
		player     string
		ctx        ruleengine.Context
		want       ruleengine.Denial
	}{
		{name: "Should admit when no condition is configured", conditions: `{}`, want: ruleengine.DenialNone},
		{name: "Should match countries case-insensitively", conditions: `{"countries": ["PT", "BR"]}`, ctx: ruleengine.Context{Country: "br"}, want: ruleengine.DenialNone},
		{name: "Should deny a country outside the allow-list", conditions: `{"countries": ["PT"]}`, ctx: ruleengine.Context{Country: "ES"}, want: ruleengine.DenialCountry},
		{name: "Should deny when the country is unknown", conditions: `{"countries": ["PT"]}`, want: ruleengine.DenialCountry},
		{name: "Should deny a VIP tier outside the allow-list", conditions: `{"vipTiers": ["gold"]}`, ctx: ruleengine.Context{VIPTier: "silver"}, want: ruleengine.DenialVIPTier},
		{name: "Should admit an explicit age at the minimum", conditions: `{"minAge": 18}`, ctx: ruleengine.Context{Age: ptr(18)}, want: ruleengine.DenialNone},
		{name: "Should derive age from the birthdate", conditions: `{"minAge": 18}`, ctx: ruleengine.Context{Birthdate: "2008-05-21"}, want: ruleengine.DenialAge},
		{name: "Should count the birthday itself", conditions: `{"minAge": 18}`, ctx: ruleengine.Context{Birthdate: "2008-05-20"}, want: ruleengine.DenialNone},
		{name: "Should deny when age cannot be determined", conditions: `{"minAge": 18}`, want: ruleengine.DenialAge},
		{name: "Should deny an unlisted device type", conditions: `{"deviceTypes": ["mobile"]}`, ctx: ruleengine.Context{DeviceType: "desktop"}, want: ruleengine.DenialDevice},
		{name: "Should deny first-deposit-only rules for depositors", conditions: `{"firstDepositOnly": true}`, ctx: ruleengine.Context{HasPriorDeposits: ptr(true)}, want: ruleengine.DenialPriorDeposits},
		{name: "Should admit first-deposit-only rules without deposit history", conditions: `{"firstDepositOnly": true}`, ctx: ruleengine.Context{HasPriorDeposits: ptr(false)}, want: ruleengine.DenialNone},
		{name: "Should deny excluded players", conditions: `{"excludedPlayers": ["p1", "p2"]}`, player: "p2", want: ruleengine.DenialExcluded},
		{name: "Should admit players not on the exclusion list", conditions: `{"excludedPlayers": ["p1"]}`, player: "p3", want: ruleengine.DenialNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := compiledConditions(t, tt.conditions)
			assert.Equal(t, tt.want, ruleengine.CheckConditions(c, tt.player, tt.ctx, now))
		})
	}
}

func TestGate_CheckFrequency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	success := func(ago time.Duration) ruleengine.Execution {
		return ruleengine.Execution{RuleID: "r1", PlayerID: "p1", Success: true, CreatedAt: now.Add(-ago)}
	}

	t.Run("Should deny at the execution cap", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		for range 3 {
			store.AddExecution(success(30 * 24 * time.Hour))
		}
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", MaxExecutionsPerPlayer: ptr(3)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialFrequencyCap, d)
	})

	t.Run("Should admit below the execution cap", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		store.AddExecution(success(30 * 24 * time.Hour))
		store.AddExecution(success(20 * 24 * time.Hour))
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", MaxExecutionsPerPlayer: ptr(3)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialNone, d)
	})

	t.Run("Should deny at the execution cap when every attempt failed", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		for range 3 {
			store.AddExecution(ruleengine.Execution{RuleID: "r1", PlayerID: "p1", Success: false, Error: "gateway down", CreatedAt: now.Add(-30 * 24 * time.Hour)})
		}
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", MaxExecutionsPerPlayer: ptr(3)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialFrequencyCap, d)
	})

	t.Run("Should deny inside the cooldown period after a failed attempt", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		store.AddExecution(ruleengine.Execution{RuleID: "r1", PlayerID: "p1", Success: false, CreatedAt: now.Add(-24 * time.Hour)})
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", CooldownPeriodDays: ptr(7)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialCooldown, d)
	})

	t.Run("Should not count other players", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		store.AddExecution(ruleengine.Execution{RuleID: "r1", PlayerID: "p2", Success: true, CreatedAt: now})
		store.AddExecution(ruleengine.Execution{RuleID: "r2", PlayerID: "p1", Success: false, CreatedAt: now})
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", MaxExecutionsPerPlayer: ptr(1), CooldownPeriodDays: ptr(7)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialNone, d)
	})

	t.Run("Should deny inside the cooldown period", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		store.AddExecution(success(3 * 24 * time.Hour))
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", CooldownPeriodDays: ptr(7)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialCooldown, d)
	})

	t.Run("Should admit after the cooldown period", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		store.AddExecution(success(8 * 24 * time.Hour))
		gate := ruleengine.NewGate(store)

		d, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", CooldownPeriodDays: ptr(7)}, "p1", now)

		require.NoError(t, err)
		assert.Equal(t, ruleengine.DenialNone, d)
	})

	t.Run("Should surface data access errors", func(t *testing.T) {
		store := ruleenginetest.NewMemoryStore()
		store.CountErr = errors.New("connection reset")
		gate := ruleengine.NewGate(store)

		_, err := gate.CheckFrequency(ctx, &ruleengine.Rule{ID: "r1", CooldownPeriodDays: ptr(7)}, "p1", now)

		assert.ErrorContains(t, err, "connection reset")
	})
}
