package ruleengine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Denial explains why the gate rejected a rule. The zero value means admitted.
type Denial string

const (
	DenialNone            Denial = ""
	DenialNotStarted      Denial = "not_started"
	DenialEnded           Denial = "ended"
	DenialOutsideHours    Denial = "outside_active_hours"
	DenialOutsideWeekdays Denial = "outside_active_weekdays"
	DenialCountry         Denial = "country"
	DenialVIPTier         Denial = "vip_tier"
	DenialAge             Denial = "min_age"
	DenialDevice          Denial = "device_type"
	DenialPriorDeposits   Denial = "first_deposit_only"
	DenialExcluded        Denial = "excluded_player"
	DenialFrequencyCap    Denial = "max_executions"
	DenialCooldown        Denial = "cooldown"
)

// Gate composes the time window, condition filter and frequency checks.
// The first two are pure; the frequency check reads execution history.
type Gate struct {
	executions ExecutionRepository
}

// NewGate creates a Gate backed by the execution history.
func NewGate(executions ExecutionRepository) *Gate {
	if executions == nil {
		panic("ruleengine: execution repository cannot be nil")
	}
	return &Gate{executions: executions}
}

// CheckTime validates the start/end bounds, active hours and active weekdays against now.
func CheckTime(rule *Rule, now time.Time) Denial {
	if rule.StartDate != nil && now.Before(*rule.StartDate) {
		return DenialNotStarted
	}
	if rule.EndDate != nil && now.After(*rule.EndDate) {
		return DenialEnded
	}
	if len(rule.ActiveHours) > 0 && !slices.Contains(rule.ActiveHours, now.Hour()) {
		return DenialOutsideHours
	}
	if len(rule.ActiveWeekdays) > 0 && !slices.Contains(rule.ActiveWeekdays, int(now.Weekday())) {
		return DenialOutsideWeekdays
	}
	return DenialNone
}

// CheckConditions applies every configured condition to the invocation context.
// Allow-lists reject a context that does not carry the value at all.
func CheckConditions(c *Conditions, playerID string, ec Context, now time.Time) Denial {
	if len(c.Countries) > 0 && !containsFold(c.Countries, ec.Country) {
		return DenialCountry
	}
	if len(c.VIPTiers) > 0 && !containsFold(c.VIPTiers, ec.VIPTier) {
		return DenialVIPTier
	}
	if c.MinAge != nil {
		age, ok := playerAge(ec, now)
		if !ok || age < *c.MinAge {
			return DenialAge
		}
	}
	if len(c.DeviceTypes) > 0 && !containsFold(c.DeviceTypes, ec.DeviceType) {
		return DenialDevice
	}
	if c.FirstDepositOnly && ec.HasPriorDeposits != nil && *ec.HasPriorDeposits {
		return DenialPriorDeposits
	}
	if c.isExcluded(playerID) {
		return DenialExcluded
	}
	return DenialNone
}

func (c *Conditions) isExcluded(playerID string) bool {
	if c.excluded != nil {
		_, ok := c.excluded[playerID]
		return ok
	}
	return slices.Contains(c.ExcludedPlayers, playerID)
}

// CheckFrequency enforces maxExecutionsPerPlayer and cooldownPeriodDays.
// Every recorded attempt counts against either limit, failed ones included.
func (g *Gate) CheckFrequency(ctx context.Context, rule *Rule, playerID string, now time.Time) (Denial, error) {
	if rule.MaxExecutionsPerPlayer != nil {
		n, err := g.executions.CountExecutions(ctx, rule.ID, playerID, time.Time{})
		if err != nil {
			return DenialNone, fmt.Errorf("failed to count executions: %w", err)
		}
		if n >= int64(*rule.MaxExecutionsPerPlayer) {
			return DenialFrequencyCap, nil
		}
	}

	if rule.CooldownPeriodDays != nil && *rule.CooldownPeriodDays > 0 {
		since := now.Add(-time.Duration(*rule.CooldownPeriodDays) * day)
		n, err := g.executions.CountExecutions(ctx, rule.ID, playerID, since)
		if err != nil {
			return DenialNone, fmt.Errorf("failed to count recent executions: %w", err)
		}
		if n > 0 {
			return DenialCooldown, nil
		}
	}
	return DenialNone, nil
}

func playerAge(ec Context, now time.Time) (int, bool) {
	if ec.Age != nil {
		return *ec.Age, true
	}
	born, ok := parseDate(ec.Birthdate)
	if !ok {
		return 0, false
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age, true
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, v) })
}
