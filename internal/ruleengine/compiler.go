package ruleengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // rule time zones must resolve on minimal images
)

// MaxExcludedPlayers bounds the exclusion list of a single rule. Larger
// audiences belong in a segment.
const MaxExcludedPlayers = 10_000

// Conditions is the compiled condition filter of a rule. A nil or empty
// field means no restriction on that dimension.
type Conditions struct {
	Countries        []string `json:"countries,omitempty"`
	VIPTiers         []string `json:"vipTiers,omitempty"`
	MinAge           *int     `json:"minAge,omitempty"`
	DeviceTypes      []string `json:"deviceTypes,omitempty"`
	FirstDepositOnly bool     `json:"firstDepositOnly,omitempty"`
	ExcludedPlayers  []string `json:"excludedPlayers,omitempty"`
	excluded         map[string]struct{}
}

// CompileRules parses every rule's trigger configuration and conditions into
// typed values. Rules that fail to compile are left with a nil Compiled and
// never fire; the joined error describes each of them.
func CompileRules(rules []Rule) error {
	var errs []error
	for i := range rules {
		if err := compileRule(&rules[i]); err != nil {
			errs = append(errs, fmt.Errorf("failed to compile rule %s: %w", rules[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

func compileRule(rule *Rule) error {
	rule.Compiled = nil

	trigger, err := compileTrigger(rule.TriggerType, rule.TriggerConfig)
	if err != nil {
		return err
	}
	conditions, err := compileConditions(rule.Conditions)
	if err != nil {
		return err
	}

	rule.Compiled = &Compiled{Trigger: trigger, Conditions: conditions}
	return nil
}

func compileConditions(raw json.RawMessage) (Conditions, error) {
	var c Conditions
	if isEmptyJSON(raw) {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("invalid conditions: %w", err)
	}
	if len(c.ExcludedPlayers) > MaxExcludedPlayers {
		return c, fmt.Errorf("excludedPlayers exceeds maximum size: %d > %d", len(c.ExcludedPlayers), MaxExcludedPlayers)
	}
	if len(c.ExcludedPlayers) > 0 {
		c.excluded = make(map[string]struct{}, len(c.ExcludedPlayers))
		for _, id := range c.ExcludedPlayers {
			c.excluded[id] = struct{}{}
		}
	}
	return c, nil
}

// --- trigger configurations ---

type inactivityConfig struct {
	Days int `json:"days"`
}

type eventConfig struct {
	EventName string `json:"eventName"`
}

type segmentConfig struct {
	SegmentID string `json:"segmentId"`
}

const (
	scheduleSpecific = "specific"
	scheduleDaily    = "daily"
	scheduleMonthly  = "monthly"
)

type timeConfig struct {
	Schedule   string    `json:"schedule"`
	At         time.Time `json:"at"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	DayOfMonth int       `json:"dayOfMonth"`
	Timezone   string    `json:"timezone"`
	loc        *time.Location
}

const (
	periodDaily   = "daily"
	periodWeekly  = "weekly"
	periodMonthly = "monthly"
	periodTotal   = "total"
)

type thresholdConfig struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"`
}

type loginStreakConfig struct {
	ConsecutiveDays int `json:"consecutiveDays"`
}

type betStreakConfig struct {
	ConsecutiveCount int     `json:"consecutiveCount"`
	MinBetAmount     float64 `json:"minBetAmount"`
}

type anniversaryConfig struct {
	// DaysBefore fires the trigger ahead of the date.
	DaysBefore int `json:"daysBefore"`
	// Years restricts ACCOUNT_ANNIVERSARY to specific anniversaries. Empty means every year.
	Years []int `json:"years"`
}

type balanceConfig struct {
	Threshold float64 `json:"threshold"`
}

type gameConfig struct {
	GameIDs   []string `json:"gameIds"`
	EventName string   `json:"eventName"`
}

type betSizeConfig struct {
	MinAmount *float64 `json:"minAmount"`
	MaxAmount *float64 `json:"maxAmount"`
}

type sessionDurationConfig struct {
	MinMinutes float64 `json:"minMinutes"`
}

type failedDepositsConfig struct {
	Count       int `json:"count"`
	WithinHours int `json:"withinHours"`
}

const (
	directionBelow = "below"
	directionAbove = "above"
)

type rtpConfig struct {
	Threshold  float64 `json:"threshold"`
	Direction  string  `json:"direction"`
	PeriodDays int     `json:"periodDays"`
	MinBets    int     `json:"minBets"`
}

type bonusExpiryConfig struct {
	HoursBefore float64 `json:"hoursBefore"`
}

// compileTrigger decodes and validates the configuration of a known trigger
// type. Unknown types keep the raw JSON so that externally registered
// triggers can decode it themselves.
func compileTrigger(t TriggerType, raw json.RawMessage) (any, error) {
	switch t {
	case TriggerInactivity:
		c, err := decode[inactivityConfig](t, raw)
		if err == nil && c.Days <= 0 {
			err = fmt.Errorf("%s: days must be positive", t)
		}
		return c, err

	case TriggerEvent:
		c, err := decode[eventConfig](t, raw)
		if err == nil && c.EventName == "" {
			err = fmt.Errorf("%s: eventName is required", t)
		}
		return c, err

	case TriggerSegmentEntry, TriggerSegmentExit:
		c, err := decode[segmentConfig](t, raw)
		if err == nil && c.SegmentID == "" {
			err = fmt.Errorf("%s: segmentId is required", t)
		}
		return c, err

	case TriggerTimeBased:
		return compileTimeConfig(raw)

	case TriggerDepositThreshold, TriggerWithdrawalThreshold:
		c, err := decode[thresholdConfig](t, raw)
		if err != nil {
			return nil, err
		}
		if c.Period == "" {
			c.Period = periodTotal
		}
		switch c.Period {
		case periodDaily, periodWeekly, periodMonthly, periodTotal:
		default:
			return nil, fmt.Errorf("%s: unsupported period %q", t, c.Period)
		}
		if c.Amount <= 0 {
			return nil, fmt.Errorf("%s: amount must be positive", t)
		}
		return c, nil

	case TriggerLoginStreak:
		c, err := decode[loginStreakConfig](t, raw)
		if err == nil && c.ConsecutiveDays <= 0 {
			err = fmt.Errorf("%s: consecutiveDays must be positive", t)
		}
		return c, err

	case TriggerLossStreak, TriggerWinStreak:
		c, err := decode[betStreakConfig](t, raw)
		if err == nil && c.ConsecutiveCount <= 0 {
			err = fmt.Errorf("%s: consecutiveCount must be positive", t)
		}
		return c, err

	case TriggerFirstDeposit:
		return struct{}{}, nil

	case TriggerBirthday, TriggerAccountAnniversary:
		c, err := decode[anniversaryConfig](t, raw)
		if err == nil && c.DaysBefore < 0 {
			err = fmt.Errorf("%s: daysBefore cannot be negative", t)
		}
		return c, err

	case TriggerLowBalance, TriggerHighBalance:
		return decode[balanceConfig](t, raw)

	case TriggerGameSpecific:
		c, err := decode[gameConfig](t, raw)
		if err == nil && len(c.GameIDs) == 0 {
			err = fmt.Errorf("%s: gameIds is required", t)
		}
		return c, err

	case TriggerBetSize:
		c, err := decode[betSizeConfig](t, raw)
		if err == nil && c.MinAmount == nil && c.MaxAmount == nil {
			err = fmt.Errorf("%s: minAmount or maxAmount is required", t)
		}
		return c, err

	case TriggerSessionDuration:
		c, err := decode[sessionDurationConfig](t, raw)
		if err == nil && c.MinMinutes <= 0 {
			err = fmt.Errorf("%s: minMinutes must be positive", t)
		}
		return c, err

	case TriggerMultipleFailedDeposits:
		c, err := decode[failedDepositsConfig](t, raw)
		if err != nil {
			return nil, err
		}
		if c.Count <= 0 {
			return nil, fmt.Errorf("%s: count must be positive", t)
		}
		if c.WithinHours <= 0 {
			c.WithinHours = 24
		}
		return c, nil

	case TriggerRTPThreshold:
		c, err := decode[rtpConfig](t, raw)
		if err != nil {
			return nil, err
		}
		if c.Direction == "" {
			c.Direction = directionBelow
		}
		if c.Direction != directionBelow && c.Direction != directionAbove {
			return nil, fmt.Errorf("%s: direction must be %q or %q", t, directionBelow, directionAbove)
		}
		if c.PeriodDays <= 0 {
			c.PeriodDays = 7
		}
		if c.MinBets <= 0 {
			c.MinBets = 1
		}
		return c, nil

	case TriggerBonusExpiry:
		c, err := decode[bonusExpiryConfig](t, raw)
		if err == nil && c.HoursBefore <= 0 {
			err = fmt.Errorf("%s: hoursBefore must be positive", t)
		}
		return c, err

	default:
		return raw, nil
	}
}

func compileTimeConfig(raw json.RawMessage) (any, error) {
	c, err := decode[timeConfig](TriggerTimeBased, raw)
	if err != nil {
		return nil, err
	}

	c.loc = time.UTC
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid timezone: %w", TriggerTimeBased, err)
		}
		c.loc = loc
	}

	switch strings.ToLower(c.Schedule) {
	case scheduleSpecific:
		if c.At.IsZero() {
			return nil, fmt.Errorf("%s: at is required for specific schedules", TriggerTimeBased)
		}
	case scheduleDaily, scheduleMonthly:
		if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
			return nil, fmt.Errorf("%s: invalid time %02d:%02d", TriggerTimeBased, c.Hour, c.Minute)
		}
		if strings.ToLower(c.Schedule) == scheduleMonthly && (c.DayOfMonth < 1 || c.DayOfMonth > 31) {
			return nil, fmt.Errorf("%s: dayOfMonth must be between 1 and 31", TriggerTimeBased)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported schedule %q", TriggerTimeBased, c.Schedule)
	}
	c.Schedule = strings.ToLower(c.Schedule)
	return c, nil
}

func decode[T any](t TriggerType, raw json.RawMessage) (T, error) {
	var v T
	if isEmptyJSON(raw) {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("invalid %s config: %w", t, err)
	}
	return v, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == "{}"
}
