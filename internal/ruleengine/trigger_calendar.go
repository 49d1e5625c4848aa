package ruleengine

import (
	"context"
	"slices"
	"time"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

// specificTolerance is how far from a "specific" timestamp a TIME_BASED rule still fires.
const specificTolerance = 60 * time.Second

func timeBased(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[timeConfig](in)
	if err != nil {
		return false, err
	}

	if cfg.Schedule == scheduleSpecific {
		delta := in.Now.Sub(cfg.At)
		return delta >= -specificTolerance && delta <= specificTolerance, nil
	}

	loc := cfg.loc
	if loc == nil {
		loc = time.UTC
	}
	now := in.Now.In(loc)
	if now.Hour() != cfg.Hour || now.Minute() != cfg.Minute {
		return false, nil
	}
	if cfg.Schedule == scheduleMonthly {
		// Days past the end of a short month fire on its last day.
		target := min(cfg.DayOfMonth, daysIn(now.Year(), now.Month()))
		return now.Day() == target, nil
	}
	return true, nil
}

func birthday(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[anniversaryConfig](in)
	if err != nil {
		return false, err
	}
	born, ok := parseDate(in.Context.Birthdate)
	if !ok {
		return false, nil
	}
	return isAnniversary(born, in.Now.AddDate(0, 0, cfg.DaysBefore)), nil
}

func accountAnniversary(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[anniversaryConfig](in)
	if err != nil {
		return false, err
	}
	registered, ok := parseDate(in.Context.RegistrationDate)
	if !ok {
		return false, nil
	}
	target := in.Now.AddDate(0, 0, cfg.DaysBefore)
	years := target.Year() - registered.Year()
	if years < 1 || !isAnniversary(registered, target) {
		return false, nil
	}
	return len(cfg.Years) == 0 || slices.Contains(cfg.Years, years), nil
}

// isAnniversary reports whether day falls on the month/day of date.
// February 29 is celebrated on February 28 in non-leap years.
func isAnniversary(date, day time.Time) bool {
	month, dom := date.Month(), date.Day()
	if month == time.February && dom == 29 && daysIn(day.Year(), time.February) == 28 {
		dom = 28
	}
	return day.Month() == month && day.Day() == dom
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
