package ruleengine

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

// bet_result event properties.
const (
	betResultKey = "result"
	winAmountKey = "winAmount"
	betWin       = "win"
	betLoss      = "loss"
)

// maxStreakScan caps how many bet results are read when a minimum bet filter
// makes the streak length independent of the row count.
const maxStreakScan = 1000

const day = 24 * time.Hour

func inactivity(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[inactivityConfig](in)
	if err != nil {
		return false, err
	}
	q := query(in, facts.EventLogin)
	q.Since = in.Now.Add(-time.Duration(cfg.Days) * day)
	n, err := events.CountEvents(ctx, q)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func eventMatch(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[eventConfig](in)
	if err != nil {
		return false, err
	}
	return in.Context.EventName == cfg.EventName, nil
}

func segmentTransition(action string) TriggerFunc {
	return func(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
		cfg, err := config[segmentConfig](in)
		if err != nil {
			return false, err
		}
		return in.Context.SegmentID == cfg.SegmentID && in.Context.Action == action, nil
	}
}

// loginStreak holds when the player's most recent ConsecutiveDays distinct
// login days are consecutive calendar days. Several logins on the same day
// count once.
func loginStreak(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[loginStreakConfig](in)
	if err != nil {
		return false, err
	}

	latestQ := query(in, facts.EventLogin)
	latestQ.Limit = 1
	latest, err := events.ListEvents(ctx, latestQ)
	if err != nil {
		return false, err
	}
	if len(latest) == 0 {
		return false, nil
	}

	lastDay := startOfDay(latest[0].OccurredAt)
	q := query(in, facts.EventLogin)
	q.Since = lastDay.AddDate(0, 0, -(cfg.ConsecutiveDays - 1))
	logins, err := events.ListEvents(ctx, q)
	if err != nil {
		return false, err
	}

	days := make(map[time.Time]struct{}, len(logins))
	for _, e := range logins {
		days[startOfDay(e.OccurredAt)] = struct{}{}
	}
	for i := range cfg.ConsecutiveDays {
		if _, ok := days[lastDay.AddDate(0, 0, -i)]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func betStreak(want string) TriggerFunc {
	return func(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
		cfg, err := config[betStreakConfig](in)
		if err != nil {
			return false, err
		}

		q := query(in, facts.EventBetResult)
		q.Limit = cfg.ConsecutiveCount
		if cfg.MinBetAmount > 0 {
			q.Limit = maxStreakScan
		}
		bets, err := events.ListEvents(ctx, q)
		if err != nil {
			return false, err
		}

		streak := 0
		for _, bet := range bets {
			if bet.Amount() < cfg.MinBetAmount {
				continue
			}
			if betOutcome(bet) != want {
				return false, nil
			}
			streak++
			if streak == cfg.ConsecutiveCount {
				return true, nil
			}
		}
		return false, nil
	}
}

func betOutcome(e facts.Event) string {
	switch strings.ToLower(e.String(betResultKey)) {
	case "win", "won":
		return betWin
	case "loss", "lose", "lost":
		return betLoss
	}
	if won, ok := e.Number(winAmountKey); ok {
		if won > 0 {
			return betWin
		}
		return betLoss
	}
	return ""
}

func firstDeposit(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
	if in.Context.EventName != facts.EventDepositSuccess {
		return false, nil
	}
	q := query(in, facts.EventDepositSuccess)
	q.Until = eventTime(in)
	n, err := events.CountEvents(ctx, q)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func multipleFailedDeposits(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[failedDepositsConfig](in)
	if err != nil {
		return false, err
	}
	q := query(in, facts.EventDepositFailed)
	q.Since = in.Now.Add(-time.Duration(cfg.WithinHours) * time.Hour)
	n, err := events.CountEvents(ctx, q)
	if err != nil {
		return false, err
	}
	return n >= int64(cfg.Count), nil
}

func gameSpecific(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[gameConfig](in)
	if err != nil {
		return false, err
	}
	if cfg.EventName != "" && in.Context.EventName != cfg.EventName {
		return false, nil
	}
	gameID := in.Context.GameID
	if gameID == "" {
		gameID, _ = in.Context.Properties["gameId"].(string)
	}
	return gameID != "" && slices.Contains(cfg.GameIDs, gameID), nil
}

func sessionDuration(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[sessionDurationConfig](in)
	if err != nil {
		return false, err
	}
	d := in.Context.SessionDuration
	return d != nil && *d >= cfg.MinMinutes, nil
}
