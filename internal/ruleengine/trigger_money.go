package ruleengine

import (
	"context"
	"time"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

// periodStart maps a threshold period to the start of its trailing window.
// "total" has no lower bound.
func periodStart(now time.Time, period string) time.Time {
	switch period {
	case periodDaily:
		return now.Add(-day)
	case periodWeekly:
		return now.Add(-7 * day)
	case periodMonthly:
		return now.Add(-30 * day)
	default:
		return time.Time{}
	}
}

func amountThreshold(eventName string) TriggerFunc {
	return func(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
		cfg, err := config[thresholdConfig](in)
		if err != nil {
			return false, err
		}
		q := query(in, eventName)
		q.Since = periodStart(in.Now, cfg.Period)
		sum, err := events.SumAmount(ctx, q)
		if err != nil {
			return false, err
		}
		return sum >= cfg.Amount, nil
	}
}

func lowBalance(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[balanceConfig](in)
	if err != nil {
		return false, err
	}
	b := in.Context.Balance
	return b != nil && *b < cfg.Threshold, nil
}

func highBalance(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[balanceConfig](in)
	if err != nil {
		return false, err
	}
	b := in.Context.Balance
	return b != nil && *b >= cfg.Threshold, nil
}

func betSize(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[betSizeConfig](in)
	if err != nil {
		return false, err
	}
	amount := in.Context.Amount
	if amount == nil {
		return false, nil
	}
	if cfg.MinAmount != nil && *amount < *cfg.MinAmount {
		return false, nil
	}
	if cfg.MaxAmount != nil && *amount > *cfg.MaxAmount {
		return false, nil
	}
	return true, nil
}

// rtpThreshold compares the player's return-to-player percentage
// (won / staked * 100) over the trailing period with the threshold.
func rtpThreshold(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[rtpConfig](in)
	if err != nil {
		return false, err
	}
	q := query(in, facts.EventBetResult)
	q.Since = in.Now.Add(-time.Duration(cfg.PeriodDays) * day)
	bets, err := events.ListEvents(ctx, q)
	if err != nil {
		return false, err
	}
	if len(bets) < cfg.MinBets {
		return false, nil
	}

	var staked, won float64
	for _, bet := range bets {
		staked += bet.Amount()
		w, _ := bet.Number(winAmountKey)
		won += w
	}
	if staked <= 0 {
		return false, nil
	}

	rtp := won / staked * 100
	if cfg.Direction == directionAbove {
		return rtp > cfg.Threshold, nil
	}
	return rtp < cfg.Threshold, nil
}

func bonusExpiry(_ context.Context, _ facts.EventReader, in TriggerInput) (bool, error) {
	cfg, err := config[bonusExpiryConfig](in)
	if err != nil {
		return false, err
	}
	exp := in.Context.BonusExpiresAt
	if exp == nil {
		return false, nil
	}
	remaining := exp.Sub(in.Now)
	return remaining > 0 && remaining <= time.Duration(cfg.HoursBefore*float64(time.Hour)), nil
}
