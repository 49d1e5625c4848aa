package facts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/rafaeljc/valkyrie/internal/clock"
)

// Name identifies a computable fact.
type Name string

// Built-in facts. The set is open: callers may Register more.
const (
	LoginCount          Name = "loginCount"
	TotalDepositAmount  Name = "totalDepositAmount"
	DepositCount        Name = "depositCount"
	DaysSinceLastLogin  Name = "daysSinceLastLogin"
	WithdrawalAmount    Name = "withdrawalAmount"
	FailedDepositCount  Name = "failedDepositCount"
	BetCount            Name = "betCount"
	TotalBetAmount      Name = "totalBetAmount"
	SessionCount        Name = "sessionCount"
	AvgEventsPerSession Name = "avgEventsPerSession"
)

const (
	// NeverActiveDays is returned by DaysSinceLastLogin when no login was ever recorded.
	NeverActiveDays = 999

	// DefaultLoginWindowDays is the trailing window used by LoginCount when no period is given.
	DefaultLoginWindowDays = 30
)

// ErrUnknownFact is returned by Compute for names with no registered function.
var ErrUnknownFact = errors.New("unknown fact")

// Request carries the parameters of a single fact computation.
type Request struct {
	TenantID string
	PlayerID string
	// PeriodInDays bounds the aggregation to a trailing window. Nil means the fact's default.
	PeriodInDays *int
	// Now is the evaluation instant, taken from the Provider's clock.
	Now time.Time
}

// Func computes one fact. It must not mutate state.
type Func func(ctx context.Context, events EventReader, req Request) (float64, error)

// Provider resolves fact names to values for a (player, tenant) pair.
type Provider struct {
	events EventReader
	clock  clock.Clock
	logger *slog.Logger
	funcs  map[Name]Func
}

// NewProvider creates a Provider with the built-in facts registered.
// If clk is nil, clock.Real() is used; if logger is nil, slog.Default() is used.
func NewProvider(events EventReader, clk clock.Clock, logger *slog.Logger) *Provider {
	if events == nil {
		panic("facts: event reader cannot be nil")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		events: events,
		clock:  clk,
		logger: logger,
		funcs: map[Name]Func{
			LoginCount:          loginCount,
			TotalDepositAmount:  sumOf(EventDepositSuccess),
			DepositCount:        countOf(EventDepositSuccess),
			DaysSinceLastLogin:  daysSinceLastLogin,
			WithdrawalAmount:    sumOf(EventWithdrawal),
			FailedDepositCount:  countOf(EventDepositFailed),
			BetCount:            countOf(EventBetResult),
			TotalBetAmount:      sumOf(EventBetResult),
			SessionCount:        countOf(EventSessionStart),
			AvgEventsPerSession: avgEventsPerSession,
		},
	}
}

// Register adds or replaces a fact. It is not safe to call concurrently with Compute.
func (p *Provider) Register(name Name, fn Func) {
	p.funcs[name] = fn
}

// Names returns the registered fact names in lexical order.
func (p *Provider) Names() []Name {
	names := make([]Name, 0, len(p.funcs))
	for n := range p.funcs {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Compute evaluates the named fact. Unknown names return ErrUnknownFact;
// callers must treat that as "cannot match", never as a crash.
func (p *Provider) Compute(ctx context.Context, name Name, playerID, tenantID string, periodInDays *int) (float64, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFact, name)
	}

	value, err := fn(ctx, p.events, Request{
		TenantID:     tenantID,
		PlayerID:     playerID,
		PeriodInDays: periodInDays,
		Now:          p.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compute fact %q: %w", name, err)
	}

	p.logger.Debug("fact computed",
		slog.String("fact", string(name)),
		slog.String("player_id", playerID),
		slog.Float64("value", value),
	)
	return value, nil
}

// Since returns the lower bound of a trailing window of days ending at now.
// A nil or non-positive period yields the zero time (unbounded).
func Since(now time.Time, periodInDays *int) time.Time {
	if periodInDays == nil || *periodInDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -*periodInDays)
}

func (r Request) query(names ...string) Query {
	return Query{
		TenantID: r.TenantID,
		PlayerID: r.PlayerID,
		Names:    names,
		Since:    Since(r.Now, r.PeriodInDays),
	}
}

func countOf(eventName string) Func {
	return func(ctx context.Context, events EventReader, req Request) (float64, error) {
		n, err := events.CountEvents(ctx, req.query(eventName))
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
}

func sumOf(eventName string) Func {
	return func(ctx context.Context, events EventReader, req Request) (float64, error) {
		return events.SumAmount(ctx, req.query(eventName))
	}
}

func loginCount(ctx context.Context, events EventReader, req Request) (float64, error) {
	if req.PeriodInDays == nil {
		days := DefaultLoginWindowDays
		req.PeriodInDays = &days
	}
	return countOf(EventLogin)(ctx, events, req)
}

func daysSinceLastLogin(ctx context.Context, events EventReader, req Request) (float64, error) {
	q := req.query(EventLogin)
	q.Since = time.Time{}
	q.Limit = 1

	last, err := events.ListEvents(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(last) == 0 {
		return NeverActiveDays, nil
	}
	return math.Floor(req.Now.Sub(last[0].OccurredAt).Hours() / 24), nil
}

// avgEventsPerSession is defined as 0 for players with no recorded session.
func avgEventsPerSession(ctx context.Context, events EventReader, req Request) (float64, error) {
	sessions, err := events.CountEvents(ctx, req.query(EventSessionStart))
	if err != nil {
		return 0, err
	}
	if sessions == 0 {
		return 0, nil
	}
	total, err := events.CountEvents(ctx, req.query())
	if err != nil {
		return 0, err
	}
	return float64(total) / float64(sessions), nil
}
