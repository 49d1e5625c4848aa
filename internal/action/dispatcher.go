// Package action delivers rule variants to external collaborators: chat and
// e-mail notifications through shoutrrr, and SMS/bonus/free-spin credits
// through operator webhooks.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rafaeljc/valkyrie/internal/observability"
)

// Built-in action types.
const (
	TypeTelegramMessage = "SEND_TELEGRAM_MESSAGE"
	TypeEmail           = "SEND_EMAIL"
	TypeSMS             = "SEND_SMS"
	TypeAddBonus        = "ADD_BONUS"
	TypeAddFreeSpins    = "ADD_FREE_SPINS"
)

// ErrDeliveryFailed wraps every error returned by a handler.
var ErrDeliveryFailed = errors.New("action delivery failed")

// Request is one delivery. Payload is passed through untouched from the variant.
type Request struct {
	ActionType string
	PlayerID   string
	TenantID   string
	Payload    json.RawMessage
}

// Handler performs the external call for one action type.
type Handler interface {
	Handle(ctx context.Context, req Request) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req Request) error { return f(ctx, req) }

// Dispatcher routes an action type to its handler. Unregistered types are
// logged and treated as successful no-ops.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher. A nil limiter disables outbound throttling.
func NewDispatcher(limiter *rate.Limiter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		limiter:  limiter,
		logger:   logger,
	}
}

// Register binds a handler to an action type, replacing any previous one.
func (d *Dispatcher) Register(actionType string, h Handler) {
	if h == nil {
		panic("action: handler cannot be nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[actionType] = h
}

// Registered reports whether a handler exists for actionType.
func (d *Dispatcher) Registered(actionType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[actionType]
	return ok
}

// Dispatch implements ruleengine.ActionDispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, actionType, playerID, tenantID string, payload json.RawMessage) error {
	d.mu.RLock()
	h, ok := d.handlers[actionType]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("no handler for action type, skipping delivery",
			slog.String("action_type", actionType),
			slog.String("tenant_id", tenantID),
		)
		observability.ActionDispatchTotal.WithLabelValues(actionType, "skipped").Inc()
		return nil
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			observability.ActionDispatchTotal.WithLabelValues(actionType, "fail").Inc()
			return fmt.Errorf("%w: rate limiter: %w", ErrDeliveryFailed, err)
		}
	}

	start := time.Now()
	err := h.Handle(ctx, Request{ActionType: actionType, PlayerID: playerID, TenantID: tenantID, Payload: payload})
	observability.ActionDispatchDuration.WithLabelValues(actionType).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.ActionDispatchTotal.WithLabelValues(actionType, "fail").Inc()
		return fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, actionType, err)
	}
	observability.ActionDispatchTotal.WithLabelValues(actionType, "success").Inc()
	return nil
}
