package action

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// NewFromConfig builds a Dispatcher with a handler for every configured
// delivery channel. Channels without a URL stay unregistered, so their
// actions are skipped.
func NewFromConfig(cfg *config.DeliveryConfig, logger *slog.Logger) *Dispatcher {
	validation.AssertNotNil(cfg, "action", "delivery config")

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	d := NewDispatcher(limiter, logger)

	client := &http.Client{Timeout: cfg.Timeout}
	webhooks := map[string]string{
		TypeSMS:          cfg.SMSWebhookURL,
		TypeAddBonus:     cfg.BonusWebhookURL,
		TypeAddFreeSpins: cfg.FreeSpinsWebhookURL,
	}
	for actionType, url := range webhooks {
		if url != "" {
			d.Register(actionType, NewWebhookHandler(url, cfg.WebhookToken, client))
		}
	}

	if cfg.TelegramURL != "" {
		d.Register(TypeTelegramMessage, NewTelegramHandler(cfg.TelegramURL, nil))
	}
	if cfg.EmailURL != "" {
		d.Register(TypeEmail, NewEmailHandler(cfg.EmailURL, nil))
	}
	return d
}
