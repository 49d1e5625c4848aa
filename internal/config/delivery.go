package config

import (
	"fmt"
	"time"
)

// DeliveryConfig configures the outbound channels used by action handlers.
// Channels left empty are not registered.
type DeliveryConfig struct {
	// Shoutrrr service URLs
	TelegramURL string `envconfig:"TELEGRAM_URL"`
	EmailURL    string `envconfig:"EMAIL_URL"`

	// Webhook endpoints
	SMSWebhookURL       string `envconfig:"SMS_WEBHOOK_URL"`
	BonusWebhookURL     string `envconfig:"BONUS_WEBHOOK_URL"`
	FreeSpinsWebhookURL string `envconfig:"FREE_SPINS_WEBHOOK_URL"`
	WebhookToken        string `envconfig:"WEBHOOK_TOKEN"`

	Timeout   time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"gt=0"`
	RateLimit float64       `envconfig:"RATE_LIMIT" default:"50" validate:"gte=0"`
	RateBurst int           `envconfig:"RATE_BURST" default:"10" validate:"min=1"`
}

// Validate checks webhook URLs.
func (c *DeliveryConfig) Validate() error {
	webhooks := map[string]string{
		"sms":        c.SMSWebhookURL,
		"bonus":      c.BonusWebhookURL,
		"free spins": c.FreeSpinsWebhookURL,
	}
	for name, raw := range webhooks {
		if raw == "" {
			continue
		}
		if _, err := parseAndValidateURL(raw, []string{"http", "https"}); err != nil {
			return fmt.Errorf("invalid %s webhook URL: %w", name, err)
		}
	}
	return nil
}

// Channels lists the configured delivery channels.
func (c *DeliveryConfig) Channels() []string {
	var channels []string
	if c.TelegramURL != "" {
		channels = append(channels, "telegram")
	}
	if c.EmailURL != "" {
		channels = append(channels, "email")
	}
	if c.SMSWebhookURL != "" {
		channels = append(channels, "sms")
	}
	if c.BonusWebhookURL != "" {
		channels = append(channels, "bonus")
	}
	if c.FreeSpinsWebhookURL != "" {
		channels = append(channels, "free_spins")
	}
	return channels
}
