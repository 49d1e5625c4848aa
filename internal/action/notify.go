package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// SendFunc delivers one message through a shoutrrr service URL.
type SendFunc func(serviceURL, message string, params types.Params) error

// ShoutrrrSend is the production SendFunc.
func ShoutrrrSend(serviceURL, message string, params types.Params) error {
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return fmt.Errorf("invalid notification URL: %w", err)
	}
	return errors.Join(sender.Send(message, &params)...)
}

// NotifyHandler sends a templated message to a per-player recipient through a
// shoutrrr service. The recipient is appended to the configured base URL as
// the recipientParam query parameter (e.g. "chats" for Telegram, "toaddresses"
// for SMTP).
type NotifyHandler struct {
	baseURL        string
	recipientParam string
	send           SendFunc
}

// notifyPayload is the variant payload of SEND_TELEGRAM_MESSAGE and SEND_EMAIL.
type notifyPayload struct {
	// To is the chat ID or e-mail address. It supports the placeholders below.
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// NewTelegramHandler creates a handler for telegram://token@telegram URLs.
func NewTelegramHandler(baseURL string, send SendFunc) *NotifyHandler {
	return newNotifyHandler(baseURL, "chats", send)
}

// NewEmailHandler creates a handler for smtp:// URLs.
func NewEmailHandler(baseURL string, send SendFunc) *NotifyHandler {
	return newNotifyHandler(baseURL, "toaddresses", send)
}

func newNotifyHandler(baseURL, recipientParam string, send SendFunc) *NotifyHandler {
	if send == nil {
		send = ShoutrrrSend
	}
	return &NotifyHandler{baseURL: baseURL, recipientParam: recipientParam, send: send}
}

// Handle implements Handler.
func (h *NotifyHandler) Handle(ctx context.Context, req Request) error {
	var p notifyPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return fmt.Errorf("invalid %s payload: %w", req.ActionType, err)
	}
	if p.Message == "" {
		return fmt.Errorf("%s payload has no message", req.ActionType)
	}

	expand := placeholders(req)
	serviceURL, err := withRecipient(h.baseURL, h.recipientParam, expand.Replace(p.To))
	if err != nil {
		return err
	}

	params := types.Params{}
	if p.Subject != "" {
		params["title"] = expand.Replace(p.Subject)
	}

	// shoutrrr has no context support; honor cancellation before the call.
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.send(serviceURL, expand.Replace(p.Message), params)
}

func withRecipient(baseURL, param, recipient string) (string, error) {
	if recipient == "" {
		return baseURL, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid notification URL: %w", err)
	}
	q := u.Query()
	q.Set(param, recipient)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// placeholders expands {playerId} and {tenantId} in payload strings.
func placeholders(req Request) *strings.Replacer {
	return strings.NewReplacer("{playerId}", req.PlayerID, "{tenantId}", req.TenantID)
}
