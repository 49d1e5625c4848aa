package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of a failed response is copied into the error.
const maxErrorBody = 512

// WebhookHandler posts the action to an operator endpoint that performs the
// actual credit or message (SMS gateways, bonus engines, game providers).
type WebhookHandler struct {
	url    string
	token  string
	client *http.Client
}

// webhookBody is the JSON document posted to the operator endpoint.
type webhookBody struct {
	ActionType string          `json:"actionType"`
	TenantID   string          `json:"tenantId"`
	PlayerID   string          `json:"playerId"`
	Payload    json.RawMessage `json:"payload"`
	SentAt     time.Time       `json:"sentAt"`
}

// NewWebhookHandler creates a handler posting to url. A non-empty token is
// sent as a bearer credential. A nil client uses one with a 10s timeout.
func NewWebhookHandler(url, token string, client *http.Client) *WebhookHandler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookHandler{url: url, token: token, client: client}
}

// Handle implements Handler. Any non-2xx response is a delivery failure.
func (h *WebhookHandler) Handle(ctx context.Context, req Request) error {
	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(webhookBody{
		ActionType: req.ActionType,
		TenantID:   req.TenantID,
		PlayerID:   req.PlayerID,
		Payload:    payload,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Valkyrie-Action", req.ActionType)
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
