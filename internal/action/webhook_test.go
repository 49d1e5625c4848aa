package action_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/action"
)

const bonusURL = "https://bonus.example.com/credit"

func newMockedClient() (*http.Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	return &http.Client{Transport: transport}, transport
}

func TestWebhookHandler_Handle(t *testing.T) {
	t.Parallel()

	t.Run("Should post the action envelope with bearer token", func(t *testing.T) {
		client, transport := newMockedClient()
		var captured *http.Request
		var body map[string]any
		transport.RegisterResponder(http.MethodPost, bonusURL, func(req *http.Request) (*http.Response, error) {
			captured = req
			raw, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(raw, &body)
			return httpmock.NewStringResponse(http.StatusAccepted, ""), nil
		})
		h := action.NewWebhookHandler(bonusURL, "s3cret", client)

		err := h.Handle(context.Background(), action.Request{
			ActionType: action.TypeAddBonus,
			PlayerID:   "p1",
			TenantID:   "t1",
			Payload:    json.RawMessage(`{"amount": 10, "currency": "EUR"}`),
		})

		require.NoError(t, err)
		require.NotNil(t, captured)
		assert.Equal(t, "Bearer s3cret", captured.Header.Get("Authorization"))
		assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
		assert.Equal(t, action.TypeAddBonus, captured.Header.Get("X-Valkyrie-Action"))
		assert.Equal(t, "p1", body["playerId"])
		assert.Equal(t, "t1", body["tenantId"])
		assert.Equal(t, map[string]any{"amount": 10.0, "currency": "EUR"}, body["payload"])
		assert.Equal(t, 1, transport.GetTotalCallCount())
	})

	t.Run("Should fail on non-2xx responses with the body excerpt", func(t *testing.T) {
		client, transport := newMockedClient()
		transport.RegisterResponder(http.MethodPost, bonusURL,
			httpmock.NewStringResponder(http.StatusUnprocessableEntity, `{"error":"player blocked"}`))
		h := action.NewWebhookHandler(bonusURL, "", client)

		err := h.Handle(context.Background(), action.Request{ActionType: action.TypeAddFreeSpins, PlayerID: "p1", TenantID: "t1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "422")
		assert.Contains(t, err.Error(), "player blocked")
	})

	t.Run("Should send an empty object when the variant has no payload", func(t *testing.T) {
		client, transport := newMockedClient()
		var body map[string]any
		transport.RegisterResponder(http.MethodPost, bonusURL, func(req *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(raw, &body)
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})
		h := action.NewWebhookHandler(bonusURL, "", client)

		require.NoError(t, h.Handle(context.Background(), action.Request{ActionType: action.TypeSMS}))
		assert.Equal(t, map[string]any{}, body["payload"])
	})

	t.Run("Should surface transport errors", func(t *testing.T) {
		client, _ := newMockedClient()
		h := action.NewWebhookHandler("https://unregistered.example.com/hook", "", client)

		err := h.Handle(context.Background(), action.Request{ActionType: action.TypeSMS})

		assert.ErrorContains(t, err, "webhook request failed")
	})
}
