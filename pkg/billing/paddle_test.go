package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/billing"
)

const paddleSecret = "pdl_ntfset_test_secret"

func signPaddle(secret, payload string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":" + payload))
	return "ts=" + ts + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNewPaddleWebhookParser(t *testing.T) {
	t.Parallel()

	_, err := billing.NewPaddleWebhookParser("")
	assert.ErrorIs(t, err, billing.ErrMissingWebhookSecret)

	p, err := billing.NewPaddleWebhookParser(paddleSecret)
	require.NoError(t, err)
	assert.Equal(t, "Paddle-Signature", p.SignatureHeader())
}

func TestPaddleWebhookParser_ParseWebhook(t *testing.T) {
	t.Parallel()

	p, err := billing.NewPaddleWebhookParser(paddleSecret)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("scheduled cancellation", func(t *testing.T) {
		t.Parallel()
		payload := `{
			"event_id": "evt_01",
			"event_type": "subscription.updated",
			"data": {
				"id": "sub_01",
				"status": "active",
				"customer_id": "ctm_01",
				"items": [{"quantity": 1, "price": {"id": "pri_pro", "name": "Pro"}}],
				"current_billing_period": {"starts_at": "2025-03-01T00:00:00Z", "ends_at": "2025-04-01T00:00:00Z"},
				"scheduled_change": {"action": "cancel", "effective_at": "2025-04-01T00:00:00Z"}
			}
		}`

		ev, err := p.ParseWebhook(ctx, []byte(payload), signPaddle(paddleSecret, payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_01", ev.ID)
		assert.Equal(t, billing.EventSubscriptionUpdated, ev.Kind)
		assert.Equal(t, "ctm_01", ev.CustomerID)
		require.NotNil(t, ev.Subscription)
		assert.True(t, ev.Subscription.CancelAtPeriodEnd)
		assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).Unix(), ev.Subscription.CurrentPeriodEnd)
		assert.Equal(t, "pri_pro", ev.Subscription.FirstItem().PlanID)
		assert.Equal(t, "Pro", ev.Subscription.FirstItem().PlanName)
	})

	t.Run("created with owner in custom data", func(t *testing.T) {
		t.Parallel()
		payload := `{
			"event_id": "evt_05",
			"event_type": "subscription.created",
			"data": {
				"id": "sub_02",
				"status": "active",
				"customer_id": "ctm_02",
				"custom_data": {"owner_id": "acme"},
				"items": [{"quantity": 2, "price": {"id": "pri_team", "name": "Team"}}]
			}
		}`

		ev, err := p.ParseWebhook(ctx, []byte(payload), signPaddle(paddleSecret, payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionCreated, ev.Kind)
		assert.Equal(t, "ctm_02", ev.CustomerID)
		assert.Equal(t, "acme", ev.OwnerID)
		assert.Equal(t, int64(2), ev.Subscription.FirstItem().Quantity)
	})

	t.Run("canceled with legacy custom data key", func(t *testing.T) {
		t.Parallel()
		payload := `{
			"event_id": "evt_02",
			"event_type": "subscription.canceled",
			"data": {
				"id": "sub_01",
				"status": "canceled",
				"customer_id": "ctm_01",
				"canceled_at": "2025-03-05T10:00:00Z",
				"custom_data": {"customer_id": "owner-legacy"},
				"items": [{"quantity": 1, "price": {"id": "pri_pro"}, "trial_dates": {"ends_at": "2025-03-10T00:00:00Z"}}]
			}
		}`

		ev, err := p.ParseWebhook(ctx, []byte(payload), signPaddle(paddleSecret, payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionDeleted, ev.Kind)
		assert.Equal(t, "ctm_01", ev.CustomerID)
		assert.Equal(t, "owner-legacy", ev.OwnerID)
		assert.Equal(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC).Unix(), ev.Subscription.EndedAt)
		assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).Unix(), ev.Subscription.TrialEnd)
	})

	t.Run("unsupported event", func(t *testing.T) {
		t.Parallel()
		payload := `{"event_id":"evt_03","event_type":"transaction.completed","data":{"id":"txn_01"}}`

		ev, err := p.ParseWebhook(ctx, []byte(payload), signPaddle(paddleSecret, payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventUnknown, ev.Kind)
		assert.Nil(t, ev.Subscription)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		payload := `{"event_id":"evt_04","event_type":"subscription.canceled","data":{}}`

		_, err := p.ParseWebhook(ctx, []byte(payload), signPaddle("other", payload))
		assert.ErrorIs(t, err, billing.ErrInvalidWebhook)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		_, err := p.ParseWebhook(ctx, []byte(`{}`), "")
		assert.ErrorIs(t, err, billing.ErrInvalidWebhook)
	})
}
