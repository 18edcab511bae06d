package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleWebhookParser verifies Paddle-Signature headers and decodes subscription events.
type PaddleWebhookParser struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleWebhookParser(secret string) (*PaddleWebhookParser, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &PaddleWebhookParser{verifier: paddle.NewWebhookVerifier(secret)}, nil
}

func (p *PaddleWebhookParser) SignatureHeader() string { return "Paddle-Signature" }

type paddleEnvelope struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Data      paddleSubscription `json:"data"`
}

type paddleSubscription struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	CanceledAt string `json:"canceled_at"`
	Items      []struct {
		Quantity int64 `json:"quantity"`
		Price    struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"price"`
		TrialDates *struct {
			EndsAt string `json:"ends_at"`
		} `json:"trial_dates"`
	} `json:"items"`
	CurrentBillingPeriod *struct {
		EndsAt string `json:"ends_at"`
	} `json:"current_billing_period"`
	ScheduledChange *struct {
		Action      string `json:"action"`
		EffectiveAt string `json:"effective_at"`
	} `json:"scheduled_change"`
	CustomData map[string]any `json:"custom_data"`
}

// ParseWebhook verifies the payload signature with the Paddle SDK, then decodes it.
func (p *PaddleWebhookParser) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	req.Header.Set(p.SignatureHeader(), signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	if !valid {
		return nil, ErrInvalidWebhook
	}

	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}

	ev := &WebhookEvent{
		ID:   env.EventID,
		Type: env.EventType,
		Kind: ParseEventKind(env.EventType),
	}
	if ev.Kind == EventUnknown {
		return ev, nil
	}

	data := env.Data
	sub := &ProcessorSubscription{
		ID:         data.ID,
		CustomerID: data.CustomerID,
		Status:     data.Status,
	}
	for _, it := range data.Items {
		sub.Items = append(sub.Items, ProcessorSubscriptionItem{
			PlanID:   it.Price.ID,
			PlanName: it.Price.Name,
			Quantity: it.Quantity,
		})
		if it.TrialDates != nil {
			sub.TrialEnd = max(sub.TrialEnd, paddleUnix(it.TrialDates.EndsAt))
		}
	}
	if data.CurrentBillingPeriod != nil {
		sub.CurrentPeriodEnd = paddleUnix(data.CurrentBillingPeriod.EndsAt)
	}
	if data.ScheduledChange != nil && data.ScheduledChange.Action == "cancel" {
		sub.CancelAtPeriodEnd = true
		if at := paddleUnix(data.ScheduledChange.EffectiveAt); at > 0 {
			sub.CurrentPeriodEnd = at
		}
	}
	if data.Status == "canceled" {
		sub.EndedAt = paddleUnix(data.CanceledAt)
	}

	ev.CustomerID = sub.CustomerID
	ev.OwnerID = paddleOwnerID(data.CustomData)
	ev.Subscription = sub
	return ev, nil
}

// paddleOwnerID reads the owner id set on the checkout transaction.
// Older checkouts stored it under customer_id.
func paddleOwnerID(data map[string]any) string {
	for _, key := range []string{OwnerIDKey, "customer_id"} {
		if id, ok := data[key].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

func paddleUnix(ts string) int64 {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	return t.Unix()
}
