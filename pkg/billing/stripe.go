package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/charge"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProcessor implements Processor with the Stripe API.
// The API key is process-wide in stripe-go, so only one StripeProcessor should be active.
type StripeProcessor struct{}

func NewStripeProcessor(apiKey string) (*StripeProcessor, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	stripe.Key = apiKey
	return &StripeProcessor{}, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if params.Description != "" {
		cp.Description = stripe.String(params.Description)
	}
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	if params.Token != "" {
		cp.Source = stripe.String(params.Token)
	}

	c, err := customer.New(cp)
	if err != nil {
		return nil, stripeError(err)
	}
	return &Customer{ID: c.ID}, nil
}

func (p *StripeProcessor) CreateSubscription(ctx context.Context, params SubscriptionParams) (*ProcessorSubscription, error) {
	item := &stripe.SubscriptionItemsParams{Price: stripe.String(params.Plan)}
	if params.Quantity > 0 {
		item.Quantity = stripe.Int64(params.Quantity)
	}
	sp := &stripe.SubscriptionParams{
		Customer: stripe.String(params.CustomerID),
		Items:    []*stripe.SubscriptionItemsParams{item},
	}
	sp.Context = ctx
	switch {
	case params.TrialEndNow:
		sp.TrialEndNow = stripe.Bool(true)
	case params.TrialPeriodDays > 0:
		sp.TrialPeriodDays = stripe.Int64(params.TrialPeriodDays)
	}
	if params.Coupon != "" {
		sp.Discounts = []*stripe.SubscriptionDiscountParams{{Coupon: stripe.String(params.Coupon)}}
	}
	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}

	sub, err := subscription.New(sp)
	if err != nil {
		return nil, stripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProcessor) RetrieveSubscription(ctx context.Context, id string) (*ProcessorSubscription, error) {
	sp := &stripe.SubscriptionParams{}
	sp.Context = ctx
	sub, err := subscription.Get(id, sp)
	if err != nil {
		return nil, stripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProcessor) ModifySubscription(ctx context.Context, id string, params ModifySubscriptionParams) (*ProcessorSubscription, error) {
	sp := &stripe.SubscriptionParams{}
	sp.Context = ctx
	if params.CancelAtPeriodEnd != nil {
		sp.CancelAtPeriodEnd = stripe.Bool(*params.CancelAtPeriodEnd)
	}
	for _, it := range params.Items {
		ip := &stripe.SubscriptionItemsParams{ID: stripe.String(it.ID)}
		if it.Plan != "" {
			ip.Price = stripe.String(it.Plan)
		}
		sp.Items = append(sp.Items, ip)
	}

	sub, err := subscription.Update(id, sp)
	if err != nil {
		return nil, stripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProcessor) DeleteSubscription(ctx context.Context, id string, atPeriodEnd bool) (*ProcessorSubscription, error) {
	var (
		sub *stripe.Subscription
		err error
	)
	if atPeriodEnd {
		sp := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		sp.Context = ctx
		sub, err = subscription.Update(id, sp)
	} else {
		cp := &stripe.SubscriptionCancelParams{}
		cp.Context = ctx
		sub, err = subscription.Cancel(id, cp)
	}
	if err != nil {
		if isStripeNoActiveSubscription(err) {
			return nil, errors.Join(ErrNoActiveSubscription, err)
		}
		return nil, stripeError(err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProcessor) CreateCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	cp := &stripe.ChargeParams{
		Amount:   stripe.Int64(params.Amount),
		Currency: stripe.String(strings.ToLower(params.Currency)),
	}
	cp.Context = ctx
	if params.Description != "" {
		cp.Description = stripe.String(params.Description)
	}
	if params.Source != "" {
		if err := cp.SetSource(params.Source); err != nil {
			return nil, errors.Join(ErrProcessorFailure, err)
		}
	} else {
		cp.Customer = stripe.String(params.CustomerID)
	}
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		cp.SetIdempotencyKey(params.IdempotencyKey)
	}

	ch, err := charge.New(cp)
	if err != nil {
		return nil, stripeError(err)
	}
	return &Charge{ID: ch.ID, Amount: ch.Amount, Status: string(ch.Status)}, nil
}

func (p *StripeProcessor) ModifyCustomer(ctx context.Context, id string, params CustomerParams) error {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if params.Token != "" {
		cp.Source = stripe.String(params.Token)
	}
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	if _, err := customer.Update(id, cp); err != nil {
		return stripeError(err)
	}
	return nil
}

func (p *StripeProcessor) RetrieveCoupon(ctx context.Context, id string) (*CouponTerms, error) {
	cp := &stripe.CouponParams{}
	cp.Context = ctx
	c, err := coupon.Get(id, cp)
	if err != nil {
		return nil, stripeError(err)
	}
	return &CouponTerms{ID: c.ID, PercentOff: c.PercentOff, AmountOff: c.AmountOff}, nil
}

func fromStripeSubscription(sub *stripe.Subscription) *ProcessorSubscription {
	out := &ProcessorSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		TrialEnd:          sub.TrialEnd,
		EndedAt:           sub.EndedAt,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, it := range sub.Items.Data {
			item := ProcessorSubscriptionItem{ID: it.ID, Quantity: it.Quantity}
			if it.Price != nil {
				item.PlanID = it.Price.ID
				item.PlanName = it.Price.Nickname
			}
			if it.CurrentPeriodEnd > out.CurrentPeriodEnd {
				out.CurrentPeriodEnd = it.CurrentPeriodEnd
			}
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// stripeError classifies a stripe-go error into the package sentinels.
func stripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return errors.Join(ErrProcessorUnavailable, err)
	}

	msg := strings.ToLower(se.Msg)
	param := strings.ToLower(se.Param)
	switch {
	case se.Code == stripe.ErrorCodeResourceMissing && (strings.Contains(msg, "no such price") ||
		strings.Contains(msg, "no such plan") || strings.Contains(param, "price") || strings.Contains(param, "plan")):
		return errors.Join(ErrPlanNotFound, err)
	case se.Code == stripe.ErrorCodeResourceMissing && (strings.Contains(msg, "no such customer") ||
		param == "customer"):
		return errors.Join(ErrCustomerNotFound, err)
	case se.Code == stripe.ErrorCodeResourceMissing && (strings.Contains(msg, "no such coupon") ||
		strings.Contains(param, "coupon") || strings.Contains(param, "discounts")):
		return errors.Join(ErrInvalidCoupon, err)
	case se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError:
		return errors.Join(ErrProcessorUnavailable, err)
	case se.Type == stripe.ErrorTypeCard || se.HTTPStatusCode == http.StatusPaymentRequired:
		return errors.Join(ErrPaymentDeclined, err)
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		return errors.Join(ErrProcessorFailure, err)
	case se.HTTPStatusCode >= http.StatusBadRequest:
		return errors.Join(ErrProcessorRejected, err)
	default:
		return errors.Join(ErrProcessorFailure, err)
	}
}

func isStripeNoActiveSubscription(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	msg := strings.ToLower(se.Msg)
	return (se.Code == stripe.ErrorCodeResourceMissing && strings.Contains(msg, "no such subscription")) ||
		strings.Contains(msg, "canceled subscription")
}

// StripeWebhookParser verifies Stripe-Signature headers and decodes subscription events.
type StripeWebhookParser struct {
	secret string
}

func NewStripeWebhookParser(secret string) (*StripeWebhookParser, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &StripeWebhookParser{secret: secret}, nil
}

func (p *StripeWebhookParser) SignatureHeader() string { return "Stripe-Signature" }

// stripeSubscriptionPayload is the subset of a subscription object carried in events.
type stripeSubscriptionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	TrialEnd          int64             `json:"trial_end"`
	EndedAt           int64             `json:"ended_at"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			ID               string `json:"id"`
			Quantity         int64  `json:"quantity"`
			CurrentPeriodEnd int64  `json:"current_period_end"`
			Price            struct {
				ID       string `json:"id"`
				Nickname string `json:"nickname"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p *StripeWebhookParser) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}

	ev := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: ParseEventKind(string(event.Type)),
	}
	if ev.Kind == EventUnknown || event.Data == nil {
		return ev, nil
	}

	var raw stripeSubscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}

	sub := &ProcessorSubscription{
		ID:                raw.ID,
		CustomerID:        raw.Customer,
		Status:            raw.Status,
		TrialEnd:          raw.TrialEnd,
		CurrentPeriodEnd:  raw.CurrentPeriodEnd,
		EndedAt:           raw.EndedAt,
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
	}
	for _, it := range raw.Items.Data {
		sub.Items = append(sub.Items, ProcessorSubscriptionItem{
			ID:       it.ID,
			PlanID:   it.Price.ID,
			PlanName: it.Price.Nickname,
			Quantity: it.Quantity,
		})
		if it.CurrentPeriodEnd > sub.CurrentPeriodEnd {
			sub.CurrentPeriodEnd = it.CurrentPeriodEnd
		}
	}
	ev.CustomerID = raw.Customer
	ev.OwnerID = raw.Metadata[OwnerIDKey]
	ev.Subscription = sub
	return ev, nil
}
