package billingapi

import (
	"github.com/dmitrymomot/billable/handler"
	"github.com/dmitrymomot/billable/pkg/billing"
)

type ownerRequest struct {
	OwnerID string `path:"owner"`
}

type customerRequest struct {
	OwnerID string `path:"owner"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

type subscribeRequest struct {
	OwnerID        string `path:"owner"`
	IdempotencyKey string `header:"Idempotency-Key"`
	Email          string `json:"email"`
	Plan           string `json:"plan"`
	Token          string `json:"token"`
	Coupon         string `json:"coupon"`
	TrialDays      *int   `json:"trial_days"`
	SkipTrial      bool   `json:"skip_trial"`
	Quantity       int64  `json:"quantity"`
}

func (r subscribeRequest) validate() error {
	v := handler.NewValidationError()
	if r.Plan == "" {
		v.Add("plan", "is required")
	}
	if r.TrialDays != nil && *r.TrialDays < 0 {
		v.Add("trial_days", "must not be negative")
	}
	if r.TrialDays != nil && r.SkipTrial {
		v.Add("skip_trial", "cannot be combined with trial_days")
	}
	if r.Quantity < 0 {
		v.Add("quantity", "must not be negative")
	}
	if v.IsEmpty() {
		return nil
	}
	return v
}

func (r subscribeRequest) options() *billing.SubscribeOptions {
	opts := billing.NewSubscribeOptions().Coupon(billing.CouponCode(r.Coupon))
	if r.TrialDays != nil {
		opts.Trial(*r.TrialDays)
	}
	if r.SkipTrial {
		opts.SkipTrial()
	}
	if r.Quantity > 0 {
		opts.Quantity(r.Quantity)
	}
	return opts
}

type cancelRequest struct {
	OwnerID string `path:"owner"`
	Now     bool   `query:"now"`
}

type swapRequest struct {
	OwnerID string `path:"owner"`
	Plan    string `json:"plan"`
}

type cardRequest struct {
	OwnerID string `path:"owner"`
	Token   string `json:"token"`
}

type chargeRequest struct {
	OwnerID        string            `path:"owner"`
	IdempotencyKey string            `header:"Idempotency-Key"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	Token          string            `json:"token"`
	Coupon         string            `json:"coupon"`
	AmountOff      int64             `json:"amount_off"`
	FractionOff    float64           `json:"fraction_off"`
	Metadata       map[string]string `json:"metadata"`
}

func (r chargeRequest) validate() error {
	v := handler.NewValidationError()
	if r.Amount <= 0 {
		v.Add("amount", "must be positive")
	}
	discounts := 0
	for _, set := range []bool{r.Coupon != "", r.AmountOff != 0, r.FractionOff != 0} {
		if set {
			discounts++
		}
	}
	if discounts > 1 {
		v.Add("coupon", "only one of coupon, amount_off and fraction_off may be set")
	}
	if r.AmountOff < 0 {
		v.Add("amount_off", "must not be negative")
	}
	if r.FractionOff < 0 || r.FractionOff > 1 {
		v.Add("fraction_off", "must be between 0 and 1")
	}
	if v.IsEmpty() {
		return nil
	}
	return v
}

func (r chargeRequest) options() *billing.ChargeOptions {
	opts := billing.NewChargeOptions().
		Token(r.Token).
		Currency(r.Currency).
		Description(r.Description)
	for k, val := range r.Metadata {
		opts.Metadata(k, val)
	}
	switch {
	case r.Coupon != "":
		opts.Coupon(billing.CouponCode(r.Coupon))
	case r.AmountOff != 0:
		opts.Coupon(billing.FlatCoupon(r.AmountOff))
	case r.FractionOff != 0:
		opts.Coupon(billing.FractionCoupon(r.FractionOff))
	}
	return opts
}

type resultResponse struct {
	OK     bool            `json:"ok"`
	Status *billing.Status `json:"status,omitempty"`
}

type customerResponse struct {
	CustomerID string `json:"customer_id"`
}

type webhookResponse struct {
	EventID     string              `json:"event_id,omitempty"`
	Kind        string              `json:"kind"`
	Disposition billing.Disposition `json:"disposition"`
}
