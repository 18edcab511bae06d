package billing

import "maps"

// SubscribeOptions carries the per-request subscribe settings.
// Build it with NewSubscribeOptions and pass it to exactly one Subscribe call.
type SubscribeOptions struct {
	trialDays int
	trialSet  bool
	skipTrial bool
	coupon    Coupon
	quantity  int64
}

func NewSubscribeOptions() *SubscribeOptions {
	return &SubscribeOptions{}
}

// Trial sets the trial length in days for the new subscription.
// It replaces the catalog trial of the plan; Trial(0) subscribes without one.
func (o *SubscribeOptions) Trial(days int) *SubscribeOptions {
	o.trialDays = max(days, 0)
	o.trialSet = true
	return o
}

// SkipTrial bills immediately, overriding Trial and any trial on the processor plan.
func (o *SubscribeOptions) SkipTrial() *SubscribeOptions {
	o.skipTrial = true
	return o
}

func (o *SubscribeOptions) Coupon(c Coupon) *SubscribeOptions {
	o.coupon = c
	return o
}

func (o *SubscribeOptions) Quantity(n int64) *SubscribeOptions {
	o.quantity = n
	return o
}

func (o *SubscribeOptions) orDefault() SubscribeOptions {
	if o == nil {
		return SubscribeOptions{}
	}
	return *o
}

// ChargeOptions carries the per-request charge settings.
type ChargeOptions struct {
	token       string
	currency    string
	description string
	metadata    map[string]string
	coupon      Coupon
}

func NewChargeOptions() *ChargeOptions {
	return &ChargeOptions{}
}

// Token charges this payment source instead of the stored customer.
func (o *ChargeOptions) Token(token string) *ChargeOptions {
	o.token = token
	return o
}

func (o *ChargeOptions) Currency(code string) *ChargeOptions {
	o.currency = code
	return o
}

func (o *ChargeOptions) Description(d string) *ChargeOptions {
	o.description = d
	return o
}

func (o *ChargeOptions) Metadata(key, value string) *ChargeOptions {
	if o.metadata == nil {
		o.metadata = make(map[string]string)
	}
	o.metadata[key] = value
	return o
}

func (o *ChargeOptions) Coupon(c Coupon) *ChargeOptions {
	o.coupon = c
	return o
}

func (o *ChargeOptions) orDefault() ChargeOptions {
	if o == nil {
		return ChargeOptions{}
	}
	c := *o
	c.metadata = maps.Clone(o.metadata)
	return c
}
