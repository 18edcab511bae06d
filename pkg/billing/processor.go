package billing

import (
	"context"
	"time"
)

// Processor is the payment processor contract consumed by the Service.
// Implementations translate their native errors into ErrPlanNotFound,
// ErrCustomerNotFound, ErrNoActiveSubscription and ErrProcessorUnavailable
// where applicable, so the Service can classify failures.
type Processor interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*ProcessorSubscription, error)
	RetrieveSubscription(ctx context.Context, id string) (*ProcessorSubscription, error)
	ModifySubscription(ctx context.Context, id string, params ModifySubscriptionParams) (*ProcessorSubscription, error)
	// DeleteSubscription cancels the subscription, immediately unless atPeriodEnd.
	// Returns ErrNoActiveSubscription when there is nothing left to cancel.
	DeleteSubscription(ctx context.Context, id string, atPeriodEnd bool) (*ProcessorSubscription, error)
	CreateCharge(ctx context.Context, params ChargeParams) (*Charge, error)
	ModifyCustomer(ctx context.Context, id string, params CustomerParams) error
	RetrieveCoupon(ctx context.Context, id string) (*CouponTerms, error)
}

type CustomerParams struct {
	Description string
	Email       string
	Token       string
}

type Customer struct {
	ID string
}

type SubscriptionParams struct {
	CustomerID      string
	Plan            string // processor plan/price id
	Quantity        int64
	TrialPeriodDays int64
	TrialEndNow     bool
	Coupon          string
	IdempotencyKey  string
}

type ModifySubscriptionParams struct {
	CancelAtPeriodEnd *bool
	Items             []SubscriptionItemParams
}

type SubscriptionItemParams struct {
	ID   string
	Plan string // empty keeps the current plan
}

type ChargeParams struct {
	Amount         int64
	Currency       string
	CustomerID     string
	Source         string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// ChargeStatusSucceeded is the processor status of a settled charge.
const ChargeStatusSucceeded = "succeeded"

type Charge struct {
	ID     string
	Amount int64
	Status string
}

func (c *Charge) Settled() bool {
	return c != nil && c.Status == ChargeStatusSucceeded
}

// ProcessorSubscription is the processor's view of a subscription.
// Time fields are Unix seconds; zero means unset.
type ProcessorSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	Items             []ProcessorSubscriptionItem
	TrialEnd          int64
	CurrentPeriodEnd  int64
	EndedAt           int64
	CancelAtPeriodEnd bool
}

type ProcessorSubscriptionItem struct {
	ID       string
	PlanID   string
	PlanName string
	Quantity int64
}

// FirstItem returns the first item, or a zero item when there are none.
func (p *ProcessorSubscription) FirstItem() ProcessorSubscriptionItem {
	if p == nil || len(p.Items) == 0 {
		return ProcessorSubscriptionItem{}
	}
	return p.Items[0]
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// reconcile copies processor state onto the record.
func reconcile(rec *Subscription, sub *ProcessorSubscription, now time.Time) {
	item := sub.FirstItem()

	rec.PlanID = sub.ID
	rec.PlanName = item.PlanName
	if rec.PlanName == "" {
		rec.PlanName = item.PlanID
	}
	if item.Quantity > 0 {
		rec.Quantity = item.Quantity
	}

	rec.TrialEndsAt = nil
	if t := unixTime(sub.TrialEnd); t != nil && t.After(now) {
		rec.TrialEndsAt = t
	}

	switch {
	case sub.EndedAt > 0:
		rec.EndsAt = unixTime(sub.EndedAt)
	case sub.CancelAtPeriodEnd:
		rec.EndsAt = unixTime(sub.CurrentPeriodEnd)
	default:
		rec.EndsAt = nil
	}
}
