package billing

import (
	"context"
	"time"
)

// NoticeKind names a customer-facing billing notice.
type NoticeKind string

const (
	NoticeSubscriptionStarted   NoticeKind = "subscription_started"
	NoticeCancellationScheduled NoticeKind = "cancellation_scheduled"
	NoticeSubscriptionEnded     NoticeKind = "subscription_ended"
	NoticeChargeSucceeded       NoticeKind = "charge_succeeded"
)

// Notice is delivered after a successful mutation.
type Notice struct {
	Kind        NoticeKind
	Owner       Owner
	Plan        string
	PlanName    string
	Amount      int64
	Currency    string
	ChargeID    string
	TrialEndsAt *time.Time
	EndsAt      *time.Time
}

// Notifier delivers billing notices. Delivery failures are logged, never returned to the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice) error

func (f NotifierFunc) Notify(ctx context.Context, n Notice) error { return f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) error { return nil }
