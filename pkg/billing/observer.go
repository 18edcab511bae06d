package billing

import (
	"errors"
	"time"
)

// Operation names reported to the Observer.
const (
	OpSubscribe         = "subscribe"
	OpCancel            = "cancel"
	OpResume            = "resume"
	OpSwap              = "swap"
	OpCharge            = "charge"
	OpCard              = "card"
	OpCreateCustomer    = "create_customer"
	OpEndSubscription   = "end_subscription"
	OpSyncSubscription  = "sync_subscription"
	OpAdoptSubscription = "adopt_subscription"
)

// Outcome labels reported to the Observer.
const (
	OutcomeOK               = "ok"
	OutcomeFalse            = "false"
	OutcomePlanNotFound     = "plan_not_found"
	OutcomeCustomerNotFound = "customer_not_found"
	OutcomeUnavailable      = "unavailable"
	OutcomeRejected         = "rejected"
	OutcomeDeclined         = "declined"
	OutcomeError            = "error"
)

// Observer receives operation telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
	ObserveTransition(from, to State, ev Event, allowed bool)
	ObserveWebhook(kind EventKind, disposition Disposition)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}
func (nopObserver) ObserveTransition(State, State, Event, bool)    {}
func (nopObserver) ObserveWebhook(EventKind, Disposition)          {}

// OutcomeOf classifies an operation result into an outcome label.
func OutcomeOf(ok bool, err error) string {
	switch {
	case err == nil && ok:
		return OutcomeOK
	case err == nil:
		return OutcomeFalse
	case errors.Is(err, ErrPlanNotFound):
		return OutcomePlanNotFound
	case errors.Is(err, ErrCustomerNotFound):
		return OutcomeCustomerNotFound
	case errors.Is(err, ErrProcessorUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, ErrProcessorRejected):
		return OutcomeRejected
	case errors.Is(err, ErrPaymentDeclined):
		return OutcomeDeclined
	default:
		return OutcomeError
	}
}
