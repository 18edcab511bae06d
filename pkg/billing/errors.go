package billing

import "errors"

var (
	ErrPlanNotFound     = errors.New("billing plan not found")
	ErrPlanRequired     = errors.New("billing plan is required")
	ErrCustomerNotFound = errors.New("billing customer not found")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrNoActiveSubscription      = errors.New("no active subscription to cancel")

	ErrOwnerRequired = errors.New("billing owner is required")
	ErrOwnerNotFound = errors.New("billing owner not found")

	ErrInvalidCoupon = errors.New("invalid coupon")
	ErrInvalidAmount = errors.New("invalid charge amount")

	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	ErrProcessorFailure     = errors.New("payment processor error")
	ErrProcessorRejected    = errors.New("payment processor rejected the request")
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrUnknownProcessor     = errors.New("unknown payment processor driver")
	ErrMissingAPIKey        = errors.New("payment processor API key is required")
	ErrMissingWebhookSecret = errors.New("webhook secret is required")
	ErrInvalidWebhook       = errors.New("webhook verification failed")

	ErrLockTimeout = errors.New("timed out waiting for owner lock")

	ErrTokenRequired            = errors.New("payment token is required")
	ErrFailedToLoadSubscription = errors.New("failed to load subscription")
	ErrFailedToSaveSubscription = errors.New("failed to save subscription")
	ErrFailedToSaveOwner        = errors.New("failed to save billing owner")
	ErrFailedToLookupOwner      = errors.New("failed to look up billing owner")

	ErrInvalidCatalog = errors.New("invalid plan catalog")
)
