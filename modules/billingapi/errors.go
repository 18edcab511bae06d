package billingapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billable/handler"
	"github.com/dmitrymomot/billable/pkg/billing"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = 5

// ClassifyError maps billing errors to HTTP errors.
func ClassifyError(err error) (handler.HTTPError, bool) {
	switch {
	case errors.Is(err, billing.ErrPlanNotFound):
		return handler.HTTPError{Code: http.StatusUnprocessableEntity, Key: "plan_not_found", Message: "The requested plan is not available."}, true
	case errors.Is(err, billing.ErrPlanRequired),
		errors.Is(err, billing.ErrOwnerRequired),
		errors.Is(err, billing.ErrTokenRequired):
		return handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_request", Message: err.Error()}, true
	case errors.Is(err, billing.ErrInvalidCoupon):
		return handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_coupon", Message: "The coupon cannot be applied."}, true
	case errors.Is(err, billing.ErrInvalidAmount):
		return handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_amount", Message: "The charge amount must be positive."}, true
	case errors.Is(err, billing.ErrInvalidWebhook):
		return handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_webhook", Message: "Webhook signature verification failed."}, true
	case errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrNoActiveSubscription):
		return handler.HTTPError{Code: http.StatusNotFound, Key: "subscription_not_found", Message: "No subscription found."}, true
	case errors.Is(err, billing.ErrPaymentDeclined):
		return handler.HTTPError{Code: http.StatusPaymentRequired, Key: "payment_declined", Message: "The payment method was declined."}, true
	case errors.Is(err, billing.ErrProcessorRejected):
		return handler.HTTPError{Code: http.StatusConflict, Key: "billing_rejected", Message: "The payment processor rejected the request."}, true
	case errors.Is(err, billing.ErrProcessorUnavailable),
		errors.Is(err, billing.ErrProcessorFailure),
		errors.Is(err, billing.ErrLockTimeout):
		return handler.HTTPError{
			Code:       http.StatusServiceUnavailable,
			Key:        "billing_unavailable",
			Message:    "Billing is temporarily unavailable, please retry.",
			RetryAfter: retryAfterSeconds,
		}, true
	}
	return handler.HTTPError{}, false
}

