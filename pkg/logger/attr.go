package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a group attribute.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups non-nil errors under "errors". It returns an empty Attr when
// every error is nil.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under "error", or returns an empty Attr for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// OwnerID records the billable owner identifier.
func OwnerID(id string) slog.Attr {
	return optionalString("owner_id", id)
}

// CustomerID records the processor customer identifier.
func CustomerID(id string) slog.Attr {
	return optionalString("customer_id", id)
}

// SubscriptionID records the processor subscription identifier.
func SubscriptionID(id string) slog.Attr {
	return optionalString("subscription_id", id)
}

func Plan(key string) slog.Attr {
	return optionalString("plan", key)
}

func IdempotencyKey(key string) slog.Attr {
	return optionalString("idempotency_key", key)
}

func RequestID(id string) slog.Attr {
	return optionalString("request_id", id)
}

// EventType records a webhook event type.
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func optionalString(key, v string) slog.Attr {
	if v == "" {
		return slog.Attr{}
	}
	return slog.String(key, v)
}

// Operation records a billing operation name such as "subscribe".
func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}

// Disposition records how a webhook was handled.
func Disposition(d string) slog.Attr {
	return slog.String("disposition", d)
}
