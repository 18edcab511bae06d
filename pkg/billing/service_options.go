package billing

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source used for status evaluation and local timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker replaces the in-process owner lock, e.g. with a Redis-backed one
// when several replicas share a store.
func WithLocker(l Locker) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLockTimeout bounds how long a mutation waits for the owner lock.
func WithLockTimeout(d time.Duration) ServiceOption {
	return func(s *service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithRetryPolicy(p RetryPolicy) ServiceOption {
	return func(s *service) {
		s.retry = p
	}
}

// WithCurrency sets the default charge currency.
func WithCurrency(code string) ServiceOption {
	return func(s *service) {
		if code != "" {
			s.currency = code
		}
	}
}

// WithCatalog resolves local plan keys to processor price ids.
func WithCatalog(c *Catalog) ServiceOption {
	return func(s *service) {
		s.catalog = c
	}
}

func WithNotifier(n Notifier) ServiceOption {
	return func(s *service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithObserver(o Observer) ServiceOption {
	return func(s *service) {
		if o != nil {
			s.observer = o
		}
	}
}
