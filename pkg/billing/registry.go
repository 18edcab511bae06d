package billing

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Driver names a payment processor implementation.
type Driver string

const (
	DriverStripe Driver = "stripe"
	DriverMemory Driver = "memory"
)

// WebhookSource names a webhook verification scheme.
type WebhookSource string

const (
	WebhookNone   WebhookSource = ""
	WebhookStripe WebhookSource = "stripe"
	WebhookPaddle WebhookSource = "paddle"
)

type (
	ProcessorFactory     func(cfg Config) (Processor, error)
	WebhookParserFactory func(cfg Config) (WebhookParser, error)
)

// Registry maps drivers to constructors. It is resolved once at startup.
type Registry struct {
	mu         sync.RWMutex
	processors map[Driver]ProcessorFactory
	webhooks   map[WebhookSource]WebhookParserFactory
}

// NewRegistry returns a registry with the built-in drivers registered.
func NewRegistry() *Registry {
	r := &Registry{
		processors: make(map[Driver]ProcessorFactory),
		webhooks:   make(map[WebhookSource]WebhookParserFactory),
	}
	r.RegisterProcessor(DriverStripe, func(cfg Config) (Processor, error) {
		return NewStripeProcessor(cfg.StripeSecretKey)
	})
	r.RegisterProcessor(DriverMemory, func(Config) (Processor, error) {
		return NewMemoryProcessor(), nil
	})
	r.RegisterWebhook(WebhookStripe, func(cfg Config) (WebhookParser, error) {
		return NewStripeWebhookParser(cfg.StripeWebhookSecret)
	})
	r.RegisterWebhook(WebhookPaddle, func(cfg Config) (WebhookParser, error) {
		return NewPaddleWebhookParser(cfg.PaddleWebhookSecret)
	})
	return r
}

// RegisterProcessor adds a driver. Panics on duplicate registration.
func (r *Registry) RegisterProcessor(d Driver, f ProcessorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[d]; exists {
		panic("billing: processor driver " + string(d) + " already registered")
	}
	r.processors[d] = f
}

// RegisterWebhook adds a webhook source. Panics on duplicate registration.
func (r *Registry) RegisterWebhook(s WebhookSource, f WebhookParserFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.webhooks[s]; exists {
		panic("billing: webhook source " + string(s) + " already registered")
	}
	r.webhooks[s] = f
}

// OpenProcessor builds the processor selected by cfg.Driver.
func (r *Registry) OpenProcessor(cfg Config) (Processor, error) {
	r.mu.RLock()
	f, ok := r.processors[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Join(ErrUnknownProcessor, fmt.Errorf("driver %q", cfg.Driver))
	}
	return f(cfg)
}

// OpenWebhookParser builds the parser selected by cfg.WebhookSource.
// Returns nil without error when no source is configured.
func (r *Registry) OpenWebhookParser(cfg Config) (WebhookParser, error) {
	if cfg.WebhookSource == WebhookNone {
		return nil, nil
	}
	r.mu.RLock()
	f, ok := r.webhooks[cfg.WebhookSource]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Join(ErrUnknownProcessor, fmt.Errorf("webhook source %q", cfg.WebhookSource))
	}
	return f(cfg)
}

// Drivers lists registered processor drivers in sorted order.
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.processors))
}
