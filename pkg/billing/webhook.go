package billing

import "context"

// EventKind is a processor lifecycle event the Service knows how to handle.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventSubscriptionDeleted
	EventSubscriptionUpdated
	EventSubscriptionCreated
)

var eventKindNames = map[EventKind]string{
	EventUnknown:             "unknown",
	EventSubscriptionDeleted: "subscription_deleted",
	EventSubscriptionUpdated: "subscription_updated",
	EventSubscriptionCreated: "subscription_created",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return eventKindNames[EventUnknown]
}

// processorEventKinds maps processor event names to kinds.
var processorEventKinds = map[string]EventKind{
	"customer.subscription.created": EventSubscriptionCreated,
	"customer.subscription.deleted": EventSubscriptionDeleted,
	"customer.subscription.updated": EventSubscriptionUpdated,
	"subscription.created":          EventSubscriptionCreated,
	"subscription.canceled":         EventSubscriptionDeleted,
	"subscription.updated":          EventSubscriptionUpdated,
}

// ParseEventKind maps a processor event name to a kind, EventUnknown when unsupported.
func ParseEventKind(name string) EventKind {
	return processorEventKinds[name]
}

// Disposition is the outcome of a webhook event.
type Disposition string

const (
	DispositionHandled     Disposition = "handled"
	DispositionUnsupported Disposition = "unsupported"
	DispositionNotFound    Disposition = "not_found"
)

// WebhookEvent is a verified, decoded processor event.
type WebhookEvent struct {
	ID           string
	Type         string
	Kind         EventKind
	CustomerID   string
	// OwnerID is the owner id attached to the subscription at checkout
	// (Paddle custom_data, Stripe metadata), empty when none was set.
	OwnerID      string
	Subscription *ProcessorSubscription
}

// OwnerIDKey is the processor metadata key carrying the owner id.
const OwnerIDKey = "owner_id"

// WebhookParser verifies a raw webhook payload and decodes it.
// Verification failures are reported as ErrInvalidWebhook.
type WebhookParser interface {
	SignatureHeader() string
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}
