// Package billing adds subscription billing to any owner entity: a user, a team
// or a tenant. It keeps one local subscription record per owner in sync with a
// payment processor and answers status questions from that record alone.
//
// # Architecture
//
//   - Service: lifecycle coordinator and status evaluator
//   - Processor: payment processor contract (Stripe, in-memory)
//   - Store and OwnerStore: persistence of records and processor ids
//   - Locker: per-owner serialization of mutations
//   - WebhookParser: signature verification and decoding of processor events
//   - Registry: driver name to Processor and WebhookParser constructors
//
// Status queries never call the processor. Mutations call the processor first
// and persist the local record only after the processor accepted the change.
//
// # Status
//
// A record is derived into one of five states:
//
//	none -> trialing | active -> cancel_pending -> ended
//
// IsSubscribed holds while ends_at is unset or in the future. OnTrial holds while
// trial_ends_at is in the future and the subscription has not ended. IsCanceled
// holds while a cancellation is pending and no trial runs. WasSubscribed holds
// once ends_at has passed.
//
// # Quick Start
//
//	processor, err := billing.NewRegistry().OpenProcessor(cfg)
//	if err != nil {
//		return err
//	}
//	store := billing.NewMemoryStore()
//	svc := billing.NewService(processor, store, store,
//		billing.WithLogger(log),
//		billing.WithCatalog(catalog),
//	)
//
//	owner := &billing.Owner{ID: "user-1", Email: "jane@example.com"}
//	ok, err := svc.Subscribe(ctx, owner, "pro", "tok_visa",
//		billing.NewSubscribeOptions().Trial(14))
//
// # Coupons
//
// Charge accepts four kinds of coupons: none, a processor coupon code
// (percent or amount off), a flat minor-unit deduction and a fraction of the
// amount. Amounts are computed with decimal arithmetic and rounded half away
// from zero to whole minor units before they reach the processor.
//
// # Retries
//
// Subscribe and Charge are retried on ErrProcessorUnavailable with exponential
// backoff. Every attempt carries the same idempotency key, taken from
// WithIdempotencyKey when present, so a retried request never bills twice.
//
// # Errors
//
// ErrPlanNotFound and ErrInvalidCoupon are caller errors. A processor that does
// not know the customer makes Subscribe, Charge and Card return false without
// an error. ErrProcessorUnavailable marks transient failures worth retrying.
package billing
