// Package billingapi exposes billing.Service over HTTP.
//
// Owners are addressed by id in the path; unknown ids start as new owners.
// Mutations reply with {"ok":bool,"status":...}. Processor outages map to
// 503 with Retry-After so clients and processors retry with the same
// Idempotency-Key.
//
//	api := billingapi.New(svc, store,
//		billingapi.WithWebhookParser(parser),
//		billingapi.WithLogger(log),
//	)
//	r.Mount("/", api.Handle())
package billingapi
