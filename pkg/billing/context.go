package billing

import "context"

type idempotencyKeyCtxKey struct{}

// WithIdempotencyKey attaches a caller-supplied idempotency key to the context.
// Subscribe and Charge reuse it across retries instead of generating one.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtxKey{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyCtxKey{}).(string)
	return key, ok && key != ""
}
