// Package logger builds *slog.Logger values for the billing service.
//
// New applies a list of Option values, picks a text or JSON handler and wraps
// it in a LogHandlerDecorator that runs ContextExtractor callbacks on every
// record. WithEnvironment selects defaults per deployment environment.
//
// Attribute helpers such as OwnerID, CustomerID and SubscriptionID keep key
// names consistent between the HTTP layer, the billing service and the stores.
// Empty identifiers yield an empty slog.Attr which slog drops.
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "billingd"),
//	    logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
//	        key, ok := billing.IdempotencyKeyFromContext(ctx)
//	        return logger.IdempotencyKey(key), ok
//	    }),
//	)
//	log.InfoContext(ctx, "subscribed", logger.OwnerID(owner.ID), logger.Plan("pro"))
package logger
