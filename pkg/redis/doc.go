// Package redis provides helpers for connecting to Redis with go-redis and a
// distributed Locker that serializes billing mutations across replicas.
//
// # Usage
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	svc := billing.NewService(processor, store, store,
//		billing.WithLocker(redis.NewLockerFromConfig(client, cfg)),
//	)
//
// # Locking
//
// Lock uses SET NX PX with a random token and releases through a Lua script
// that compares the token first. Waiting callers poll with capped exponential
// backoff until their context is done.
package redis
