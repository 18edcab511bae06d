// Package mongo provides MongoDB connection management: environment-driven
// configuration, connect with retry, a ping health check and error helpers.
//
// # Usage
//
//	var cfg mongo.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
// Connection attempts back off exponentially starting at RetryInterval.
// Errors wrap ErrFailedToConnectToMongo and ErrHealthcheckFailed and can be
// matched with errors.Is.
package mongo
