// Package pg provides PostgreSQL bootstrap helpers on top of pgx/v5: a pooled
// connection with retry, goose migrations from an fs.FS, a health check and
// error classification helpers.
//
// # Usage
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, slog.Default()); err != nil {
//		return err
//	}
//
// # Configuration
//
// All values come from PG_* environment variables; see the field tags in Config.
//
// # Error Handling
//
// [IsDuplicateKeyError] and [IsNotFoundError] unwrap pgx errors so storage
// code can map them to domain errors.
package pg
