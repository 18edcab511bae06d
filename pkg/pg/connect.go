package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// Connect opens a PostgreSQL connection pool, retrying with exponential backoff
// until the database answers a ping or the attempts are used up.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime

	backoff := retry.WithMaxRetries(max(cfg.RetryAttempts, 1)-1, retry.NewExponential(max(cfg.RetryInterval, 1)))

	pool, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*pgxpool.Pool, error) {
		conn, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			return nil, retry.RetryableError(err)
		}
		// Ping catches authentication and permission issues that pool creation does not.
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			return nil, retry.RetryableError(err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDBConnection, err)
	}

	return pool, nil
}
