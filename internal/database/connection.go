package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// One connection holds the advisory lock, one serves version reads.
	defaultMaxConns = 2

	defaultConnectTimeout = 10 * time.Second

	// ApplicationName identifies the tool's sessions in pg_stat_activity.
	ApplicationName = "session-migrate"
)

// NewPool creates a pgx connection pool for the given libpq-style URL and
// pings the database. Connect timeout and application_name fall back to the
// tool's defaults when the URL does not set them.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	if poolCfg.ConnConfig.ConnectTimeout == 0 {
		poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	}

	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, poolCfg.ConnConfig.Host, err)
	}

	return pool, nil
}
