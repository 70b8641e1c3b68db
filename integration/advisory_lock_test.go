//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/session-migrate/internal/database"
)

func TestAdvisoryLock_acquireAndRelease(t *testing.T) {
	t.Parallel()

	pool, _ := SetupPostgres(t)
	ctx := context.Background()

	handle, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NotNil(t, handle)

	var held int

	err = pool.QueryRow(ctx,
		`SELECT count(*) FROM pg_locks WHERE locktype = 'advisory' AND granted`).Scan(&held)
	require.NoError(t, err)
	assert.Equal(t, 1, held)

	require.NoError(t, handle.Release(ctx))
}

func TestAdvisoryLock_secondRunFromAnotherPool_returnsLockNotAcquired(t *testing.T) {
	t.Parallel()

	pool, dsn := SetupPostgres(t)
	ctx := context.Background()

	first, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = first.Release(context.Background())
	})

	other, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(other.Close)

	second, err := database.TryAcquireLock(ctx, other)
	assert.Nil(t, second)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)
	assert.Contains(t, err.Error(), "held by backend pid")
}

func TestAdvisoryLock_releaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	pool, _ := SetupPostgres(t)
	ctx := context.Background()

	first, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, first.Release(ctx))

	second, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))

	// Releasing twice is a no-op.
	require.NoError(t, second.Release(ctx))
}
