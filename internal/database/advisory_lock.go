package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionMigrationLockID is the advisory lock identifier held from stamping
// to upgrading so two upgrade runs cannot interleave on one database.
const SessionMigrationLockID int64 = 0x5e55_1011

// LockHandle wraps a dedicated pooled connection that holds a
// session-level advisory lock. Call Release to unlock and return
// the connection to the pool.
type LockHandle struct {
	conn *pgxpool.Conn
}

// TryAcquireLock attempts to acquire a session-level advisory lock without
// waiting. It returns ErrLockNotAcquired if another upgrade run holds it.
// The lock lives on a pooled connection, so it stays held while Alembic
// works through its own connections. The caller must call handle.Release().
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool) (*LockHandle, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for advisory lock: %w", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", SessionMigrationLockID).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		holder := lockHolder(ctx, conn)
		conn.Release()

		if holder != "" {
			return nil, fmt.Errorf("%w: held by %s", ErrLockNotAcquired, holder)
		}

		return nil, ErrLockNotAcquired
	}

	return &LockHandle{conn: conn}, nil
}

// lockHolder describes the backend holding the lock, or "" if it cannot tell.
// A single bigint key shows up in pg_locks split into classid (high half)
// and objid (low half) with objsubid 1.
func lockHolder(ctx context.Context, conn *pgxpool.Conn) string {
	var (
		pid int32
		app string
	)

	err := conn.QueryRow(ctx, `SELECT a.pid, coalesce(a.application_name, '')
		FROM pg_locks l JOIN pg_stat_activity a ON a.pid = l.pid
		WHERE l.locktype = 'advisory' AND l.granted AND l.objsubid = 1
		  AND l.classid = ($1::bigint >> 32)::oid
		  AND l.objid = ($1::bigint & 4294967295)::oid
		LIMIT 1`, SessionMigrationLockID).Scan(&pid, &app)
	if err != nil {
		return ""
	}

	if app == "" {
		return fmt.Sprintf("backend pid %d", pid)
	}

	return fmt.Sprintf("backend pid %d (%s)", pid, app)
}

// Release unlocks the advisory lock and returns the connection to the pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	_, err := h.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", SessionMigrationLockID)
	h.conn.Release()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	return nil
}
