package procedure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/session-migrate/internal/database"
	"github.com/aqasim81/session-migrate/internal/tracker"
)

// Releaser is held from stamping to upgrading.
type Releaser interface {
	Release(ctx context.Context) error
}

// Target is the database behind the connection descriptor, as far as the
// procedure needs to see it. Alembic does the actual schema work.
type Target interface {
	Dialect() database.Dialect
	// Observable reports whether Current and VerifyHeads read the real database.
	// A blind target answers them without looking.
	Observable() bool
	// Lock fences off concurrent upgrade runs against the same database.
	Lock(ctx context.Context) (Releaser, error)
	// Current returns the revisions recorded in alembic_version.
	Current(ctx context.Context) ([]string, error)
	// VerifyHeads fails with tracker.ErrNotAtHead unless the database is at heads.
	VerifyHeads(ctx context.Context, heads []string) error
	Close()
}

// TargetOpener probes the database behind descriptor. here is the directory
// holding the config file, used to expand "%(here)s".
type TargetOpener func(ctx context.Context, descriptor, here string) (Target, error)

// OpenTarget probes the database and returns a Target for it. Backends the
// tool cannot open itself get a Target that cannot lock or verify; Alembic
// alone decides whether they work.
func OpenTarget(ctx context.Context, descriptor, here string, logger *slog.Logger) (Target, error) {
	t, err := database.ParseURL(descriptor, here)
	if err != nil {
		return nil, err
	}

	switch t.Dialect {
	case database.DialectPostgres:
		pool, err := database.NewPool(ctx, t.DSN)
		if errors.Is(err, database.ErrInvalidDatabaseURL) {
			logger.Warn("connection descriptor not understood by pgx; skipping probe, lock and verification",
				"error", err)

			return blindTarget{dialect: t.Dialect}, nil
		}

		if err != nil {
			return nil, err
		}

		return &postgresTarget{pool: pool, tracker: tracker.NewPostgres(pool)}, nil
	case database.DialectSQLite:
		if t.InMemory() {
			logger.Warn("in-memory SQLite database cannot be verified after upgrade")

			return blindTarget{dialect: t.Dialect}, nil
		}

		if err := database.ProbeSQLite(ctx, t.Path); err != nil {
			return nil, err
		}

		return &sqliteTarget{path: t.Path}, nil
	default:
		logger.Warn("database dialect not probed; relying on alembic", "descriptor_scheme", schemeOf(descriptor))

		return blindTarget{dialect: t.Dialect}, nil
	}
}

func schemeOf(descriptor string) string {
	scheme, _, _ := strings.Cut(descriptor, ":")

	return scheme
}

type postgresTarget struct {
	pool    *pgxpool.Pool
	tracker *tracker.Tracker
}

func (t *postgresTarget) Dialect() database.Dialect { return database.DialectPostgres }

func (t *postgresTarget) Observable() bool { return true }

func (t *postgresTarget) Lock(ctx context.Context) (Releaser, error) {
	handle, err := database.TryAcquireLock(ctx, t.pool)
	if err != nil {
		return nil, err
	}

	return handle, nil
}

func (t *postgresTarget) Current(ctx context.Context) ([]string, error) {
	return t.tracker.Current(ctx)
}

func (t *postgresTarget) VerifyHeads(ctx context.Context, heads []string) error {
	return t.tracker.VerifyHeads(ctx, heads)
}

func (t *postgresTarget) Close() { t.pool.Close() }

// sqliteTarget reopens the file for each read; Alembic creates and writes it
// between calls.
type sqliteTarget struct {
	path string
}

func (t *sqliteTarget) Dialect() database.Dialect { return database.DialectSQLite }

func (t *sqliteTarget) Observable() bool { return true }

// Lock is a no-op: the workspace commit already fences local runs.
func (t *sqliteTarget) Lock(context.Context) (Releaser, error) { return noopReleaser{}, nil }

func (t *sqliteTarget) Current(ctx context.Context) ([]string, error) {
	var current []string

	err := t.withTracker(ctx, func(tr *tracker.Tracker) error {
		var err error
		current, err = tr.Current(ctx)

		return err
	})

	return current, err
}

func (t *sqliteTarget) VerifyHeads(ctx context.Context, heads []string) error {
	return t.withTracker(ctx, func(tr *tracker.Tracker) error {
		return tr.VerifyHeads(ctx, heads)
	})
}

func (t *sqliteTarget) withTracker(ctx context.Context, fn func(*tracker.Tracker) error) error {
	db, err := database.OpenSQLite(ctx, t.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer db.Close()

	return fn(tracker.NewSQLite(db))
}

func (t *sqliteTarget) Close() {}

// blindTarget stands in for databases the tool cannot observe.
type blindTarget struct {
	dialect database.Dialect
}

func (t blindTarget) Dialect() database.Dialect { return t.dialect }
func (t blindTarget) Observable() bool { return false }
func (t blindTarget) Lock(context.Context) (Releaser, error) { return noopReleaser{}, nil }
func (t blindTarget) Current(context.Context) ([]string, error) { return nil, nil }
func (t blindTarget) VerifyHeads(context.Context, []string) error { return nil }
func (t blindTarget) Close() {}

type noopReleaser struct{}

func (noopReleaser) Release(context.Context) error { return nil }
