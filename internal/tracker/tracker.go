package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VersionTable is the table Alembic records the current revision(s) in.
const VersionTable = "alembic_version"

const selectVersionsSQL = `SELECT version_num FROM alembic_version ORDER BY version_num`

// listFunc runs a query returning one text column.
type listFunc func(ctx context.Context, query string, args ...any) ([]string, error)

// Tracker reads Alembic's version bookkeeping from a live database.
type Tracker struct {
	list      listFunc
	existsSQL string
}

// NewPostgres creates a Tracker backed by a pgx pool.
func NewPostgres(pool *pgxpool.Pool) *Tracker {
	return &Tracker{
		existsSQL: `SELECT table_name::text FROM information_schema.tables
		            WHERE table_schema = current_schema() AND table_name = $1`,
		list: func(ctx context.Context, query string, args ...any) ([]string, error) {
			rows, err := pool.Query(ctx, query, args...)
			if err != nil {
				return nil, err
			}

			return pgx.CollectRows(rows, pgx.RowTo[string])
		},
	}
}

// NewSQLite creates a Tracker backed by a database/sql handle using the sqlite driver.
func NewSQLite(db *sql.DB) *Tracker {
	return &Tracker{
		existsSQL: `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`,
		list: func(ctx context.Context, query string, args ...any) ([]string, error) {
			rows, err := db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, err
			}
			defer rows.Close()

			var out []string

			for rows.Next() {
				var s string
				if err := rows.Scan(&s); err != nil {
					return nil, err
				}

				out = append(out, s)
			}

			return out, rows.Err()
		},
	}
}

// Current returns the revisions recorded in alembic_version, sorted.
// A database that was never stamped has no table and yields an empty slice.
func (t *Tracker) Current(ctx context.Context) ([]string, error) {
	exists, err := t.list(ctx, t.existsSQL, VersionTable)
	if err != nil {
		return nil, fmt.Errorf("%w: checking table: %w", ErrVersionQuery, err)
	}

	if len(exists) == 0 || exists[0] == "" {
		return []string{}, nil
	}

	versions, err := t.list(ctx, selectVersionsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVersionQuery, err)
	}

	if versions == nil {
		versions = []string{}
	}

	return versions, nil
}

// VerifyHeads returns ErrNotAtHead unless the recorded revisions are exactly heads.
func (t *Tracker) VerifyHeads(ctx context.Context, heads []string) error {
	current, err := t.Current(ctx)
	if err != nil {
		return err
	}

	want := slices.Clone(heads)
	slices.Sort(want)

	if !slices.Equal(current, want) {
		return fmt.Errorf("%w: recorded [%s], expected [%s]",
			ErrNotAtHead, strings.Join(current, ", "), strings.Join(want, ", "))
	}

	return nil
}
