package database

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Dialect identifies the database backend named by a SQLAlchemy URL.
type Dialect string

// Dialects the tool can open on its own. Anything else is only handed to Alembic.
const (
	DialectPostgres    Dialect = "postgresql"
	DialectSQLite      Dialect = "sqlite"
	DialectUnsupported Dialect = "unsupported"
)

// HereToken is the alembic.ini interpolation token for the directory holding the ini file.
const HereToken = "%(here)s"

// Target describes how to reach the database behind a SQLAlchemy URL.
type Target struct {
	Dialect Dialect
	DSN     string // libpq-style URL for PostgreSQL
	Path    string // absolute file path for SQLite; empty for in-memory
}

// InMemory reports whether the target is a SQLite in-memory database,
// which cannot be observed from outside the process that created it.
func (t Target) InMemory() bool {
	return t.Dialect == DialectSQLite && t.Path == ""
}

// ParseURL interprets a SQLAlchemy URL the way Alembic would when run with its
// ini file in here: "%(here)s" is expanded and relative SQLite paths resolve
// against here. Backends other than PostgreSQL and SQLite yield DialectUnsupported.
func ParseURL(raw, here string) (Target, error) {
	expanded := strings.ReplaceAll(raw, HereToken, here)

	scheme, rest, ok := strings.Cut(expanded, "://")
	if !ok || scheme == "" {
		return Target{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidDatabaseURL, raw)
	}

	backend, _, _ := strings.Cut(strings.ToLower(scheme), "+")

	switch backend {
	case "postgresql", "postgres":
		if rest == "" {
			return Target{}, fmt.Errorf("%w: empty PostgreSQL URL", ErrInvalidDatabaseURL)
		}

		return Target{Dialect: DialectPostgres, DSN: "postgres://" + rest}, nil
	case "sqlite":
		return sqliteTarget(rest, here), nil
	default:
		return Target{Dialect: DialectUnsupported}, nil
	}
}

// sqliteTarget maps the part after "sqlite://" to a file path.
// "" and "/:memory:" are in-memory; "/x.db" is relative; "//abs/x.db" is absolute.
func sqliteTarget(rest, here string) Target {
	path, _, _ := strings.Cut(rest, "?")

	path = strings.TrimPrefix(path, "/")
	if path == "" || path == ":memory:" {
		return Target{Dialect: DialectSQLite}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(here, path)
	}

	return Target{Dialect: DialectSQLite, Path: filepath.Clean(path)}
}
