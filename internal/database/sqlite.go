package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// OpenSQLite opens an existing SQLite database read-only and verifies it can be queried.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
		}

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return db, nil
}

// readOnlyDSN builds a read-only SQLite URI for path. The path is
// percent-escaped so "#", "?" and "%" in directory names stay part of it.
func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: "mode=ro"}

	return u.String()
}

// ProbeSQLite checks that a SQLite database at path is reachable: either the file
// exists and opens, or its directory exists so SQLite can create it.
func ProbeSQLite(ctx context.Context, path string) error {
	db, err := OpenSQLite(ctx, path)
	if err == nil {
		return db.Close()
	}

	if !errors.Is(err, ErrDatabaseNotFound) {
		return err
	}

	dir := filepath.Dir(path)

	info, statErr := os.Stat(dir)
	if statErr != nil {
		return fmt.Errorf("%w: directory for %s: %w", ErrConnectionFailed, path, statErr)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConnectionFailed, dir)
	}

	return nil
}
