package alembic

import "errors"

var (
	// ErrToolFailed indicates the migration tool exited with a non-zero status.
	ErrToolFailed = errors.New("migration tool failed")

	// ErrToolNotFound indicates the migration tool binary could not be executed.
	ErrToolNotFound = errors.New("migration tool not found")
)
