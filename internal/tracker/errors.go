package tracker

import "errors"

// ErrNotAtHead indicates the recorded revisions differ from the expected heads.
var ErrNotAtHead = errors.New("database is not at head revision")

// ErrVersionQuery indicates the alembic_version table could not be read.
var ErrVersionQuery = errors.New("reading alembic_version")
