package revision

import "errors"

// ErrMalformedStep indicates a script in the versions directory has no revision identifier.
var ErrMalformedStep = errors.New("migration step has no revision identifier")

// ErrDuplicateRevision indicates two scripts declare the same revision identifier.
var ErrDuplicateRevision = errors.New("duplicate revision identifier")

// ErrCycle indicates the down_revision links form a cycle.
var ErrCycle = errors.New("revision history contains a cycle")
