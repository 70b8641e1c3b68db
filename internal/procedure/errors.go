package procedure

import "errors"

var (
	// ErrUsage indicates the wrong number of arguments or an empty argument.
	ErrUsage = errors.New("usage error")

	// ErrInvalidDescriptor indicates a connection descriptor that cannot be
	// written into the config file as a single value.
	ErrInvalidDescriptor = errors.New("invalid connection descriptor")

	// ErrInvalidModulePath indicates a schema module reference that is not a
	// dotted Python identifier path.
	ErrInvalidModulePath = errors.New("invalid schema module path")

	// ErrNoRevision indicates revision generation produced no step file.
	ErrNoRevision = errors.New("no migration step was generated")

	// ErrDangerousUpgrade indicates the pending upgrade has high or critical
	// findings and --force was not given.
	ErrDangerousUpgrade = errors.New("pending upgrade contains dangerous operations")
)
