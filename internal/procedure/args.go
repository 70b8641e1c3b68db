package procedure

import (
	"fmt"
	"regexp"
	"strings"
)

// Usage is the argument synopsis printed on a usage error.
const Usage = "upgrade <connection-descriptor> <schema-module>"

var modulePathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Inputs are the two operator-supplied values for an upgrade run.
type Inputs struct {
	Descriptor string // SQLAlchemy URL
	Module     string // dotted Python module that defines Base
}

// ParseArgs checks that exactly two non-empty arguments were given and that
// both are safe to write into the generated files.
func ParseArgs(args []string) (Inputs, error) {
	if len(args) != 2 { //nolint:mnd // descriptor and module
		return Inputs{}, fmt.Errorf("%w: expected 2 arguments, got %d", ErrUsage, len(args))
	}

	in := Inputs{Descriptor: args[0], Module: args[1]}
	if in.Descriptor == "" || in.Module == "" {
		return Inputs{}, fmt.Errorf("%w: arguments must not be empty", ErrUsage)
	}

	if err := in.Validate(); err != nil {
		return Inputs{}, err
	}

	return in, nil
}

// Validate checks both inputs.
func (in Inputs) Validate() error {
	if err := ValidateDescriptor(in.Descriptor); err != nil {
		return err
	}

	return ValidateModulePath(in.Module)
}

// ValidateDescriptor rejects values that would spill onto extra config lines
// or lose characters when the config file is read back.
func ValidateDescriptor(d string) error {
	switch {
	case d == "":
		return fmt.Errorf("%w: empty", ErrInvalidDescriptor)
	case strings.ContainsAny(d, "\r\n\x00"):
		return fmt.Errorf("%w: contains a line break or NUL", ErrInvalidDescriptor)
	case strings.TrimSpace(d) != d:
		return fmt.Errorf("%w: leading or trailing whitespace", ErrInvalidDescriptor)
	}

	return nil
}

// ValidateModulePath accepts dotted Python identifier paths such as "app.models".
func ValidateModulePath(m string) error {
	if !modulePathPattern.MatchString(m) {
		return fmt.Errorf("%w: %q is not a dotted Python identifier path", ErrInvalidModulePath, m)
	}

	return nil
}
