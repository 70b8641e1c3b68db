package patch

import (
	"fmt"
	"strings"
)

// Placeholders in the env.py that "alembic init" generates.
const (
	ImportPlaceholder   = "# from myapp import mymodel"
	MetadataPlaceholder = "target_metadata = None"
)

// WireMetadata activates the schema module in an env.py: the commented import
// placeholder becomes "import <module>" and "target_metadata = None" becomes
// "target_metadata = <module>.<attr>". Lines already in wired form count as
// done, so the edit is idempotent. If either line is in neither form the
// template has drifted and ErrAnchorNotFound is returned.
func WireMetadata(data []byte, module, attr string) ([]byte, error) {
	importLine := "import " + module
	metadataLine := "target_metadata = " + module + "." + attr

	lines := strings.Split(string(data), "\n")

	var importDone, metadataDone bool

	for i, line := range lines {
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

		switch strings.TrimSpace(line) {
		case ImportPlaceholder:
			if !importDone {
				lines[i] = indent + importLine
				importDone = true
			}
		case importLine:
			importDone = true
		case MetadataPlaceholder:
			if !metadataDone {
				lines[i] = indent + metadataLine
				metadataDone = true
			}
		case metadataLine:
			metadataDone = true
		}
	}

	if !importDone {
		return nil, fmt.Errorf("%w: %q", ErrAnchorNotFound, ImportPlaceholder)
	}

	if !metadataDone {
		return nil, fmt.Errorf("%w: %q", ErrAnchorNotFound, MetadataPlaceholder)
	}

	return []byte(strings.Join(lines, "\n")), nil
}
