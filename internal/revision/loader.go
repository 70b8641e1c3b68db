package revision

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// LoadFromDir parses every Python script in an Alembic versions directory.
// Hidden files, subdirectories (such as __pycache__) and non-.py files are skipped.
// The result is ordered by file name; use Order for history order.
func LoadFromDir(dir string) ([]Step, error) {
	names, err := stepFiles(dir)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(names))
	seen := make(map[string]string, len(names))

	for _, name := range names {
		if !strings.HasSuffix(name, ".py") {
			continue
		}

		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading migration step %s: %w", path, err)
		}

		s, ok := parseStep(string(data))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMalformedStep, path)
		}

		if prev, dup := seen[s.Revision]; dup {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateRevision, s.Revision, prev, path)
		}

		seen[s.Revision] = path
		s.FilePath = path
		steps = append(steps, s)
	}

	return steps, nil
}

// stepFiles lists the regular, non-hidden files in dir, sorted by name.
func stepFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading versions directory %s: %w", dir, err)
	}

	var names []string

	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		names = append(names, entry.Name())
	}

	slices.Sort(names)

	return names, nil
}
