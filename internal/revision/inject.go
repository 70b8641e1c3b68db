package revision

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aqasim81/session-migrate/internal/fileutil"
)

// ImportLine returns the statement every step file must start with.
func ImportLine(module string) string {
	return "import " + module
}

// EnsureImport prepends line to the file at path unless its first line already
// equals line exactly. It reports whether the file was rewritten. The rewrite
// goes through a temporary file in the same directory and a rename, so readers
// never observe a half-written script.
func EnsureImport(path, line string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	first, _, _ := bytes.Cut(data, []byte("\n"))
	if string(first) == line {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	out := make([]byte, 0, len(line)+1+len(data))
	out = append(out, line...)
	out = append(out, '\n')
	out = append(out, data...)

	if err := fileutil.WriteAtomic(path, out, info.Mode().Perm()); err != nil {
		return false, err
	}

	return true, nil
}

// InjectAll runs EnsureImport for module over every regular, non-hidden file
// in dir and returns the paths it rewrote. Files are independent; the first
// failure stops the walk.
func InjectAll(dir, module string) ([]string, error) {
	names, err := stepFiles(dir)
	if err != nil {
		return nil, err
	}

	line := ImportLine(module)

	var changed []string

	for _, name := range names {
		path := filepath.Join(dir, name)

		rewritten, err := EnsureImport(path, line)
		if err != nil {
			return changed, err
		}

		if rewritten {
			changed = append(changed, path)
		}
	}

	return changed, nil
}
