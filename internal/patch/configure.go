package patch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aqasim81/session-migrate/internal/fileutil"
)

// URLSection and URLKey locate the connection string in alembic.ini.
const (
	URLSection = "alembic"
	URLKey     = "sqlalchemy.url"
)

// EnvFile is the environment script inside the Alembic script directory.
const EnvFile = "env.py"

// Settings are the values wired into a freshly scaffolded workspace.
type Settings struct {
	URL          string // connection descriptor; only lone "%" signs are escaped
	Module       string // dotted schema module path
	MetadataAttr string // attribute of Module holding the MetaData, e.g. "Base.metadata"
}

// Configure edits the config file and env.py under dir in place.
// Each file is rewritten atomically; nothing is written unless its edit succeeded.
func Configure(dir, configFile, scriptDir string, s Settings) error {
	iniPath := filepath.Join(dir, configFile)
	url := EscapePercent(s.URL)

	if err := editFile(iniPath, func(data []byte) ([]byte, error) {
		out, err := SetOption(data, URLSection, URLKey, url)
		if err != nil {
			return nil, err
		}

		if got, ok := Option(out, URLSection, URLKey); !ok || got != url {
			return nil, fmt.Errorf("%w: %s read back as %q", ErrVerifyFailed, URLKey, got)
		}

		return out, nil
	}); err != nil {
		return err
	}

	envPath := filepath.Join(dir, scriptDir, EnvFile)

	return editFile(envPath, func(data []byte) ([]byte, error) {
		return WireMetadata(data, s.Module, s.MetadataAttr)
	})
}

func editFile(path string, edit func([]byte) ([]byte, error)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	out, err := edit(data)
	if err != nil {
		return fmt.Errorf("patching %s: %w", path, err)
	}

	return fileutil.WriteAtomic(path, out, info.Mode().Perm())
}
