// Package workspace owns the on-disk layout an upgrade run creates: the
// Alembic config file and script directory under an explicit root.
//
// Artifacts are built in a hidden staging directory inside the root and moved
// into place by Commit, so a failed scaffold never leaves a half-written
// workspace behind, and a later failure can be undone with Rollback.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const stagingPattern = ".session-migrate-staging-*"

// Workspace locates the migration artifacts under Root.
type Workspace struct {
	Root       string
	ConfigFile string
	ScriptDir  string
}

// New resolves root to an absolute path.
func New(root, configFile, scriptDir string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", root, err)
	}

	return &Workspace{Root: abs, ConfigFile: configFile, ScriptDir: scriptDir}, nil
}

// ConfigPath is the committed config file path.
func (w *Workspace) ConfigPath() string { return filepath.Join(w.Root, w.ConfigFile) }

// ScriptPath is the committed script directory path.
func (w *Workspace) ScriptPath() string { return filepath.Join(w.Root, w.ScriptDir) }

// VersionsPath is the directory holding generated migration steps.
func (w *Workspace) VersionsPath() string { return filepath.Join(w.ScriptPath(), "versions") }

// Guard fails with ErrWorkspaceExists if the config file or script directory exists.
func (w *Workspace) Guard() error {
	for _, p := range []string{w.ConfigPath(), w.ScriptPath()} {
		_, err := os.Lstat(p)
		if err == nil {
			return fmt.Errorf("%w: %s (remove it to start over)", ErrWorkspaceExists, p)
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", p, err)
		}
	}

	return nil
}

// Rollback removes committed artifacts. It is only safe after a Commit made
// by this run, since Guard established that nothing was there before.
func (w *Workspace) Rollback() error {
	errScript := os.RemoveAll(w.ScriptPath())

	errConfig := os.Remove(w.ConfigPath())
	if errors.Is(errConfig, fs.ErrNotExist) {
		errConfig = nil
	}

	return errors.Join(errScript, errConfig)
}

// Stage creates a private staging directory under Root, creating Root if needed.
func (w *Workspace) Stage() (*Staging, error) {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root %s: %w", w.Root, err)
	}

	dir, err := os.MkdirTemp(w.Root, stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	return &Staging{ws: w, Dir: dir}, nil
}

// Staging is a scratch copy of the workspace layout.
type Staging struct {
	ws        *Workspace
	Dir       string
	committed bool
}

// ConfigPath is the staged config file path.
func (s *Staging) ConfigPath() string { return filepath.Join(s.Dir, s.ws.ConfigFile) }

// ScriptPath is the staged script directory path.
func (s *Staging) ScriptPath() string { return filepath.Join(s.Dir, s.ws.ScriptDir) }

// Commit moves the staged config file and script directory into the workspace
// root and removes the staging directory. The config file is published first
// with an exclusive link, so of two racing runs only one can commit.
func (s *Staging) Commit() error {
	if s.committed {
		return ErrAlreadyCommitted
	}

	if err := publishFile(s.ConfigPath(), s.ws.ConfigPath()); err != nil {
		return err
	}

	if err := publishDir(s.ScriptPath(), s.ws.ScriptPath()); err != nil {
		os.Remove(s.ws.ConfigPath())

		return err
	}

	s.committed = true

	return s.Discard()
}

// Discard removes the staging directory. Safe to call more than once.
func (s *Staging) Discard() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("removing staging directory %s: %w", s.Dir, err)
	}

	return nil
}

// publishFile places src at dst without ever replacing an existing dst.
func publishFile(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrWorkspaceExists, dst)
	}

	return copyExclusive(src, dst)
}

// copyExclusive is the fallback for filesystems without hard links.
func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrWorkspaceExists, dst)
		}

		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)

		return fmt.Errorf("copying %s: %w", dst, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)

		return fmt.Errorf("closing %s: %w", dst, err)
	}

	return nil
}

func publishDir(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrWorkspaceExists, dst)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s into place: %w", src, err)
	}

	return nil
}
