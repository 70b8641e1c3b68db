// Package alembic drives the Alembic command-line tool. Every subcommand runs
// in an explicit working directory with an explicit config file, so the
// caller's current directory never matters.
package alembic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultBinary is looked up on PATH when CLI.Binary is empty.
const DefaultBinary = "alembic"

// Head is Alembic's symbolic name for the newest revision(s).
const Head = "head"

const (
	stderrTailLines = 15
	waitDelay       = 5 * time.Second
)

// CLI runs Alembic subcommands as child processes.
type CLI struct {
	Binary     string
	ConfigFile string       // passed as -c; relative to the working directory
	Env        []string     // extra KEY=VALUE pairs on top of the process environment
	Logger     *slog.Logger // nil discards
}

// Init scaffolds a new script directory and config file inside dir.
func (c *CLI) Init(ctx context.Context, dir, scriptDir string) error {
	_, err := c.run(ctx, dir, "init", scriptDir)

	return err
}

// Stamp records rev in the database's version table without running migrations.
func (c *CLI) Stamp(ctx context.Context, dir, rev string) error {
	_, err := c.run(ctx, dir, "stamp", rev)

	return err
}

// Revision autogenerates a migration step from the difference between the
// database and the target metadata.
func (c *CLI) Revision(ctx context.Context, dir, message string) error {
	_, err := c.run(ctx, dir, "revision", "--autogenerate", "-m", message)

	return err
}

// Upgrade applies migrations up to rev.
func (c *CLI) Upgrade(ctx context.Context, dir, rev string) error {
	_, err := c.run(ctx, dir, "upgrade", rev)

	return err
}

// UpgradeSQL renders the upgrade over revRange ("head" or "<from>:head") as
// SQL without touching the database.
func (c *CLI) UpgradeSQL(ctx context.Context, dir, revRange string) (string, error) {
	return c.run(ctx, dir, "upgrade", revRange, "--sql")
}

func (c *CLI) binary() string {
	if c.Binary == "" {
		return DefaultBinary
	}

	return c.Binary
}

func (c *CLI) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return c.Logger
}

// run executes one subcommand and returns its stdout.
func (c *CLI) run(ctx context.Context, dir string, args ...string) (string, error) {
	full := args
	if c.ConfigFile != "" {
		full = append([]string{"-c", c.ConfigFile}, args...)
	}

	subcommand := args[0]
	log := c.logger().With("subcommand", subcommand, "dir", dir)

	cmd := exec.CommandContext(ctx, c.binary(), full...) //nolint:gosec // G204: binary comes from operator config
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("running alembic", "args", full)

	start := time.Now()
	err := cmd.Run()

	log.Debug("alembic finished", "duration", time.Since(start), "stderr", strings.TrimSpace(stderr.String()))

	if err != nil {
		return "", classify(ctx, subcommand, err, stderr.String())
	}

	return stdout.String(), nil
}

func classify(ctx context.Context, subcommand string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("alembic %s: %w", subcommand, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: alembic %s exited with code %d: %s",
			ErrToolFailed, subcommand, exitErr.ExitCode(), Tail(stderr, stderrTailLines))
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrToolNotFound, err)
	}

	return fmt.Errorf("%w: alembic %s: %w", ErrToolFailed, subcommand, err)
}

// Tail returns the last n non-empty lines of s joined by newlines.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")

	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimRight(lines[i], " \t\r"); line != "" {
			kept = append(kept, line)
		}
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	return strings.Join(kept, "\n")
}
