package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aqasim81/session-migrate/internal/config"
	"github.com/aqasim81/session-migrate/internal/database"
	"github.com/aqasim81/session-migrate/internal/patch"
	"github.com/aqasim81/session-migrate/internal/procedure"
	"github.com/aqasim81/session-migrate/internal/revision"
	"github.com/aqasim81/session-migrate/internal/workspace"
)

// errDescriptorRequired is returned when status has neither an argument nor a workspace config.
var errDescriptorRequired = errors.New("connection descriptor is required when no workspace config exists")

// Status labels printed by the status command.
const (
	statusAtHead     = "at head"
	statusBehind     = "upgrade pending"
	statusNotStamped = "not stamped"
	statusUnknown    = "unknown"
	statusForeign    = "database revision not in workspace"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status [connection-descriptor]",
	Short: "Show the database revision against the workspace's steps",
	Long: `Display the revision(s) recorded in the database's alembic_version table
next to the step files in the workspace. Without an argument the
connection descriptor is read from the workspace config file.`,
	Args: usageArgs(func(args []string) error {
		if len(args) > 1 {
			return fmt.Errorf("expected at most 1 argument, got %d", len(args))
		}

		if len(args) == 1 {
			return procedure.ValidateDescriptor(args[0])
		}

		return nil
	}),
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	ws, err := workspace.New(cfg.Workspace, cfg.ConfigFile, cfg.ScriptDir)
	if err != nil {
		return err
	}

	descriptor, err := statusDescriptor(ws, args)
	if err != nil {
		return err
	}

	steps, err := loadSteps(ws)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := procedure.OpenTarget(ctx, descriptor, ws.Root, Logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer target.Close()

	observable := target.Observable()

	current, err := target.Current(ctx)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		current, err = nil, nil
	}

	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database:  %s\n", config.RedactURL(descriptor))
	fmt.Fprintf(out, "Workspace: %s\n\n", ws.Root)

	report := buildStatus(steps, current, observable)
	printStatus(out, report)

	return nil
}

// statusDescriptor prefers the argument, then the workspace config file.
func statusDescriptor(ws *workspace.Workspace, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	data, err := os.ReadFile(ws.ConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", errDescriptorRequired
	}

	if err != nil {
		return "", fmt.Errorf("reading %s: %w", ws.ConfigPath(), err)
	}

	url, ok := patch.Option(data, patch.URLSection, patch.URLKey)
	if !ok || url == "" {
		return "", fmt.Errorf("%w: %s has no %s", errDescriptorRequired, ws.ConfigPath(), patch.URLKey)
	}

	return patch.UnescapePercent(url), nil
}

// loadSteps returns the workspace's steps in history order; none if no workspace exists.
func loadSteps(ws *workspace.Workspace) ([]revision.Step, error) {
	steps, err := revision.LoadFromDir(ws.VersionsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("loading migration steps: %w", err)
	}

	return revision.Order(steps)
}

type stepStatus struct {
	step    revision.Step
	applied bool
}

type statusReport struct {
	steps   []stepStatus
	current []string
	heads   []string
	status  string
}

// buildStatus marks every ancestor of a recorded revision as applied.
func buildStatus(ordered []revision.Step, current []string, observable bool) statusReport {
	report := statusReport{current: current, heads: revision.Heads(ordered)}

	byRev := make(map[string]revision.Step, len(ordered))
	for _, s := range ordered {
		byRev[s.Revision] = s
	}

	applied := map[string]bool{}
	foreign := false
	queue := slices.Clone(current)

	for len(queue) > 0 {
		rev := queue[0]
		queue = queue[1:]

		if applied[rev] {
			continue
		}

		s, ok := byRev[rev]
		if !ok {
			foreign = true

			continue
		}

		applied[rev] = true
		queue = append(queue, s.DownRevisions...)
	}

	for _, s := range ordered {
		report.steps = append(report.steps, stepStatus{step: s, applied: applied[s.Revision]})
	}

	switch {
	case !observable:
		report.status = statusUnknown
	case foreign:
		report.status = statusForeign
	case len(current) == 0:
		report.status = statusNotStamped
	case slices.Equal(sortedCopy(current), report.heads):
		report.status = statusAtHead
	default:
		report.status = statusBehind
	}

	return report
}

func sortedCopy(s []string) []string {
	c := slices.Clone(s)
	slices.Sort(c)

	return c
}

func printStatus(out io.Writer, r statusReport) {
	if len(r.steps) == 0 {
		fmt.Fprintln(out, "No migration steps in workspace.")
	}

	for _, s := range r.steps {
		mark := "pending"
		if s.applied {
			mark = "applied"
		}

		fmt.Fprintf(out, "  %-14s %-8s %s\n", s.step.Revision, mark, s.step.Message)
	}

	fmt.Fprintf(out, "\nCurrent: %s\n", orNone(r.current))
	fmt.Fprintf(out, "Heads:   %s\n", orNone(r.heads))
	fmt.Fprintf(out, "Status:  %s\n", r.status)
}

func orNone(revs []string) string {
	if len(revs) == 0 {
		return "(none)"
	}

	return strings.Join(revs, ", ")
}
