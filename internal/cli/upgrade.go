package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/session-migrate/internal/alembic"
	"github.com/aqasim81/session-migrate/internal/analyzer"
	"github.com/aqasim81/session-migrate/internal/analyzer/rules"
	"github.com/aqasim81/session-migrate/internal/config"
	"github.com/aqasim81/session-migrate/internal/procedure"
	"github.com/aqasim81/session-migrate/internal/workspace"
)

// newTool builds the migration tool adapter; tests swap it for a fake.
var newTool = func(cfg *config.Config, logger *slog.Logger) procedure.Tool { //nolint:gochecknoglobals // test seam
	return &alembic.CLI{Binary: cfg.AlembicBin, ConfigFile: cfg.ConfigFile, Logger: logger}
}

var upgradeCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "upgrade <connection-descriptor> <schema-module>",
	Short: "Upgrade the session database to the schema module's metadata",
	Long: `Upgrade scaffolds a fresh Alembic workspace, sets its database URL to the
connection descriptor (a SQLAlchemy URL), wires the schema module's
metadata into env.py, stamps the database, autogenerates a revision for the
schema delta, and applies it.

The workspace must not already exist. If any later stage fails, the
workspace is removed again unless --keep-workspace is given.`,
	Example: `  session-migrate upgrade sqlite:///%(here)s/sessions.db agents.sessions.schema
  session-migrate upgrade postgresql+psycopg2://adk:secret@db/sessions agents.sessions.schema`,
	Args: usageArgs(func(args []string) error {
		_, err := procedure.ParseArgs(args)

		return err
	}),
	RunE: runUpgrade,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addUpgradeFlags(upgradeCmd)
	rootCmd.AddCommand(upgradeCmd)
}

func addUpgradeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("force", false, "apply even if analysis finds dangerous operations")
	cmd.Flags().String("message", "", "revision message")
	cmd.Flags().Duration("stage-timeout", 0, "limit for each stage (e.g., 2m); 0 means none")
	cmd.Flags().Bool("no-analyze", false, "skip offline analysis of the pending upgrade")
	cmd.Flags().Bool("keep-workspace", false, "leave the workspace in place if a stage fails")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	in, err := procedure.ParseArgs(args)
	if err != nil {
		return err
	}

	cfg := AppConfig
	mergeUpgradeFlags(cmd, cfg)

	ws, err := workspace.New(cfg.Workspace, cfg.ConfigFile, cfg.ScriptDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	force, _ := cmd.Flags().GetBool("force")
	keep, _ := cmd.Flags().GetBool("keep-workspace")

	opts := []procedure.Option{
		procedure.WithLogger(Logger),
		procedure.WithStageTimeout(cfg.StageTimeout),
		procedure.WithMessage(cfg.Message),
		procedure.WithMetadataAttr(cfg.MetadataAttr),
		procedure.WithForce(force),
		procedure.WithKeepWorkspace(keep),
		procedure.WithProgressCallback(progressPrinter(out)),
	}

	if cfg.Analyze {
		opts = append(opts, procedure.WithAnalyzer(analyzer.New(
			analyzer.WithRegistry(rules.NewDefaultRegistry()),
			analyzer.WithPGVersion(cfg.TargetPGVersion),
		)))
	}

	fmt.Fprintf(out, "Upgrading %s with schema module %s\n", config.RedactURL(in.Descriptor), in.Module)
	fmt.Fprintf(out, "Workspace: %s\n\n", ws.Root)

	runner := procedure.New(newTool(cfg, Logger), ws, opts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := runner.Run(ctx, in)

	if len(res.Findings) > 0 {
		printFindings(out, res.Findings)
	}

	if err != nil {
		if res.RolledBack {
			fmt.Fprintf(out, "\nRemoved the partially created workspace under %s.\n", ws.Root)
		}

		if errors.Is(err, procedure.ErrDangerousUpgrade) {
			fmt.Fprintln(out, "\nUpgrade blocked. Review the findings, then rerun with --force to apply anyway.")
		}

		return err
	}

	fmt.Fprintf(out, "\nUpgrade complete: database at head %s.\n", strings.Join(res.Heads, ", "))

	return nil
}

// mergeUpgradeFlags overrides config with explicitly-set upgrade flags.
func mergeUpgradeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("message") {
		cfg.Message, _ = cmd.Flags().GetString("message")
	}

	if cmd.Flags().Changed("stage-timeout") {
		cfg.StageTimeout, _ = cmd.Flags().GetDuration("stage-timeout")
	}

	if noAnalyze, _ := cmd.Flags().GetBool("no-analyze"); noAnalyze {
		cfg.Analyze = false
	}
}

func progressPrinter(out io.Writer) func(procedure.ProgressEvent) {
	return func(event procedure.ProgressEvent) {
		switch event.Status {
		case procedure.StatusStarting:
			fmt.Fprintf(out, "  %s: %s ... ", event.Stage, event.Stage.Description())
		case procedure.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
		case procedure.StatusSkipped:
			fmt.Fprintf(out, "skipped (%s)\n", event.Detail)
		case procedure.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}

func printFindings(out io.Writer, findings []analyzer.Finding) {
	fmt.Fprintf(out, "\n=== Pending upgrade analysis: %d finding(s) ===\n", len(findings))

	for _, f := range findings {
		fmt.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)
		fmt.Fprintf(out, "    Table:    %s\n", f.Table)
		fmt.Fprintf(out, "    Rule:     %s\n", f.Rule)

		if f.Revision != "" {
			fmt.Fprintf(out, "    Revision: %s\n", f.Revision)
		}

		if f.Statement != "" {
			fmt.Fprintf(out, "    SQL:      %s\n", f.Statement)
		}

		fmt.Fprintf(out, "    Fix:      %s\n\n", f.Suggestion)
	}
}
