package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aqasim81/session-migrate/internal/config"
	"github.com/aqasim81/session-migrate/internal/procedure"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// Logger receives diagnostics on stderr, set during PersistentPreRunE.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil)) //nolint:gochecknoglobals // shared like AppConfig

// rootCmd is the base command for the session-migrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "session-migrate",
	Version: version,
	Short:   "Upgrade an agent session database schema with Alembic",
	Long: `session-migrate brings a session-storage database up to date with the
schema module of an agent framework. It scaffolds an Alembic workspace,
points it at the database and the module's metadata, generates a revision
from the schema delta, checks it for dangerous operations, and applies it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          usageArgs(requireSubcommand),
	RunE: func(_ *cobra.Command, args []string) error {
		return requireSubcommand(args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", "session-migrate.yml", "path to configuration file")
	rootCmd.PersistentFlags().String("workspace", "", "directory that holds alembic.ini and the migrations directory")
	rootCmd.PersistentFlags().String("alembic-bin", "", "alembic executable")
	rootCmd.PersistentFlags().String("log-format", "", "diagnostic log format (text, json)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug diagnostics")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", procedure.ErrUsage, err)
	})
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cmd, err := rootCmd.ExecuteContextC(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		if errors.Is(err, procedure.ErrUsage) {
			fmt.Fprint(os.Stderr, cmd.UsageString())
		}

		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	AppConfig = cfg
	Logger = newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose)

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workspace") {
		cfg.Workspace, _ = cmd.Flags().GetString("workspace")
	}

	if cmd.Flags().Changed("alembic-bin") {
		cfg.AlembicBin, _ = cmd.Flags().GetString("alembic-bin")
	}

	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
	}

	if cmd.Flags().Changed("verbose") {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
}

// newLogger builds the diagnostic logger; progress output does not go through it.
func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// requireSubcommand rejects invocations that name no subcommand, including
// "session-migrate <descriptor> <module>" without "upgrade".
func requireSubcommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: a command is required", procedure.ErrUsage)
	}

	return fmt.Errorf("%w: unknown command %q (to upgrade, run: session-migrate upgrade <connection-descriptor> <schema-module>)",
		procedure.ErrUsage, args[0])
}

// usageArgs wraps an argument check so its failures print usage text.
func usageArgs(check func(args []string) error) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if err := check(args); err != nil {
			if errors.Is(err, procedure.ErrUsage) {
				return err
			}

			return fmt.Errorf("%w: %w", procedure.ErrUsage, err)
		}

		return nil
	}
}
