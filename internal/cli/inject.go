package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aqasim81/session-migrate/internal/procedure"
	"github.com/aqasim81/session-migrate/internal/revision"
	"github.com/aqasim81/session-migrate/internal/workspace"
)

var injectCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "inject <schema-module>",
	Short: "Add the schema module import to every migration step file",
	Long: `Inject makes every step file in the workspace's versions directory begin
with "import <schema-module>". Files that already start with the line are
left untouched, so running it twice changes nothing.`,
	Args: usageArgs(func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected 1 argument, got %d", len(args))
		}

		return procedure.ValidateModulePath(args[0])
	}),
	RunE: runInject,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) error {
	cfg := AppConfig
	module := args[0]

	ws, err := workspace.New(cfg.Workspace, cfg.ConfigFile, cfg.ScriptDir)
	if err != nil {
		return err
	}

	changed, err := revision.InjectAll(ws.VersionsPath(), module)
	if err != nil {
		return fmt.Errorf("injecting %s: %w", revision.ImportLine(module), err)
	}

	out := cmd.OutOrStdout()

	if len(changed) == 0 {
		fmt.Fprintln(out, "All step files already import the schema module.")

		return nil
	}

	for _, path := range changed {
		rel, relErr := filepath.Rel(ws.Root, path)
		if relErr != nil {
			rel = path
		}

		fmt.Fprintf(out, "  injected: %s\n", rel)
	}

	fmt.Fprintf(out, "\n%d step file(s) updated.\n", len(changed))

	return nil
}
