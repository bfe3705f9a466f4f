package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// gitignoreBody keeps in-progress lobby files out of version control. The
// trailing comment marks where downstream tooling appends its own ignores.
const gitignoreBody = `# lobby holds the in-progress run files
/lobby/
# dvc will add its ignores below here
`

var initCmd = &cobra.Command{
	Use:   "init LOG_DIR",
	Short: "Initialize a run log directory",
	Long: `Init creates the run log directory (if needed), its lobby subdirectory for
in-progress run records, and a .gitignore that excludes the lobby. An
existing .gitignore is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return initLogDir(args[0])
	},
}

func initLogDir(logDir string) error {
	log := slog.Default()

	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		log.Info("creating log dir", "path", logDir)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", logDir, err)
		}
	}

	ignore := filepath.Join(logDir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		log.Warn("already exists, not updating", "path", ignore)
	} else {
		log.Info("writing gitignore", "path", ignore)
		if err := os.WriteFile(ignore, []byte(gitignoreBody), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", ignore, err)
		}
	}

	lobby := filepath.Join(logDir, "lobby")
	if err := os.MkdirAll(lobby, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", lobby, err)
	}
	return nil
}
