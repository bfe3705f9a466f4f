// Package cli implements the shaperate command-line tool.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/shaperate/internal/config"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "shaperate",
	Short:   "Track and record experiment runs",
	Version: version,
	Long: `Shaperate instruments nested runs of work with wall/CPU time, memory, and
utilization statistics, and persists in-progress and completed run records
to a log directory so external tooling can observe long-running or
crash-prone processes.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return RootCmd.Execute()
}

// resolveLogDir picks the log directory from the positional argument or,
// absent one, from the configuration file in the working directory.
func resolveLogDir(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(config.DefaultFile)
	if err != nil {
		return "", fmt.Errorf("no LOG_DIR given: %w", err)
	}
	if cfg.LogDir == "" {
		return "", fmt.Errorf("no LOG_DIR given and %s sets no log_dir", config.DefaultFile)
	}
	return cfg.LogDir, nil
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	// Add subcommands to root command
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(checkCmd)
}
