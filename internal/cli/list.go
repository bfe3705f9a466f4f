package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/shaperate/internal/output"
	"github.com/wesleyorama2/shaperate/record"
)

var listCmd = &cobra.Command{
	Use:   "list [LOG_DIR]",
	Short: "List run records in the lobby",
	Long: `List scans the lobby directory and prints one line per run record: run ID,
status, start time, wall time, and tags. Records without a status and end
time are shown as unfinished, which is what a crashed process leaves behind.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logDir, err := resolveLogDir(args)
		if err != nil {
			return err
		}
		noColor, _ := cmd.Flags().GetBool("no-color")
		return listLobby(cmd, filepath.Join(logDir, "lobby"), noColor)
	},
}

func listLobby(cmd *cobra.Command, lobby string, noColor bool) error {
	paths, err := lobbyFiles(lobby)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(noColor)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrln(formatter.FormatError(path, err))
			continue
		}
		cmd.Println(formatter.FormatRun(runLine(data)))
	}
	return nil
}

// lobbyFiles returns the record files in the lobby, sorted by name. Temp
// files from in-flight atomic saves are skipped.
func lobbyFiles(lobby string) ([]string, error) {
	entries, err := os.ReadDir(lobby)
	if err != nil {
		return nil, fmt.Errorf("reading lobby %s: %w", lobby, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(lobby, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// runLine extracts the listing fields from a raw record document. Working on
// the raw JSON keeps listing tolerant of records written by other (newer or
// older) shaperate versions.
func runLine(data []byte) output.RunLine {
	line := output.RunLine{
		RunID:  gjson.GetBytes(data, "run_id").String(),
		Status: record.Status(gjson.GetBytes(data, "status").String()),
		Wall:   gjson.GetBytes(data, "time.wall").Float(),
	}

	// No status and no end marker means the process never got to finish the
	// run; readers classify that as unfinished.
	if line.Status == "" && !gjson.GetBytes(data, "end_time").Exists() {
		line.Status = record.StatusUnfinished
	}

	if start := gjson.GetBytes(data, "start_time").String(); start != "" {
		if ts, err := time.Parse(time.RFC3339Nano, start); err == nil {
			line.StartTime = ts
		}
	}
	for _, tag := range gjson.GetBytes(data, "tags").Array() {
		line.Tags = append(line.Tags, tag.String())
	}
	return line
}

func init() {
	listCmd.Flags().Bool("no-color", false, "Disable colored output")
}
