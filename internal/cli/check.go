package cli

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/shaperate/internal/output"
)

//go:embed runrecord_schema.json
var runRecordSchema string

var checkCmd = &cobra.Command{
	Use:   "check [LOG_DIR]",
	Short: "Validate run records in the lobby",
	Long: `Check validates every record file in the lobby against the run record
schema and exits non-zero if any record is malformed. Because records are
written atomically, a malformed record indicates external tampering or a
version mismatch, not an interrupted write.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logDir, err := resolveLogDir(args)
		if err != nil {
			return err
		}
		noColor, _ := cmd.Flags().GetBool("no-color")
		return checkLobby(cmd, filepath.Join(logDir, "lobby"), noColor)
	},
}

func checkLobby(cmd *cobra.Command, lobby string, noColor bool) error {
	schema, err := compileRunRecordSchema()
	if err != nil {
		return err
	}
	paths, err := lobbyFiles(lobby)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(noColor)
	invalid := 0
	for _, path := range paths {
		if err := checkRecordFile(schema, path); err != nil {
			invalid++
			cmd.PrintErrln(formatter.FormatError(path, err))
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d record(s) invalid", invalid, len(paths))
	}
	cmd.Printf("%d record(s) valid\n", len(paths))
	return nil
}

func compileRunRecordSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("runrecord_schema.json", strings.NewReader(runRecordSchema)); err != nil {
		return nil, fmt.Errorf("loading run record schema: %w", err)
	}
	schema, err := compiler.Compile("runrecord_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling run record schema: %w", err)
	}
	return schema, nil
}

func checkRecordFile(schema *jsonschema.Schema, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return schema.Validate(doc)
}

func init() {
	checkCmd.Flags().Bool("no-color", false, "Disable colored output")
}
