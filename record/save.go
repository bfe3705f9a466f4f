package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Filename returns the canonical file name for a run's record.
func Filename(id uuid.UUID) string {
	return id.String() + ".json"
}

// Save writes rec to <dir>/<run-id>.json.
//
// The document is written to a temporary sibling first and then renamed over
// the final path, so a reader scanning the directory never observes a
// partially written record. A crash between write and rename loses this
// update, not the previously saved version.
func Save(rec *RunRecord, dir string) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record: marshaling run %s: %w", rec.RunID, err)
	}

	final := filepath.Join(dir, Filename(rec.RunID))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("record: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("record: renaming %s: %w", tmp, err)
	}
	return nil
}

// Load reads a run record from path.
func Load(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("record: reading %s: %w", path, err)
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("record: parsing %s: %w", path, err)
	}
	return &rec, nil
}
