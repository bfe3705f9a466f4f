package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRecord_UnsetOptionalsOmitted(t *testing.T) {
	rec := &RunRecord{
		RunID:     uuid.New(),
		StartTime: time.Now(),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	// In-progress records have no terminal markers, and absent statistics are
	// omitted rather than serialized as null.
	for _, key := range []string{"status", "end_time", "parent_id", "cpu", "memory", "power", "machine", "tags", "meta"} {
		_, present := doc[key]
		assert.False(t, present, "unset %q should be omitted", key)
	}
	assert.Contains(t, doc, "run_id")
	assert.Contains(t, doc, "start_time")
	assert.Contains(t, doc, "time")
}

func TestRunRecord_FieldNames(t *testing.T) {
	wall := 1.5
	usr := 0.25
	peak := 4096.0
	avg := 42.0
	parent := uuid.New()

	rec := &RunRecord{
		RunID:     uuid.New(),
		ParentID:  &parent,
		StartTime: time.Now(),
		Status:    StatusCompleted,
		Time:      TimeRecord{Wall: wall, SelfCPUUsr: &usr},
		CPU:       &CPURecord{AvgProcessUtil: &avg},
		Memory:    &MemoryRecord{PeakRSS: &peak},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	for _, key := range []string{
		`"run_id"`, `"parent_id"`, `"start_time"`, `"status":"completed"`,
		`"wall":1.5`, `"self_cpu_usr":0.25`, `"avg_process_util":42`, `"peak_rss":4096`,
	} {
		assert.Contains(t, string(data), key)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().Truncate(time.Second)
	rec := &RunRecord{
		RunID:     uuid.New(),
		StartTime: now,
		Tags:      []string{"alpha", "sweep"},
		Meta:      Meta{"fold": float64(3)},
		Status:    StatusCompleted,
		EndTime:   &now,
	}

	require.NoError(t, Save(rec, dir))

	path := filepath.Join(dir, Filename(rec.RunID))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, rec.RunID, loaded.RunID)
	assert.Equal(t, rec.Tags, loaded.Tags)
	assert.Equal(t, rec.Meta, loaded.Meta)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.True(t, rec.StartTime.Equal(loaded.StartTime))
}

func TestSave_NoTempFileRemains(t *testing.T) {
	dir := t.TempDir()
	rec := &RunRecord{RunID: uuid.New(), StartTime: time.Now()}

	require.NoError(t, Save(rec, dir))
	require.NoError(t, Save(rec, dir), "resaving overwrites atomically")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Filename(rec.RunID), entries[0].Name())
}

func TestSave_ErrorPropagates(t *testing.T) {
	rec := &RunRecord{RunID: uuid.New(), StartTime: time.Now()}
	err := Save(rec, filepath.Join(t.TempDir(), "missing", "dir"))
	assert.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
