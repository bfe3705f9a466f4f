package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/shaperate/record"
)

func writeLobbyRecord(t *testing.T, lobby string, rec *record.RunRecord) {
	t.Helper()
	require.NoError(t, os.MkdirAll(lobby, 0o755))
	require.NoError(t, record.Save(rec, lobby))
}

func TestRunLine_CompletedRecord(t *testing.T) {
	now := time.Now()
	rec := &record.RunRecord{
		RunID:     uuid.New(),
		StartTime: now,
		EndTime:   &now,
		Status:    record.StatusCompleted,
		Tags:      []string{"sweep"},
		Time:      record.TimeRecord{Wall: 12.5},
	}
	data, err := os.ReadFile(saveToTemp(t, rec))
	require.NoError(t, err)

	line := runLine(data)
	assert.Equal(t, rec.RunID.String(), line.RunID)
	assert.Equal(t, record.StatusCompleted, line.Status)
	assert.Equal(t, 12.5, line.Wall)
	assert.Equal(t, []string{"sweep"}, line.Tags)
	assert.WithinDuration(t, now, line.StartTime, time.Second)
}

func TestRunLine_CrashLeftoverIsUnfinished(t *testing.T) {
	rec := &record.RunRecord{RunID: uuid.New(), StartTime: time.Now()}
	data, err := os.ReadFile(saveToTemp(t, rec))
	require.NoError(t, err)

	line := runLine(data)
	assert.Equal(t, record.StatusUnfinished, line.Status,
		"no status and no end_time means the process never finished the run")
}

func saveToTemp(t *testing.T, rec *record.RunRecord) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, record.Save(rec, dir))
	return filepath.Join(dir, record.Filename(rec.RunID))
}

func TestListLobby(t *testing.T) {
	logDir := t.TempDir()
	lobby := filepath.Join(logDir, "lobby")

	done := &record.RunRecord{RunID: uuid.New(), StartTime: time.Now(), Status: record.StatusCompleted}
	crashed := &record.RunRecord{RunID: uuid.New(), StartTime: time.Now()}
	writeLobbyRecord(t, lobby, done)
	writeLobbyRecord(t, lobby, crashed)

	// Temp files from in-flight saves are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(lobby, "partial.json.tmp"), []byte("{"), 0o644))

	var out, errOut bytes.Buffer
	listCmd.SetOut(&out)
	listCmd.SetErr(&errOut)

	require.NoError(t, listLobby(listCmd, lobby, true))

	assert.Contains(t, out.String(), done.RunID.String())
	assert.Contains(t, out.String(), "completed")
	assert.Contains(t, out.String(), crashed.RunID.String())
	assert.Contains(t, out.String(), "unfinished")
	assert.Empty(t, errOut.String())
}

func TestListLobby_MissingDir(t *testing.T) {
	err := listLobby(listCmd, filepath.Join(t.TempDir(), "lobby"), true)
	assert.Error(t, err)
}
