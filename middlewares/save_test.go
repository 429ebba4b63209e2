package middlewares

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSaveEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewSave(&SaveConfig{}))
}

func TestSaveWritesExecutionFiles(t *testing.T) {
	t.Parallel()
	ctx, task := setupTestContext(t)
	task.Name = "tests"

	dir := t.TempDir()

	ctx.Start()
	_, _ = ctx.Execution.OutputStream.Write([]byte("42 passed"))

	m := NewSave(&SaveConfig{SaveFolder: dir})
	require.NoError(t, m.Run(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var stdout, stderr, jsonDump bool
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".json":
			jsonDump = true
		case ".log":
			if filepath.Ext(e.Name()[:len(e.Name())-4]) == ".stdout" {
				stdout = true
			} else {
				stderr = true
			}
		}
	}
	assert.True(t, stdout, "missing stdout log")
	assert.True(t, stderr, "missing stderr log")
	assert.True(t, jsonDump, "missing json dump")
}

func TestSaveOnlyOnErrorSkipsSuccess(t *testing.T) {
	t.Parallel()
	ctx, task := setupTestContext(t)
	task.Name = "tests"

	dir := t.TempDir()

	ctx.Start()

	m := NewSave(&SaveConfig{SaveFolder: dir, SaveOnlyOnError: BoolPtr(true)})
	require.NoError(t, m.Run(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveRejectsSystemFolder(t *testing.T) {
	t.Parallel()

	m := &Save{SaveConfig{SaveFolder: "/etc/finbench"}}
	ctx, _ := setupTestContext(t)
	require.Error(t, m.saveToDisk(ctx))
}
