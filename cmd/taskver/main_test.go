package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCommandAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	tasks := filepath.Join(dir, "tasks.json")
	require.NoError(t, os.WriteFile(tasks, []byte(`[]`), 0644))
	outDir := filepath.Join(dir, "out")

	cmd := extractCmd()
	cmd.SetArgs([]string{
		"-i", tasks,
		"-t", filepath.Join(dir, "testbed"),
		"-w", "2",
		"-d", outDir,
		"--output-format", "jsonl",
		"--log-level", "error",
	})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.FileExists(t, filepath.Join(outDir, "tasks_versions_by_git.jsonl"))
}

func TestExtractCommandRejectsInvalidFlags(t *testing.T) {
	dir := t.TempDir()
	tasks := filepath.Join(dir, "tasks.json")
	require.NoError(t, os.WriteFile(tasks, []byte(`[]`), 0644))

	cmd := extractCmd()
	cmd.SetArgs([]string{"-i", tasks, "-t", filepath.Join(dir, "testbed"), "--copy-mode", "rsync", "--log-level", "error"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "CopyMode")
}

func TestMergeCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lite")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lite_versions_by_git.json"), []byte(`[{"pull_number": 1}]`), 0644))

	cmd := mergeCmd()
	cmd.SetArgs([]string{dir, "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.FileExists(t, filepath.Join(dir, "lite_versions_final.json"))
}
