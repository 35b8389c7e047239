package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/taskver/internal/dataset"
	"github.com/spachava753/taskver/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadFromPath_JSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	writeFile(t, path, `[
  {"repo": "x/y", "base_commit": "abc", "instance_id": "t1", "pull_number": 5},
  {"repo": "x/y", "base_commit": "def", "instance_id": "t2", "meta": {"k": [1, 2]}}
]`)

	records, err := dataset.LoadFromPath(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	id, err := records[0].String(models.FieldInstanceID)
	require.NoError(t, err)
	assert.Equal(t, "t1", id)
	assert.JSONEq(t, `{"k": [1, 2]}`, string(records[1]["meta"]))
}

func TestLoadFromPath_JSONL(t *testing.T) {
	for _, name := range []string{"tasks.jsonl", "tasks.jsonl.all", "TASKS.JSONL"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			writeFile(t, path, "{\"instance_id\": \"a\"}\n\n   \n{\"instance_id\": \"b\"}\n")

			records, err := dataset.LoadFromPath(path)
			require.NoError(t, err)
			require.Len(t, records, 2)
			id, err := records[1].String(models.FieldInstanceID)
			require.NoError(t, err)
			assert.Equal(t, "b", id)
		})
	}
}

func TestLoadFromPath_EmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	writeFile(t, path, "[]\n")

	records, err := dataset.LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadFromPath_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed array", "tasks.json", `[{"instance_id": "a"`},
		{"array of scalars", "tasks.json", `[1, 2]`},
		{"null element", "tasks.json", `[null]`},
		{"malformed line", "tasks.jsonl", "{\"instance_id\": \"a\"}\n{oops}\n"},
		{"scalar line", "tasks.jsonl", "42\n"},
		{"object instead of array", "tasks.json", `{"instance_id": "a"}`},
		{"top-level null", "tasks.json", `null`},
		{"trailing garbage", "tasks.json", `[{"instance_id": "a"}] garbage`},
		{"two arrays", "tasks.json", `[{"instance_id": "a"}][{"instance_id": "b"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)
			_, err := dataset.LoadFromPath(path)
			assert.Error(t, err)
		})
	}

	_, err := dataset.LoadFromPath(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteToPath_RoundTrip(t *testing.T) {
	records := []models.Record{
		{"instance_id": []byte(`"t1"`), "version": []byte(`"2.3"`), "text": []byte(`"a < b && c"`)},
		{"instance_id": []byte(`"t2"`), "pull_number": []byte(`7`)},
	}

	for _, name := range []string{"out/result.json", "out/result.jsonl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, dataset.WriteToPath(path, records))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "a < b && c", "HTML characters must not be escaped")

			loaded, err := dataset.LoadFromPath(path)
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.JSONEq(t, `7`, string(loaded[1]["pull_number"]))

			// No temp files left behind
			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestWriteToPath_EmptyJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, dataset.WriteToPath(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestCheckWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, dataset.CheckWritable(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A regular file cannot serve as an output directory
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	assert.Error(t, dataset.CheckWritable(filepath.Join(file, "out")))
}

func TestFindVersionFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "django")

	path, err := dataset.FindVersionFile(dir, dataset.SuffixGitHub)
	require.NoError(t, err)
	assert.Empty(t, path, "missing directory yields no file")

	writeFile(t, filepath.Join(dir, "b_versions_by_git.jsonl"), "")
	writeFile(t, filepath.Join(dir, "a_versions_by_github.jsonl"), "")
	writeFile(t, filepath.Join(dir, "z_versions_by_github.json"), "")

	// .json is preferred over .jsonl for globbed files
	path, err = dataset.FindVersionFile(dir, dataset.SuffixGitHub)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "z_versions_by_github.json"), path)

	// _versions_by_git must not match _versions_by_github files
	path, err = dataset.FindVersionFile(dir, dataset.SuffixGit)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b_versions_by_git.jsonl"), path)

	// The fixed name wins over globbed files
	writeFile(t, filepath.Join(dir, "django_versions_by_github.jsonl"), "")
	path, err = dataset.FindVersionFile(dir, dataset.SuffixGitHub)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "django_versions_by_github.jsonl"), path)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		outDir string
		ext    string
		want   string
	}{
		{"json next to input", "data/django.json", "", ".json", "data/django_versions_by_git.json"},
		{"jsonl to out dir", "data/django.jsonl", "out", ".json", "out/django_versions_by_git.json"},
		{"jsonl.all", "data/django.jsonl.all", "", ".jsonl", "data/django_versions_by_git.jsonl"},
		{"other extension", "data/django.txt", "", ".json", "data/django_versions_by_git.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataset.OutputPath(tt.input, tt.outDir, dataset.SuffixGit, tt.ext)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}
