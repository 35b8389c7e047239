package snapshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/taskver/internal/gittest"
	"github.com/spachava753/taskver/internal/models"
	"github.com/spachava753/taskver/internal/repocache"
	"github.com/spachava753/taskver/internal/snapshot"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		desc   string
		want   string
		wantOK bool
	}{
		{"v1.4.0", "1.4", true},
		{"release-2.3.1-4-gabc1234", "2.3", true},
		{"3.0", "3.0", true},
		{"v10.22.333-rc1", "10.22", true},
		{"1.2.3.4", "1.2", true},
		{"nightly", "", false},
		{"v1", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, ok := snapshot.ParseVersion(tt.desc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVersionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	majorMinor := regexp.MustCompile(`^\d+\.\d+$`)

	properties.Property("tagged descriptors yield major.minor", prop.ForAll(
		func(major, minor, patch, ahead int) bool {
			desc := fmt.Sprintf("v%d.%d.%d-%d-gdeadbee", major, minor, patch, ahead)
			got, ok := snapshot.ParseVersion(desc)
			return ok && got == fmt.Sprintf("%d.%d", major, minor)
		},
		gen.IntRange(0, 999), gen.IntRange(0, 999), gen.IntRange(0, 999), gen.IntRange(1, 50)))

	properties.Property("any accepted version is major.minor", prop.ForAll(
		func(desc string) bool {
			got, ok := snapshot.ParseVersion(desc)
			return !ok || majorMinor.MatchString(got)
		},
		gen.AnyString()))

	properties.TestingRun(t)
}

func TestWorkspaceName(t *testing.T) {
	assert.Equal(t, "django__django-11099", snapshot.WorkspaceName("django__django-11099"))

	a := snapshot.WorkspaceName("a/b")
	b := snapshot.WorkspaceName("a_b")
	assert.NotEqual(t, a, b, "sanitized names stay distinct")
	assert.NotContains(t, a, "/")

	for _, key := range []string{"", "..", "../../etc", "/abs/path"} {
		name := snapshot.WorkspaceName(key)
		assert.NotEmpty(t, name)
		assert.NotEqual(t, "..", name)
		assert.NotContains(t, name, "/")
	}
}

func TestWithWorkspaceRemovesDirectory(t *testing.T) {
	root := t.TempDir()

	var seen string
	err := snapshot.WithWorkspace(root, "task-1", func(ws *snapshot.Workspace) error {
		seen = ws.Dir()
		return os.WriteFile(filepath.Join(ws.Dir(), "f"), []byte("x"), 0644)
	})
	require.NoError(t, err)
	assert.NoDirExists(t, seen)

	err = snapshot.WithWorkspace(root, "task-2", func(ws *snapshot.Workspace) error {
		seen = ws.Dir()
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.NoDirExists(t, seen)

	assert.Panics(t, func() {
		snapshot.WithWorkspace(root, "task-3", func(ws *snapshot.Workspace) error {
			seen = ws.Dir()
			panic("fault")
		})
	})
	assert.NoDirExists(t, seen)
}

func TestAcquireWorkspaceIsExclusive(t *testing.T) {
	root := t.TempDir()

	ws, err := snapshot.AcquireWorkspace(root, "same")
	require.NoError(t, err)
	defer ws.Release()

	_, err = snapshot.AcquireWorkspace(root, "same")
	assert.ErrorIs(t, err, os.ErrExist)
}

// fixture is an upstream repository with a tagged commit, an untagged root
// commit, and a cache populated from it.
type fixture struct {
	tagged   string
	untagged string
	later    string
	locs     repocache.Locations
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	src := gittest.Init(t, filepath.Join(root, "upstream"))

	var f fixture
	f.untagged = src.Commit("README", "one")
	f.tagged = src.Commit("README", "two")
	src.Tag("v2.3.1")
	f.later = src.Commit("README", "three")

	cache := repocache.New(filepath.Join(root, "cache"), func(string) string { return src.Dir })
	_, err := cache.Ensure(context.Background(), "x/y")
	require.NoError(t, err)
	f.locs = cache.Locations()
	return f
}

func task(id, commit string) models.Task {
	rec := models.Record{
		"repo":        json.RawMessage(`"x/y"`),
		"base_commit": json.RawMessage(`"` + commit + `"`),
		"instance_id": json.RawMessage(`"` + id + `"`),
		"extra":       json.RawMessage(`{"keep": [1, 2]}`),
	}
	tk, _ := models.TaskFromRecord(rec)
	return tk
}

func TestExtract(t *testing.T) {
	f := newFixture(t)

	for _, mode := range []models.CopyMode{models.CopyModeCopy, models.CopyModeClone} {
		t.Run(string(mode), func(t *testing.T) {
			root := t.TempDir()
			ex := snapshot.NewExtractor(root, mode)

			rec, err := ex.Extract(context.Background(), task("x__y-1", f.tagged), f.locs)
			require.NoError(t, err)
			assert.JSONEq(t, `"2.3"`, string(rec["version"]))
			assert.JSONEq(t, `{"keep": [1, 2]}`, string(rec["extra"]))
			assert.JSONEq(t, `"x__y-1"`, string(rec["instance_id"]))

			rec, err = ex.Extract(context.Background(), task("x__y-2", f.later), f.locs)
			require.NoError(t, err)
			assert.JSONEq(t, `"2.3"`, string(rec["version"]), "nearest tag of a later commit")

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries, "workspaces are removed")
		})
	}
}

func TestExtractFailures(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		task models.Task
		locs repocache.Locations
		want models.ErrorType
	}{
		{
			name: "no tag reachable",
			task: task("t1", f.untagged),
			locs: f.locs,
			want: models.ErrDescribeFailed,
		},
		{
			name: "unknown commit",
			task: task("t2", "0123456789abcdef0123456789abcdef01234567"),
			locs: f.locs,
			want: models.ErrCheckoutFailed,
		},
		{
			name: "commit names a tracked file",
			task: task("t5", "README"),
			locs: f.locs,
			want: models.ErrCheckoutFailed,
		},
		{
			name: "repository not cached",
			task: task("t3", f.tagged),
			locs: repocache.NewLocations(nil),
			want: models.ErrRepoCacheMissing,
		},
		{
			name: "cache directory gone",
			task: task("t4", f.tagged),
			locs: repocache.NewLocations(map[string]string{"x/y": filepath.Join(t.TempDir(), "missing")}),
			want: models.ErrRepoCacheMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			ex := snapshot.NewExtractor(root, models.CopyModeCopy)

			rec, err := ex.Extract(context.Background(), tt.task, tt.locs)
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.Equal(t, tt.want, models.ErrorTypeOf(err))

			var ee *models.ExtractionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.task.InstanceID, ee.InstanceID)

			entries, _ := os.ReadDir(root)
			assert.Empty(t, entries)
		})
	}
}

func TestExtractCloneFailed(t *testing.T) {
	failing := repocache.ClonerFunc(func(ctx context.Context, url, dest string) error {
		return errors.New("could not resolve host")
	})
	cache := repocache.New(t.TempDir(), func(repo string) string { return repo }, repocache.WithCloner(failing))
	locs := cache.Populate(context.Background(), []models.Task{{Repo: "x/y"}})

	ex := snapshot.NewExtractor(t.TempDir(), models.CopyModeCopy)
	_, err := ex.Extract(context.Background(), task("t1", "abc"), locs)
	assert.Equal(t, models.ErrRepoCloneFailed, models.ErrorTypeOf(err))
	assert.ErrorContains(t, err, "could not resolve host")
}

func TestExtractUnrecognizedVersion(t *testing.T) {
	root := t.TempDir()
	src := gittest.Init(t, filepath.Join(root, "upstream"))
	sha := src.Commit("README", "one")
	src.Tag("nightly")

	ex := snapshot.NewExtractor(filepath.Join(root, "ws"), models.CopyModeCopy)
	locs := repocache.NewLocations(map[string]string{"x/y": src.Dir})

	_, err := ex.Extract(context.Background(), task("t1", sha), locs)
	assert.Equal(t, models.ErrVersionUnrecognized, models.ErrorTypeOf(err))
}

func TestExtractTimeout(t *testing.T) {
	f := newFixture(t)
	ex := snapshot.NewExtractor(t.TempDir(), models.CopyModeClone)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := ex.Extract(ctx, task("t1", f.tagged), f.locs)
	assert.Equal(t, models.ErrTaskTimeout, models.ErrorTypeOf(err))
}
