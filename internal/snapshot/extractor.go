// Package snapshot derives the version of a task by checking out its commit
// in a disposable workspace and reading the nearest tag.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/otiai10/copy"

	"github.com/spachava753/taskver/internal/git"
	"github.com/spachava753/taskver/internal/models"
	"github.com/spachava753/taskver/internal/repocache"
)

// Extractor derives versions for tasks. One Extractor is shared by all
// workers of a run; it holds no per-task state.
type Extractor struct {
	root string
	mode models.CopyMode
}

// NewExtractor creates an Extractor whose workspaces live under root.
func NewExtractor(root string, mode models.CopyMode) *Extractor {
	if mode == "" {
		mode = models.CopyModeCopy
	}
	return &Extractor{root: root, mode: mode}
}

// Root returns the directory holding the workspaces.
func (e *Extractor) Root() string {
	return e.root
}

// Extract checks out task.BaseCommit from the cached repository in a fresh
// workspace and returns the task's fields plus "version". Failures are
// returned as *models.ExtractionError. The workspace is always removed.
func (e *Extractor) Extract(ctx context.Context, task models.Task, repos repocache.Locations) (models.Record, error) {
	cached, ok := repos.Lookup(task.Repo)
	if !ok {
		if err := repos.Failure(task.Repo); err != nil {
			return nil, e.fail(ctx, task, models.ErrRepoCloneFailed, err)
		}
		return nil, e.fail(ctx, task, models.ErrRepoCacheMissing, fmt.Errorf("%w: %s", repocache.ErrNotCached, task.Repo))
	}
	if _, err := os.Stat(cached); err != nil {
		return nil, e.fail(ctx, task, models.ErrRepoCacheMissing, err)
	}

	var version string
	err := WithWorkspace(e.root, task.InstanceID, func(ws *Workspace) error {
		repo, err := e.materialize(ctx, cached, ws.Dir())
		if err != nil {
			return e.fail(ctx, task, models.ErrCopyFailed, err)
		}

		if err := repo.Checkout(ctx, task.BaseCommit); err != nil {
			return e.fail(ctx, task, models.ErrCheckoutFailed, err)
		}

		desc, err := repo.Describe(ctx)
		if err != nil {
			return e.fail(ctx, task, models.ErrDescribeFailed, err)
		}

		v, ok := ParseVersion(desc)
		if !ok {
			return e.fail(ctx, task, models.ErrVersionUnrecognized, fmt.Errorf("unrecognized version %q", desc))
		}

		slog.Debug("derived version", "instance_id", task.InstanceID, "describe", desc, "version", v)
		version = v
		return nil
	})
	if err != nil {
		var ee *models.ExtractionError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, e.fail(ctx, task, models.ErrWorkspaceFailed, err)
	}

	rec, err := task.WithVersion(version)
	if err != nil {
		return nil, e.fail(ctx, task, models.ErrInternalError, err)
	}
	return rec, nil
}

// materialize places a copy of the cached repository at dir, which exists
// and is empty.
func (e *Extractor) materialize(ctx context.Context, cached, dir string) (*git.Repository, error) {
	switch e.mode {
	case models.CopyModeClone:
		return git.CloneLocal(ctx, cached, dir)
	default:
		err := copy.Copy(cached, dir, copy.Options{
			OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
		})
		if err != nil {
			return nil, fmt.Errorf("copying %s: %w", cached, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return git.Open(dir), nil
	}
}

func (e *Extractor) fail(ctx context.Context, task models.Task, typ models.ErrorType, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		typ = models.ErrTaskTimeout
	}
	return &models.ExtractionError{Type: typ, InstanceID: task.InstanceID, Err: err}
}
