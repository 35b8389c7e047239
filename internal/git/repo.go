// Package git runs git subprocesses against a repository on disk.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandError is returned when a git subprocess fails.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Repository is a git working copy or bare repository at Dir.
type Repository struct {
	dir string
}

// Open returns a Repository for dir without checking it.
func Open(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns where the repository lives on disk.
func (r *Repository) Dir() string {
	return r.dir
}

// Run runs a git command in r and returns its trimmed stdout.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return run(ctx, r.dir, args...)
}

// IsRepository reports whether dir is the top of a usable git working copy.
// A plain directory nested inside some other repository does not count.
func IsRepository(ctx context.Context, dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return false
	}
	_, err := run(ctx, dir, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

// Clone clones url into dest. dest must not exist.
func Clone(ctx context.Context, url, dest string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating clone parent: %w", err)
	}
	slog.Debug("cloning repository", "url", url, "dest", dest)
	if _, err := run(ctx, "", "clone", "--quiet", url, dest); err != nil {
		return nil, err
	}
	return Open(dest), nil
}

// CloneLocal makes a working copy of src at dest without checking out any
// files. Objects are hardlinked, so this costs little disk or time.
func CloneLocal(ctx context.Context, src, dest string) (*Repository, error) {
	if _, err := run(ctx, "", "clone", "--quiet", "--local", "--no-checkout", src, dest); err != nil {
		return nil, err
	}
	return Open(dest), nil
}

// Checkout detaches HEAD at rev and updates the working tree. rev must
// resolve to a commit; a string that only names a tracked path is rejected
// rather than restored as a pathspec.
func (r *Repository) Checkout(ctx context.Context, rev string) error {
	if strings.HasPrefix(rev, "-") {
		return fmt.Errorf("invalid revision %q", rev)
	}
	sha, err := r.Run(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return fmt.Errorf("resolving %q to a commit: %w", rev, err)
	}
	_, err = r.Run(ctx, "-c", "advice.detachedHead=false", "checkout", "--quiet", "--force", "--detach", sha, "--")
	return err
}

// Describe returns `git describe --tags` for HEAD, e.g.
// "release-2.3.1-4-gabc1234".
func (r *Repository) Describe(ctx context.Context) (string, error) {
	return r.Run(ctx, "describe", "--tags")
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	// Never block on a credential prompt inside a worker.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return "", &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}
