package snapshot

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxWorkspaceNameLength = 96

var (
	safeName   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	unsafeRune = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Workspace is a task-exclusive scratch directory holding one snapshot.
type Workspace struct {
	dir string
}

// Dir returns the workspace path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Release removes the workspace and everything in it.
func (w *Workspace) Release() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("removing workspace %s: %w", w.dir, err)
	}
	return nil
}

// WorkspaceName maps a task key to a directory name. Keys that are already
// safe are used unchanged; any other key is sanitized and suffixed with a
// hash of the original so that distinct keys never share a directory.
func WorkspaceName(key string) string {
	if safeName.MatchString(key) && len(key) <= maxWorkspaceNameLength {
		return key
	}

	h := sha256.Sum256([]byte(key))
	suffix := fmt.Sprintf("%x", h[:6])

	name := strings.Trim(unsafeRune.ReplaceAllString(key, "_"), "._-")
	if len(name) > maxWorkspaceNameLength-len(suffix)-1 {
		name = name[:maxWorkspaceNameLength-len(suffix)-1]
	}
	if name == "" {
		return "ws-" + suffix
	}
	return name + "-" + suffix
}

// AcquireWorkspace creates the workspace for key under root. It fails if the
// directory already exists, so two holders can never share one.
func AcquireWorkspace(root, key string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	dir := filepath.Join(root, WorkspaceName(key))
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// WithWorkspace acquires the workspace for key, runs fn in it and removes
// it on every exit path, including a panic in fn.
func WithWorkspace(root, key string, fn func(ws *Workspace) error) error {
	ws, err := AcquireWorkspace(root, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Release(); err != nil {
			slog.Error("failed to remove workspace", "key", key, "error", err)
		}
	}()
	return fn(ws)
}
