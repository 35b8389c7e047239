package task

import (
	"log/slog"

	"github.com/spachava753/taskver/internal/dataset"
	"github.com/spachava753/taskver/internal/models"
)

// Dedup keeps the first task for each instance_id, preserving order, and
// returns the number of tasks dropped.
func Dedup(tasks []models.Task) ([]models.Task, int) {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.InstanceID]; ok {
			slog.Warn("duplicate instance_id, keeping first occurrence", "instance_id", t.InstanceID)
			continue
		}
		seen[t.InstanceID] = struct{}{}
		out = append(out, t)
	}
	return out, len(tasks) - len(out)
}

// ProcessedIDs returns the instance_ids recorded in the first
// "*_versions_by_github" file found in dir, and that file's path. An empty
// dir, a missing file or an unreadable file yields no ids; read errors are
// logged as warnings.
func ProcessedIDs(dir string) (map[string]struct{}, string) {
	if dir == "" {
		return nil, ""
	}
	path, err := dataset.GlobVersionFile(dir, dataset.SuffixGitHub)
	if err != nil {
		slog.Warn("could not search for processed tasks", "dir", dir, "error", err)
		return nil, ""
	}
	if path == "" {
		return nil, ""
	}

	records, err := dataset.LoadFromPath(path)
	if err != nil {
		slog.Warn("could not read processed tasks", "path", path, "error", err)
		return nil, path
	}

	ids := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id, err := rec.String(models.FieldInstanceID)
		if err != nil || id == "" {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, path
}

// FilterProcessed drops the tasks already present in the previous stage's
// output under dir and returns the remaining tasks and the number dropped.
func FilterProcessed(tasks []models.Task, dir string) ([]models.Task, int) {
	ids, path := ProcessedIDs(dir)
	if len(ids) == 0 {
		return tasks, 0
	}

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := ids[t.InstanceID]; ok {
			continue
		}
		out = append(out, t)
	}
	skipped := len(tasks) - len(out)
	slog.Info("skipped tasks already processed", "count", skipped, "path", path)
	return out, skipped
}
