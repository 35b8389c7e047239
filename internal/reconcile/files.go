package reconcile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spachava753/taskver/internal/dataset"
	"github.com/spachava753/taskver/internal/models"
)

// MergeDir merges the "_versions_by_github" file in dir (primary) with the
// "_versions_by_git" file (secondary) and writes
// "<dir name>_versions_final<ext>" into dir. The extension follows the
// primary file, else the secondary, else ".json". A missing input counts as
// empty; an input that cannot be parsed is an error.
func MergeDir(dir string) (*models.MergeSummary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input is not a directory: %s", dir)
	}

	summary := &models.MergeSummary{}
	ext := ""

	primary, primaryPath, err := readVersionFile(dir, dataset.SuffixGitHub)
	if err != nil {
		return nil, err
	}
	if primaryPath != "" {
		summary.PrimaryPath = primaryPath
		ext = filepath.Ext(primaryPath)
	}

	secondary, secondaryPath, err := readVersionFile(dir, dataset.SuffixGit)
	if err != nil {
		return nil, err
	}
	if secondaryPath != "" {
		summary.SecondaryPath = secondaryPath
		if ext == "" {
			ext = filepath.Ext(secondaryPath)
		}
	}
	if ext == "" {
		ext = ".json"
	}

	merged := Merge(primary, secondary)

	base := filepath.Base(filepath.Clean(dir))
	summary.OutputPath = filepath.Join(dir, base+dataset.SuffixFinal+ext)
	if err := dataset.WriteToPath(summary.OutputPath, merged); err != nil {
		return nil, err
	}

	summary.Primary = len(primary)
	summary.Total = len(merged)
	summary.Added = summary.Total - summary.Primary

	slog.Info("merge complete",
		"primary", summary.Primary,
		"new", summary.Added,
		"total", summary.Total,
		"path", summary.OutputPath)
	return summary, nil
}

func readVersionFile(dir, suffix string) ([]models.Record, string, error) {
	path, err := dataset.FindVersionFile(dir, suffix)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		slog.Info("version file not found, treating as empty", "suffix", suffix, "dir", dir)
		return nil, "", nil
	}

	records, err := dataset.LoadFromPath(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	slog.Info("using version file", "path", path, "records", len(records))
	return records, path, nil
}
