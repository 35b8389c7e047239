package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spachava753/taskver/internal/models"
)

// WriteToPath writes records to path, as JSONL when the path is
// line-delimited and as an indented JSON array otherwise. Parent
// directories are created. The file is written to a temporary sibling and
// renamed into place so a failed write never leaves a truncated file.
func WriteToPath(path string, records []models.Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting output permissions: %w", err)
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if IsLineDelimited(path) {
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				tmp.Close()
				return fmt.Errorf("encoding record: %w", err)
			}
		}
	} else {
		if records == nil {
			records = []models.Record{}
		}
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			tmp.Close()
			return fmt.Errorf("encoding records: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming output into place: %w", err)
	}
	return nil
}

// CheckWritable verifies that files can be created in dir, creating it if
// needed.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".taskver-probe-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
