package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Suffixes of the version files exchanged between pipeline stages.
const (
	SuffixGitHub = "_versions_by_github"
	SuffixGit    = "_versions_by_git"
	SuffixFinal  = "_versions_final"
)

// recordExts are tried in order when looking for a version file.
var recordExts = []string{".json", ".jsonl"}

// FindVersionFile looks in dir for a file named "<dir name><suffix><ext>",
// then for any "*<suffix><ext>", trying .json before .jsonl. It returns ""
// when nothing matches.
func FindVersionFile(dir, suffix string) (string, error) {
	base := filepath.Base(filepath.Clean(dir))
	for _, ext := range recordExts {
		candidate := filepath.Join(dir, base+suffix+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return GlobVersionFile(dir, suffix)
}

// GlobVersionFile returns the first file in dir, in lexical order, matching
// "*<suffix>.json", else "*<suffix>.jsonl". It returns "" when nothing
// matches.
func GlobVersionFile(dir, suffix string) (string, error) {
	for _, ext := range recordExts {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix+ext))
		if err != nil {
			return "", fmt.Errorf("searching %s: %w", dir, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				return m, nil
			}
		}
	}
	return "", nil
}

// OutputPath derives "<base><suffix><ext>" from an input file path, placed
// in outDir when it is set and next to the input otherwise.
func OutputPath(inputPath, outDir, suffix, ext string) string {
	name := filepath.Base(inputPath)
	for _, known := range []string{".jsonl.all", ".jsonl", ".json"} {
		if strings.HasSuffix(strings.ToLower(name), known) {
			name = name[:len(name)-len(known)]
			break
		}
	}
	if name == filepath.Base(inputPath) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	dir := filepath.Dir(inputPath)
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, name+suffix+ext)
}
