package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/spachava753/taskver/internal/models"
)

// LoadRepoSources loads and parses a repos.toml file. An empty path yields
// no overrides.
func LoadRepoSources(path string) (models.RepoSources, error) {
	var sources models.RepoSources
	if path == "" {
		return sources, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sources, fmt.Errorf("reading repos file: %w", err)
	}

	md, err := toml.Decode(string(data), &sources)
	if err != nil {
		return sources, fmt.Errorf("parsing repos file: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return sources, fmt.Errorf("parsing repos file: unknown keys %s", strings.Join(keys, ", "))
	}

	for repo, src := range sources.Repos {
		if src.URL == "" {
			return sources, fmt.Errorf("repos.%q: url must not be empty", repo)
		}
	}

	return sources, nil
}

// CloneURL returns the URL repo is cloned from: the override in sources if
// one exists, else tmpl with the placeholder substituted.
func CloneURL(tmpl string, sources models.RepoSources, repo string) string {
	if src, ok := sources.Repos[repo]; ok {
		return src.URL
	}
	return strings.ReplaceAll(tmpl, RepoPlaceholder, repo)
}
