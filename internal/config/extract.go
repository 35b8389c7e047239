package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/spachava753/taskver/internal/models"
)

// RepoPlaceholder is substituted with the repository id in clone URL templates.
const RepoPlaceholder = "{repo}"

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultExtractConfig returns an ExtractConfig with default values.
func DefaultExtractConfig() models.ExtractConfig {
	return models.ExtractConfig{
		Testbed:    "testbed",
		MaxWorkers: 10,
		CopyMode:   models.CopyModeCopy,
		LogLevel:   "info",
		Git: models.GitConfig{
			URLTemplate: "https://github.com/" + RepoPlaceholder + ".git",
		},
		Retry: models.RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			MaxDelayMs:     30000,
			Multiplier:     2.0,
		},
	}
}

// LoadExtractConfig loads and parses an extraction config file on top of the
// defaults. An empty path returns the defaults unchanged.
func LoadExtractConfig(path string) (models.ExtractConfig, error) {
	cfg := DefaultExtractConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading extract config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing extract config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults fills fields left zero by a partial config file.
func applyDefaults(cfg *models.ExtractConfig) {
	def := DefaultExtractConfig()
	if cfg.Testbed == "" {
		cfg.Testbed = def.Testbed
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.CopyMode == "" {
		cfg.CopyMode = def.CopyMode
	}
	if cfg.Git.URLTemplate == "" {
		cfg.Git.URLTemplate = def.Git.URLTemplate
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = def.Retry.Multiplier
	}
}

// Validate checks cfg before any work is started.
func Validate(cfg models.ExtractConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid extract config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid extract config: %w", err)
	}
	if !strings.Contains(cfg.Git.URLTemplate, RepoPlaceholder) {
		return fmt.Errorf("invalid extract config: git.url_template must contain %s", RepoPlaceholder)
	}
	if cfg.Retry.MaxDelayMs > 0 && cfg.Retry.MaxDelayMs < cfg.Retry.InitialDelayMs {
		return fmt.Errorf("invalid extract config: retry.max_delay_ms (%d) is below retry.initial_delay_ms (%d)",
			cfg.Retry.MaxDelayMs, cfg.Retry.InitialDelayMs)
	}
	return nil
}
