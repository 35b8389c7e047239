package models

import "time"

// CopyMode selects how a cached repository is materialised into a workspace.
type CopyMode string

const (
	CopyModeCopy  CopyMode = "copy"
	CopyModeClone CopyMode = "clone"
)

// OutputFormat selects the encoding of a written record file.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatJSONL OutputFormat = "jsonl"
)

// ExtractConfig represents the parsed extraction configuration (YAML file
// merged with command line flags).
type ExtractConfig struct {
	InstancePath       string       `yaml:"instance_path" json:"instance_path" validate:"required"`
	Testbed            string       `yaml:"testbed" json:"testbed" validate:"required"`
	MaxWorkers         int          `yaml:"max_workers" json:"max_workers" validate:"gte=1"`
	OutputDir          string       `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	OutputFormat       OutputFormat `yaml:"output_format,omitempty" json:"output_format,omitempty" validate:"omitempty,oneof=json jsonl"`
	LastStageOutputDir string       `yaml:"last_stage_output_dir,omitempty" json:"last_stage_output_dir,omitempty"`
	TaskTimeoutSec     float64      `yaml:"task_timeout_sec,omitempty" json:"task_timeout_sec,omitempty" validate:"gte=0"`
	CopyMode           CopyMode     `yaml:"copy_mode" json:"copy_mode" validate:"oneof=copy clone"`
	LogLevel           string       `yaml:"log_level,omitempty" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	MetricsFile        string       `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
	Git                GitConfig    `yaml:"git" json:"git"`
	Retry              RetryConfig  `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// TaskTimeout returns the per-task deadline, zero meaning none.
func (c ExtractConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSec * float64(time.Second))
}

type GitConfig struct {
	// URLTemplate builds the clone URL; "{repo}" is replaced by the
	// repository id.
	URLTemplate string `yaml:"url_template" json:"url_template" validate:"required"`
	ReposFile   string `yaml:"repos_file,omitempty" json:"repos_file,omitempty"`
}

type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`
	InitialDelayMs int     `yaml:"initial_delay_ms" json:"initial_delay_ms" validate:"gte=0"`
	MaxDelayMs     int     `yaml:"max_delay_ms" json:"max_delay_ms" validate:"gte=0"`
	Multiplier     float64 `yaml:"multiplier" json:"multiplier" validate:"gte=1"`
}

// RepoSource overrides where a repository is cloned from.
type RepoSource struct {
	URL string `toml:"url"`
}

// RepoSources is the parsed repos.toml file.
type RepoSources struct {
	Repos map[string]RepoSource `toml:"repos"`
}

// RunSummary is the outcome of one extraction run.
type RunSummary struct {
	RunID            string            `json:"run_id"`
	OutputPath       string            `json:"output_path,omitempty"`
	TotalTasks       int               `json:"total_tasks"`
	AlreadyProcessed int               `json:"already_processed"`
	DuplicateTasks   int               `json:"duplicate_tasks"`
	Succeeded        int               `json:"succeeded"`
	Failed           int               `json:"failed"`
	Skipped          int               `json:"skipped"`
	Cancelled        bool              `json:"cancelled"`
	FailedRepos      []string          `json:"failed_repos,omitempty"`
	Failures         map[ErrorType]int `json:"failures,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	EndedAt          time.Time         `json:"ended_at"`
	Results          []Record          `json:"-"`
}

// MergeSummary is the outcome of reconciling two version files.
type MergeSummary struct {
	PrimaryPath   string `json:"primary_path,omitempty"`
	SecondaryPath string `json:"secondary_path,omitempty"`
	OutputPath    string `json:"output_path"`
	Primary       int    `json:"primary"`
	Added         int    `json:"added"`
	Total         int    `json:"total"`
}
