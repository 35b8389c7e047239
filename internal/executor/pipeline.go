package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/taskver/internal/config"
	"github.com/spachava753/taskver/internal/dataset"
	"github.com/spachava753/taskver/internal/metrics"
	"github.com/spachava753/taskver/internal/models"
	"github.com/spachava753/taskver/internal/repocache"
	"github.com/spachava753/taskver/internal/snapshot"
	"github.com/spachava753/taskver/internal/task"
)

// CacheDirName is the directory under the testbed that holds base clones.
const CacheDirName = "_cache"

// NewExtractorFunc creates the Extractor for a run whose workspaces live
// under workspaceRoot.
type NewExtractorFunc func(cfg models.ExtractConfig, workspaceRoot string) Extractor

// DefaultExtractorFunc creates a snapshot.Extractor.
func DefaultExtractorFunc(cfg models.ExtractConfig, workspaceRoot string) Extractor {
	return snapshot.NewExtractor(workspaceRoot, cfg.CopyMode)
}

// Pipeline coordinates one extraction run: loading tasks, populating the
// repository cache, extracting in parallel and writing the results.
type Pipeline struct {
	cfg          models.ExtractConfig
	newExtractor NewExtractorFunc
	metrics      *metrics.Collector
}

// NewPipeline validates cfg and creates a Pipeline.
func NewPipeline(cfg models.ExtractConfig, extractorFactory NewExtractorFunc) (*Pipeline, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if extractorFactory == nil {
		extractorFactory = DefaultExtractorFunc
	}
	return &Pipeline{
		cfg:          cfg,
		newExtractor: extractorFactory,
		metrics:      metrics.New(),
	}, nil
}

// Metrics returns the collector the run records into.
func (p *Pipeline) Metrics() *metrics.Collector {
	return p.metrics
}

// OutputPath returns where the results of the run are written.
func (p *Pipeline) OutputPath() string {
	ext := ".json"
	if p.cfg.OutputFormat == models.FormatJSONL {
		ext = ".jsonl"
	}
	return dataset.OutputPath(p.cfg.InstancePath, p.cfg.OutputDir, dataset.SuffixGit, ext)
}

// Run executes the extraction. Errors returned before any repository is
// cloned are fatal configuration or input errors; failures of individual
// repositories and tasks are reported in the summary instead.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	startTime := time.Now()

	tasks, err := task.NewLoader().Load(p.cfg.InstancePath)
	if err != nil {
		return nil, err
	}
	total := len(tasks)

	tasks, duplicates := task.Dedup(tasks)
	tasks, processed := task.FilterProcessed(tasks, p.cfg.LastStageOutputDir)

	outputPath := p.OutputPath()
	if err := dataset.CheckWritable(filepath.Dir(outputPath)); err != nil {
		return nil, err
	}

	sources, err := config.LoadRepoSources(p.cfg.Git.ReposFile)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	slog.Info("starting extraction",
		"run_id", runID,
		"tasks", len(tasks),
		"already_processed", processed,
		"duplicates", duplicates,
		"workers", p.cfg.MaxWorkers)

	cache := repocache.New(
		filepath.Join(p.cfg.Testbed, CacheDirName),
		func(repo string) string { return config.CloneURL(p.cfg.Git.URLTemplate, sources, repo) },
		repocache.WithRetry(p.cfg.Retry),
		repocache.WithMetrics(p.metrics),
	)
	locations := cache.Populate(ctx, tasks)

	runRoot := filepath.Join(p.cfg.Testbed, runID)
	defer func() {
		if err := os.RemoveAll(runRoot); err != nil {
			slog.Error("failed to remove run directory", "path", runRoot, "error", err)
		}
	}()

	runner := NewRunner(p.newExtractor(p.cfg, runRoot), p.cfg.MaxWorkers,
		WithTaskTimeout(p.cfg.TaskTimeout()),
		WithRunnerMetrics(p.metrics))
	summary := runner.Run(ctx, tasks, locations)

	summary.RunID = runID
	summary.OutputPath = outputPath
	summary.TotalTasks = total
	summary.AlreadyProcessed = processed
	summary.DuplicateTasks = duplicates
	summary.FailedRepos = cache.FailedRepos()
	summary.StartedAt = startTime
	p.metrics.TasksAlreadyProcessed(processed)

	if err := dataset.WriteToPath(outputPath, summary.Results); err != nil {
		return summary, fmt.Errorf("writing results: %w", err)
	}
	slog.Info("wrote results", "path", outputPath, "records", len(summary.Results))

	if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
		slog.Warn("could not write metrics", "path", p.cfg.MetricsFile, "error", err)
	}

	summary.EndedAt = time.Now()
	return summary, nil
}

// RunFromConfig loads an extract config file, validates it and runs it.
func RunFromConfig(ctx context.Context, configPath string) (*models.RunSummary, error) {
	cfg, err := config.LoadExtractConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading extract config: %w", err)
	}

	pipeline, err := NewPipeline(cfg, DefaultExtractorFunc)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	return pipeline.Run(ctx)
}
