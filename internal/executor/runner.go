package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/spachava753/taskver/internal/metrics"
	"github.com/spachava753/taskver/internal/models"
	"github.com/spachava753/taskver/internal/repocache"
)

// Extractor derives the version record of a single task.
type Extractor interface {
	Extract(ctx context.Context, task models.Task, repos repocache.Locations) (models.Record, error)
}

// Runner extracts tasks on a bounded pool of workers.
type Runner struct {
	extractor Extractor
	workers   int
	timeout   time.Duration
	metrics   *metrics.Collector
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTaskTimeout bounds each task; zero means no limit.
func WithTaskTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithRunnerMetrics(m *metrics.Collector) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a Runner with at most workers concurrent tasks.
func NewRunner(ex Extractor, workers int, opts ...RunnerOption) *Runner {
	r := &Runner{extractor: ex, workers: max(workers, 1)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type outcome struct {
	task models.Task
	rec  models.Record
	err  error
}

// Run extracts every task exactly once and returns the summary, with the
// successful records in completion order. Failed tasks are logged and left
// out of the results. When ctx is cancelled, tasks not yet handed to a
// worker are counted as skipped.
func (r *Runner) Run(ctx context.Context, tasks []models.Task, repos repocache.Locations) *models.RunSummary {
	summary := &models.RunSummary{
		TotalTasks: len(tasks),
		Failures:   make(map[models.ErrorType]int),
		StartedAt:  time.Now(),
	}

	nWorkers := min(r.workers, len(tasks))
	taskChan := make(chan models.Task) // unbuffered
	resultChan := make(chan outcome, len(tasks))

	var wg sync.WaitGroup

	for range nWorkers {
		wg.Go(func() {
			for t := range taskChan {
				resultChan <- r.runOne(ctx, t, repos)
			}
		})
	}

	// Feeder: hands tasks to workers until ctx is cancelled
	go func() {
		defer close(taskChan)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			case taskChan <- t:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	for o := range resultChan {
		completed++
		if o.err != nil {
			summary.Failed++
			reason := models.ErrorTypeOf(o.err)
			summary.Failures[reason]++
			slog.Error("task failed",
				"instance_id", o.task.InstanceID,
				"repo", o.task.Repo,
				"reason", reason,
				"error", o.err)
			continue
		}
		summary.Succeeded++
		summary.Results = append(summary.Results, o.rec)
	}

	summary.Skipped = max(len(tasks)-completed, 0)
	if summary.Skipped > 0 {
		summary.Cancelled = true
		r.metrics.TasksSkipped(summary.Skipped)
		slog.Warn("run cancelled", "skipped", summary.Skipped)
	}
	summary.EndedAt = time.Now()
	return summary
}

// runOne extracts a single task, converting a panic into an internal error.
func (r *Runner) runOne(ctx context.Context, t models.Task, repos repocache.Locations) (o outcome) {
	o.task = t
	start := time.Now()
	r.metrics.TaskStarted()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Debug("task panic", "instance_id", t.InstanceID, "stack", string(debug.Stack()))
			o.rec = nil
			o.err = &models.ExtractionError{
				Type:       models.ErrInternalError,
				InstanceID: t.InstanceID,
				Err:        fmt.Errorf("panic: %v", p),
			}
		}
		if o.err != nil {
			r.metrics.TaskFailed(models.ErrorTypeOf(o.err), time.Since(start))
			return
		}
		r.metrics.TaskSucceeded(time.Since(start))
		slog.Info("extracted version",
			"instance_id", t.InstanceID,
			"repo", t.Repo,
			"duration", time.Since(start).Round(time.Millisecond))
	}()

	rec, err := r.extractor.Extract(ctx, t, repos)
	if err != nil {
		o.err = err
		return o
	}
	o.rec = rec
	return o
}
