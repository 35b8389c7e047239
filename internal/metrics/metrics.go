// Package metrics records pipeline counters in a private Prometheus
// registry. A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spachava753/taskver/internal/models"
)

const namespace = "taskver"

// Task outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	// Filtered out before submission; an earlier stage already has a
	// version for the task.
	OutcomeAlreadyProcessed = "already_processed"
)

// Clone outcomes.
const (
	CloneCloned = "cloned"
	CloneReused = "reused"
	CloneFailed = "failed"
)

type Collector struct {
	registry *prometheus.Registry

	tasks         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	clones        *prometheus.CounterVec
	cloneAttempts prometheus.Counter
	inFlight      prometheus.Gauge
	duration      prometheus.Histogram
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks processed, by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Failed tasks, by reason.",
		}, []string{"reason"}),
		clones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repo_cache_total",
			Help:      "Repository cache population results, by outcome.",
		}, []string{"outcome"}),
		cloneAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repo_clone_attempts_total",
			Help:      "git clone invocations, including retries.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Tasks currently being extracted.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of a single task extraction.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
	}
	c.registry.MustRegister(c.tasks, c.failures, c.clones, c.cloneAttempts, c.inFlight, c.duration)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.inFlight.Inc()
}

func (c *Collector) TaskSucceeded(d time.Duration) {
	if c == nil {
		return
	}
	c.inFlight.Dec()
	c.tasks.WithLabelValues(OutcomeSucceeded).Inc()
	c.duration.Observe(d.Seconds())
}

func (c *Collector) TaskFailed(reason models.ErrorType, d time.Duration) {
	if c == nil {
		return
	}
	c.inFlight.Dec()
	c.tasks.WithLabelValues(OutcomeFailed).Inc()
	c.failures.WithLabelValues(string(reason)).Inc()
	c.duration.Observe(d.Seconds())
}

func (c *Collector) TasksSkipped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.tasks.WithLabelValues(OutcomeSkipped).Add(float64(n))
}

func (c *Collector) TasksAlreadyProcessed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.tasks.WithLabelValues(OutcomeAlreadyProcessed).Add(float64(n))
}

func (c *Collector) CloneAttempt() {
	if c == nil {
		return
	}
	c.cloneAttempts.Inc()
}

func (c *Collector) CacheResult(outcome string) {
	if c == nil {
		return
	}
	c.clones.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
