// Package repocache keeps one full clone per upstream repository. Clones are
// made once, before extraction starts, and shared read-only by every task
// that references the repository.
package repocache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/spachava753/taskver/internal/git"
	"github.com/spachava753/taskver/internal/metrics"
	"github.com/spachava753/taskver/internal/models"
)

// Cloner clones url into dest, which does not exist yet.
type Cloner interface {
	Clone(ctx context.Context, url, dest string) error
}

// ClonerFunc adapts a function to Cloner.
type ClonerFunc func(ctx context.Context, url, dest string) error

func (f ClonerFunc) Clone(ctx context.Context, url, dest string) error {
	return f(ctx, url, dest)
}

// GitCloner runs `git clone`.
var GitCloner Cloner = ClonerFunc(func(ctx context.Context, url, dest string) error {
	_, err := git.Clone(ctx, url, dest)
	return err
})

// Cache maps repository ids to local clones under a single directory.
type Cache struct {
	dir     string
	urlFor  func(repo string) string
	cloner  Cloner
	retry   models.RetryConfig
	metrics *metrics.Collector
	isRepo  func(ctx context.Context, dir string) bool

	group    singleflight.Group
	mu       sync.Mutex
	entries  map[string]string
	failures map[string]error
}

// Option configures a Cache.
type Option func(*Cache)

func WithCloner(c Cloner) Option {
	return func(cache *Cache) { cache.cloner = c }
}

func WithRetry(r models.RetryConfig) Option {
	return func(cache *Cache) { cache.retry = r }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(cache *Cache) { cache.metrics = m }
}

// New creates a Cache rooted at dir. urlFor returns the clone URL of a
// repository id.
func New(dir string, urlFor func(repo string) string, opts ...Option) *Cache {
	c := &Cache{
		dir:      dir,
		urlFor:   urlFor,
		cloner:   GitCloner,
		retry:    models.RetryConfig{MaxAttempts: 1, Multiplier: 1},
		isRepo:   git.IsRepository,
		entries:  make(map[string]string),
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// dirNameEscaper keeps DirName injective: every "_" in a name starts a
// two-byte token, so "a/b__c" and "a__b/c" land in different directories.
var dirNameEscaper = strings.NewReplacer("_", "_u", "/", "__")

// DirName maps a repository id to its directory name under the cache root,
// e.g. "django/django" becomes "django__django" and "my_org/x" becomes
// "my_uorg__x".
func DirName(repo string) (string, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" || repo == "." || repo == ".." || strings.ContainsRune(repo, '\\') {
		return "", fmt.Errorf("invalid repository id %q", repo)
	}
	name := dirNameEscaper.Replace(repo)
	if strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("invalid repository id %q", repo)
	}
	return name, nil
}

// Ensure returns the location of repo's clone, cloning it on first use.
// Later calls return the same location without cloning again; a repository
// whose clone failed keeps failing with the same error for the life of the
// Cache. Concurrent calls for one repository share a single clone.
func (c *Cache) Ensure(ctx context.Context, repo string) (string, error) {
	c.mu.Lock()
	if loc, ok := c.entries[repo]; ok {
		c.mu.Unlock()
		return loc, nil
	}
	if err, ok := c.failures[repo]; ok {
		c.mu.Unlock()
		return "", err
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(repo, func() (any, error) {
		c.mu.Lock()
		if loc, ok := c.entries[repo]; ok {
			c.mu.Unlock()
			return loc, nil
		}
		if err, ok := c.failures[repo]; ok {
			c.mu.Unlock()
			return "", err
		}
		c.mu.Unlock()

		loc, err := c.populate(ctx, repo)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.failures[repo] = err
			return "", err
		}
		c.entries[repo] = loc
		return loc, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) populate(ctx context.Context, repo string) (string, error) {
	name, err := DirName(repo)
	if err != nil {
		c.metrics.CacheResult(metrics.CloneFailed)
		return "", err
	}
	dest := filepath.Join(c.dir, name)

	if c.isRepo(ctx, dest) {
		slog.Debug("repository already cached", "repo", repo, "path", dest)
		c.metrics.CacheResult(metrics.CloneReused)
		return dest, nil
	}

	// Leftovers of an interrupted clone.
	if err := os.RemoveAll(dest); err != nil {
		c.metrics.CacheResult(metrics.CloneFailed)
		return "", fmt.Errorf("clearing stale cache entry: %w", err)
	}

	url := c.urlFor(repo)
	start := time.Now()
	err = backoff.RetryNotify(func() error {
		c.metrics.CloneAttempt()
		err := c.cloner.Clone(ctx, url, dest)
		if err == nil {
			return nil
		}
		os.RemoveAll(dest)
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, c.backOff(ctx), func(err error, wait time.Duration) {
		slog.Warn("clone failed, retrying", "repo", repo, "error", err, "wait", wait)
	})
	if err != nil {
		c.metrics.CacheResult(metrics.CloneFailed)
		return "", fmt.Errorf("cloning %s: %w", repo, err)
	}

	slog.Info("cached repository", "repo", repo, "path", dest, "duration", time.Since(start).Round(time.Millisecond))
	c.metrics.CacheResult(metrics.CloneCloned)
	return dest, nil
}

func (c *Cache) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(c.retry.InitialDelayMs) * time.Millisecond
	if c.retry.MaxDelayMs > 0 {
		b.MaxInterval = time.Duration(c.retry.MaxDelayMs) * time.Millisecond
	}
	if c.retry.Multiplier >= 1 {
		b.Multiplier = c.retry.Multiplier
	}
	b.MaxElapsedTime = 0
	b.Reset()

	retries := max(c.retry.MaxAttempts-1, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Populate ensures every distinct repository referenced by tasks, one at a
// time and in task order, then returns the read-only locations. Clone
// failures are logged and leave the repository out of the result.
func (c *Cache) Populate(ctx context.Context, tasks []models.Task) Locations {
	attempted := make(map[string]struct{})
	for _, t := range tasks {
		if _, ok := attempted[t.Repo]; ok {
			continue
		}
		attempted[t.Repo] = struct{}{}

		if ctx.Err() != nil {
			break
		}
		if _, err := c.Ensure(ctx, t.Repo); err != nil {
			slog.Error("failed to cache repository", "repo", t.Repo, "error", err)
		}
	}

	slog.Info("repository cache ready",
		"repos", len(attempted),
		"cached", c.Locations().Len(),
		"failed", len(c.FailedRepos()))
	return c.Locations()
}

// Locations returns a snapshot of the successfully cached repositories.
func (c *Cache) Locations() Locations {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[string]string, len(c.entries))
	for repo, loc := range c.entries {
		m[repo] = loc
	}
	failed := make(map[string]error, len(c.failures))
	for repo, err := range c.failures {
		failed[repo] = err
	}
	return Locations{m: m, failed: failed}
}

// FailedRepos returns the repositories whose clone failed, sorted.
func (c *Cache) FailedRepos() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	repos := make([]string, 0, len(c.failures))
	for repo := range c.failures {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos
}

// Err returns the clone error recorded for repo, if any.
func (c *Cache) Err(repo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[repo]
}

// ErrNotCached reports a repository absent from Locations.
var ErrNotCached = errors.New("repository not cached")

// Locations is an immutable repository id to clone path mapping. It is safe
// for concurrent reads.
type Locations struct {
	m      map[string]string
	failed map[string]error
}

// NewLocations builds Locations from a map, copying it.
func NewLocations(m map[string]string) Locations {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Locations{m: cp}
}

// Lookup returns the clone path of repo.
func (l Locations) Lookup(repo string) (string, bool) {
	loc, ok := l.m[repo]
	return loc, ok
}

// Failure returns the clone error of repo when its clone failed.
func (l Locations) Failure(repo string) error {
	return l.failed[repo]
}

// Len returns the number of cached repositories.
func (l Locations) Len() int {
	return len(l.m)
}
