package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spachava753/taskver/internal/config"
	"github.com/spachava753/taskver/internal/executor"
	"github.com/spachava753/taskver/internal/logging"
	"github.com/spachava753/taskver/internal/models"
)

type extractFlags struct {
	configPath  string
	reposFile   string
	instance    string
	testbed     string
	workers     int
	outputDir   string
	lastStage   string
	timeout     time.Duration
	copyMode    string
	format      string
	metricsFile string
	logLevel    string
}

func extractCmd() *cobra.Command {
	var f extractFlags

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Derive the version of every task from its base commit",
		Long: `Clone each repository referenced by the task file once, then check out every
task's base_commit in a throwaway workspace and derive "major.minor" from
git describe --tags. Results are written to <input>_versions_by_git.json.

Tasks already present in a *_versions_by_github file under
--last-stage-output-dir are skipped.

Examples:
  taskver extract -i data/lite.jsonl -w 16
  taskver extract --config extract.yaml --repos repos.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadExtractConfig(f.configPath)
			if err != nil {
				return err
			}
			applyExtractFlags(cmd, f, &cfg)

			if err := logging.Setup(os.Stderr, cfg.LogLevel); err != nil {
				return err
			}

			pipeline, err := executor.NewPipeline(cfg, executor.DefaultExtractorFunc)
			if err != nil {
				return err
			}
			summary, err := pipeline.Run(cmd.Context())
			if err != nil {
				return err
			}

			printRunSummary(summary)
			if summary.Cancelled {
				return errCancelled
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML extract config file")
	flags.StringVar(&f.reposFile, "repos", "", "TOML file of per-repository clone URL overrides")
	flags.StringVarP(&f.instance, "instance-path", "i", "", "task file (.json, .jsonl or .jsonl.all)")
	flags.StringVarP(&f.testbed, "testbed", "t", "", "directory for the repository cache and workspaces (default \"testbed\")")
	flags.IntVarP(&f.workers, "max-workers", "w", 0, "maximum concurrent tasks (default 10)")
	flags.StringVarP(&f.outputDir, "output-dir", "d", "", "directory for the result file (default: next to the task file)")
	flags.StringVarP(&f.lastStage, "last-stage-output-dir", "l", "", "directory holding the previous stage's *_versions_by_github file")
	flags.DurationVar(&f.timeout, "task-timeout", 0, "per-task deadline, e.g. 5m (0 disables)")
	flags.StringVar(&f.copyMode, "copy-mode", "", "how workspaces are filled from the cache: copy or clone")
	flags.StringVar(&f.format, "output-format", "", "result file format: json or jsonl")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	flags.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")

	return cmd
}

// applyExtractFlags overrides cfg with the flags set on the command line.
func applyExtractFlags(cmd *cobra.Command, f extractFlags, cfg *models.ExtractConfig) {
	flags := cmd.Flags()
	if flags.Changed("repos") {
		cfg.Git.ReposFile = f.reposFile
	}
	if flags.Changed("instance-path") {
		cfg.InstancePath = f.instance
	}
	if flags.Changed("testbed") {
		cfg.Testbed = f.testbed
	}
	if flags.Changed("max-workers") {
		cfg.MaxWorkers = f.workers
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if flags.Changed("last-stage-output-dir") {
		cfg.LastStageOutputDir = f.lastStage
	}
	if flags.Changed("task-timeout") {
		cfg.TaskTimeoutSec = f.timeout.Seconds()
	}
	if flags.Changed("copy-mode") {
		cfg.CopyMode = models.CopyMode(f.copyMode)
	}
	if flags.Changed("output-format") {
		cfg.OutputFormat = models.OutputFormat(f.format)
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func printRunSummary(s *models.RunSummary) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	fmt.Printf("\nRun: %s\n", s.RunID)
	fmt.Printf("Tasks: %d\n", s.TotalTasks)
	if s.DuplicateTasks > 0 {
		fmt.Printf("Duplicates: %s\n", yellow.Sprint(s.DuplicateTasks))
	}
	if s.AlreadyProcessed > 0 {
		fmt.Printf("Already processed: %d\n", s.AlreadyProcessed)
	}
	fmt.Printf("Succeeded: %s\n", green.Sprint(s.Succeeded))
	if s.Failed > 0 {
		fmt.Printf("Failed: %s\n", red.Sprint(s.Failed))
		reasons := make([]string, 0, len(s.Failures))
		for r := range s.Failures {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("  %-22s %d\n", r, s.Failures[models.ErrorType(r)])
		}
	} else {
		fmt.Printf("Failed: 0\n")
	}
	if s.Skipped > 0 {
		fmt.Printf("Skipped: %s (cancelled)\n", yellow.Sprint(s.Skipped))
	}
	for _, repo := range s.FailedRepos {
		fmt.Printf("%s could not clone %s\n", red.Sprint("✗"), repo)
	}
	fmt.Printf("Output: %s\n", s.OutputPath)
	fmt.Printf("Duration: %.2fs\n", s.EndedAt.Sub(s.StartedAt).Seconds())
}
