package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spachava753/taskver/internal/logging"
	"github.com/spachava753/taskver/internal/reconcile"
)

func mergeCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "merge <dir>",
		Short: "Merge the GitHub and git version files of a directory",
		Long: `Merge <dir>'s *_versions_by_github file (primary) with its *_versions_by_git
file (secondary) into <dir>/<dir name>_versions_final. Primary records are
kept as is; secondary records are added when their pull_number is new. The
result is sorted by pull_number, highest first.

Examples:
  taskver merge data/lite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(os.Stderr, logLevel); err != nil {
				return err
			}

			summary, err := reconcile.MergeDir(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s %d + %d new = %d total, written to %s\n",
				color.New(color.FgGreen).Sprint("✓"),
				summary.Primary, summary.Added, summary.Total, summary.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}
