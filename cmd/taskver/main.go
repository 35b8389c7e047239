package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errCancelled marks a run that was interrupted before every task ran.
var errCancelled = errors.New("run cancelled")

func main() {
	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:   "taskver",
		Short: "Label benchmark tasks with the upstream version at their base commit",
		Long: `taskver determines, for every task in a dataset, the version of the upstream
project at the task's base_commit by checking the commit out and reading the
nearest tag. A second command reconciles those versions with versions
obtained elsewhere into one final dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(mergeCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errCancelled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
