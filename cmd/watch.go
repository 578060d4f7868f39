package cmd

import (
	"context"
	"fmt"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Clear the template cache whenever templates change",
	Long: `Watch every template root and invalidate the stored template index and the
compiled templates when twig files are added, changed or removed.

Examples:
  twig-support watch                   # Watch all template roots
  twig-support watch --verbose         # Print every changed file`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	container, cfg, shutdown, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	fileWatcher, err := container.FileWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	out := cmd.OutOrStdout()
	fileWatcher.AddHandler(func(_ context.Context, events []watcher.ChangeEvent) error {
		if watchVerbose {
			for _, event := range events {
				fmt.Fprintf(out, "%s: %s\n", event.Type, event.Path)
			}
		}
		fmt.Fprintf(out, "%d template(s) changed, cache cleared\n", len(events))
		return nil
	})

	fmt.Fprintf(out, "Watching %d directories below %s\n", len(fileWatcher.WatchList()), cfg.TemplateRoot())

	if err := fileWatcher.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	<-cmd.Context().Done()
	fmt.Fprintln(out, "Stopping watcher")
	return nil
}
