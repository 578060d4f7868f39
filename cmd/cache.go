package cmd

import (
	"fmt"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/spf13/cobra"
)

var cacheWarmupCmd = &cobra.Command{
	Use:   "cache:warmup",
	Short: "Build and store the template index",
	Long: `Scan every template root and store both index variants in the cache,
replacing whatever was stored before.`,
	Args: cobra.NoArgs,
	RunE: runCacheWarmup,
}

var cacheClearCmd = &cobra.Command{
	Use:   "cache:clear",
	Short: "Remove the stored template index",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheWarmupCmd)
	rootCmd.AddCommand(cacheClearCmd)
}

func runCacheWarmup(cmd *cobra.Command, args []string) error {
	container, _, shutdown, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	indexCache, err := container.IndexCache()
	if err != nil {
		return fmt.Errorf("failed to get index cache: %w", err)
	}

	indexes, err := indexCache.Warm(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to warm template cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Template cache warmed: %d templates, %d file names\n",
		indexes[types.VariantWithoutExtension].Len(),
		indexes[types.VariantWithExtension].Len(),
	)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	container, _, shutdown, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	indexCache, err := container.IndexCache()
	if err != nil {
		return fmt.Errorf("failed to get index cache: %w", err)
	}

	if err := indexCache.Invalidate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear template cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Template cache cleared")
	return nil
}
