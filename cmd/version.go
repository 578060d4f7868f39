package cmd

import (
	"fmt"
	"strings"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and target platform
of the twig-support binary.

Examples:
  twig-support version           # Short version
  twig-support version -o json   # Build information as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var versionFlags *OutputFlags

func init() {
	rootCmd.AddCommand(versionCmd)

	versionFlags = AddOutputFlags(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch strings.ToLower(versionFlags.Format) {
	case "json":
		return writeJSON(out, info)
	case "yaml":
		return writeYAML(out, info)
	}

	fmt.Fprintf(out, "twig-support %s", info.Short())
	if info.Dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	if !info.BuildTime.IsZero() {
		fmt.Fprintf(out, "Built: %s\n", info.BuildTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(out, "Platform: %s\n", info.Platform)
	return nil
}
