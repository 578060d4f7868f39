package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Show which template file a name resolves to",
	Long: `Resolve a template name the way the renderer does.

Examples:
  twig-support resolve ce_text                               # back-end resolution
  twig-support resolve ce_text --frontend --theme customtheme # theme override
  twig-support resolve ce_text.html.twig -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var (
	resolveFlags    *OutputFlags
	resolveFrontend bool
	resolveTheme    string
	resolveNoCache  bool
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveFlags = AddOutputFlags(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveFrontend, "frontend", false, "Resolve for a front-end request")
	resolveCmd.Flags().StringVar(&resolveTheme, "theme", "", "Theme folder of the current page (front end only)")
	resolveCmd.Flags().BoolVar(&resolveNoCache, "no-cache", false, "Rebuild the index instead of reading the cache")
}

func runResolve(cmd *cobra.Command, args []string) error {
	container, _, shutdown, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	loc, err := container.Locator()
	if err != nil {
		return fmt.Errorf("failed to get template locator: %w", err)
	}

	var opts []locator.Option
	if resolveNoCache {
		opts = append(opts, locator.WithDisableCache())
	}

	rc := locator.RequestContext{Frontend: resolveFrontend, ThemeFolder: resolveTheme}
	resolution, err := loc.Resolve(cmd.Context(), args[0], rc, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(resolveFlags.Format) {
	case "json":
		return writeJSON(out, resolution)
	case "yaml":
		return writeYAML(out, resolution)
	default:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPATH\tFILE\tDEPRECATED")
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", resolution.Name, resolution.Path, resolution.Pathname, resolution.Deprecated)
		return w.Flush()
	}
}
