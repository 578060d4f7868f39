package cmd

import (
	"fmt"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/renderer"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <name>",
	Short: "Render a template by name",
	Long: `Render a template through the locator and the template engine.

Examples:
  twig-support render ce_text --data '{"headline":"Hello"}'
  twig-support render ce_text --data @data.json --frontend --theme customtheme
  twig-support render missing --no-throw   # prints nothing instead of failing`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderData       string
	renderNoThrow    bool
	renderNoComments bool
	renderPath       string
	renderFrontend   bool
	renderTheme      string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderData, "data", "d", "", "Template data (JSON or @file.json)")
	renderCmd.Flags().BoolVar(&renderNoThrow, "no-throw", false, "Print an empty result instead of failing")
	renderCmd.Flags().BoolVar(&renderNoComments, "no-comments", false, "Omit debug comments")
	renderCmd.Flags().StringVar(&renderPath, "path", "", "Render this template reference instead of resolving the name")
	renderCmd.Flags().BoolVar(&renderFrontend, "frontend", false, "Resolve for a front-end request")
	renderCmd.Flags().StringVar(&renderTheme, "theme", "", "Theme folder of the current page (front end only)")
}

func runRender(cmd *cobra.Command, args []string) error {
	data, err := ParseData(renderData)
	if err != nil {
		return err
	}

	container, _, shutdown, err := newContainer(cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	r, err := container.Renderer()
	if err != nil {
		return fmt.Errorf("failed to get renderer: %w", err)
	}

	conf := renderer.Configuration{
		ShowTemplateComments:  !renderNoComments,
		ThrowExceptionOnError: !renderNoThrow,
		TemplatePath:          renderPath,
	}
	rc := locator.RequestContext{Frontend: renderFrontend, ThemeFolder: renderTheme}

	buffer, err := r.Render(cmd.Context(), args[0], data, rc, &conf)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), buffer)
	return nil
}
