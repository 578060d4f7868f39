package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list <prefix>...",
	Aliases: []string{"l"},
	Short:   "List the template group of one or more prefixes",
	Long: `List the templates whose name starts with a prefix, labelled with the
layers that provide them: global, theme names and package namespaces.

A prefix matches the name itself and every name continuing with "_".
A prefix ending in "_" matches any continuation.

Examples:
  twig-support list ce_text               # ce_text, ce_text_custom, ...
  twig-support list mod_ -o json          # every mod_* template as JSON
  twig-support list ce_ form_ -o yaml     # several prefixes at once`,
	Args: cobra.MinimumNArgs(1),
	RunE: runList,
}

var (
	listFlags         *OutputFlags
	listWithExtension bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddOutputFlags(listCmd)
	listCmd.Flags().BoolVarP(&listWithExtension, "with-extension", "e", false, "Match file names including their extension")
}

func runList(cmd *cobra.Command, args []string) error {
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
	if listWithExtension {
		opts = append(opts, locator.WithExtension())
	}

	options, err := loc.FindByPrefix(cmd.Context(), args, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(listFlags.Format) {
	case "json":
		return writeJSON(out, options)
	case "yaml":
		return writeYAML(out, options)
	default:
		if len(options) == 0 {
			fmt.Fprintln(out, "No templates found.")
			return nil
		}
		return writeOptionsTable(out, options)
	}
}

func writeOptionsTable(out io.Writer, options []locator.GroupOption) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLABEL")
	for _, option := range options {
		fmt.Fprintf(w, "%s\t%s\n", option.Name, option.Label)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(out io.Writer, v any) error {
	encoder := yaml.NewEncoder(out)
	defer encoder.Close()
	return encoder.Encode(v)
}
