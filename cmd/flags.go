package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats shared by the listing commands.
var outputFormats = []string{"table", "json", "yaml"}

// OutputFlags holds the output selection of a command.
type OutputFlags struct {
	Format string
}

// AddOutputFlags adds the --output flag with format validation.
func AddOutputFlags(cmd *cobra.Command) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "output", "o", "table", "Output format (table|json|yaml)")
	AddFlagValidation(cmd, "output", ValidateFormat)
	return flags
}

// ValidateFormat rejects unknown output formats.
func ValidateFormat(format string) error {
	for _, valid := range outputFormats {
		if strings.EqualFold(format, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		format, strings.Join(outputFormats, ", "))
}

// ParseData parses template data given inline as JSON or as @file.json.
func ParseData(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}

	source := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		filename := strings.TrimPrefix(raw, "@")
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file %s: %w", filename, err)
		}
		source = data
	}

	var data map[string]any
	if err := json.Unmarshal(source, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON in template data: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}
