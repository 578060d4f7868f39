//go:build property

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestIndexVariantProperties checks that both index spellings describe the
// same candidates for every template.
func TestIndexVariantProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("stripped and literal keys carry equal candidates", prop.ForAll(
		func(names []string, nested bool) bool {
			dir, err := os.MkdirTemp(t.TempDir(), "project")
			if err != nil {
				return false
			}
			cfg := config.Default()
			cfg.ProjectDir = dir

			for _, name := range names {
				rel := name + HTMLTwigSuffix
				if nested {
					rel = filepath.Join("sub", rel)
				}
				target := filepath.Join(cfg.TemplateRoot(), rel)
				if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
					return false
				}
				if err := os.WriteFile(target, []byte(name), 0644); err != nil {
					return false
				}
			}

			indexes, err := NewTemplateScanner(cfg, nil).BuildIndexes(context.Background())
			if err != nil {
				return false
			}
			without := indexes[types.VariantWithoutExtension]
			with := indexes[types.VariantWithExtension]

			if without.Len() != with.Len() {
				return false
			}
			for _, name := range without.Names {
				stripped, _ := without.Get(name)
				literal, ok := with.Get(name + HTMLTwigSuffix)
				if !ok || !reflect.DeepEqual(stripped.Paths, literal.Paths) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
