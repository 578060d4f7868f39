package renderer

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/testutils"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceLoaderResolve(t *testing.T) {
	p := testutils.CreateTempProject(t)
	p.AddPackage("AcmeBundle")
	views := p.WritePackageTemplate("AcmeBundle", "Resources/views/ce_text.html.twig", "views")
	tpls := p.WritePackageTemplate("AcmeBundle", "templates/form_text.html.twig", "templates")
	legacy := p.WritePackageTemplate("AcmeBundle", "Resources/contao/templates/ce_text.html.twig", "legacy")
	project := p.WriteTemplate("sub/mod_list.html.twig", "project")

	loader := NewNamespaceLoader(p.TemplateRoot(), p.Config.Packages)

	tests := map[string]string{
		"@Acme/ce_text.html.twig":   views,
		"@Acme/form_text.html.twig": tpls,
		"ce_text.html.twig":         legacy,
		"sub/mod_list.html.twig":    project,
		project:                     project,
	}
	for ref, want := range tests {
		got, err := loader.Resolve(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got, ref)
	}

	for _, ref := range []string{
		"@Acme",
		"@Unknown/ce_text.html.twig",
		"@Acme/../../secret.html.twig",
		"../secret.html.twig",
		"missing.html.twig",
		filepath.Join(p.Dir, "missing.html.twig"),
	} {
		_, err := loader.Resolve(ref)
		assert.Error(t, err, ref)
	}
}

func TestNamespaceLoaderLaterPackageWins(t *testing.T) {
	p := testutils.CreateTempProject(t)
	p.AddPackage("AcmeBundle")
	p.AddPackage("Acme")
	p.WritePackageTemplate("AcmeBundle", "Resources/views/ce_text.html.twig", "first")
	second := p.WritePackageTemplate("Acme", "Resources/views/ce_text.html.twig", "second")

	got, err := NewNamespaceLoader(p.TemplateRoot(), p.Config.Packages).Resolve("@Acme/ce_text.html.twig")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestNamespaceLoaderTemplateLoader(t *testing.T) {
	p := testutils.CreateTempProject(t)
	main := p.WriteTemplate("forms/main.html.twig", "main")
	sibling := p.WriteTemplate("forms/part.html.twig", "part")
	loader := NewNamespaceLoader(p.TemplateRoot(), []types.Package{})

	assert.Equal(t, main, loader.Abs("", "forms/main.html.twig"))
	assert.Equal(t, sibling, loader.Abs(main, "part.html.twig"), "relative includes resolve next to the including file")
	assert.Equal(t, "nowhere.html.twig", loader.Abs(main, "nowhere.html.twig"))

	r, err := loader.Get("forms/main.html.twig")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "main", string(content))

	_, err = loader.Get("nowhere.html.twig")
	assert.Error(t, err)
}
