package renderer

import (
	"context"
	"errors"
	"os"
	"testing"

	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorCode(err error) string {
	var te *twigerrors.TwigError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func newProjectEngine(t *testing.T, debug bool) (*Pongo2Engine, *testutils.Project) {
	t.Helper()
	p := testutils.CreateTempProject(t)
	p.AddPackage("AcmeBundle")
	p.WriteTemplate("greeting.html.twig", "Hello {{ name }}!")
	p.WritePackageTemplate("AcmeBundle", "Resources/views/box.html.twig", `[{% include "@Acme/inner.html.twig" %}]`)
	p.WritePackageTemplate("AcmeBundle", "templates/inner.html.twig", "inner")
	p.WritePackageTemplate("AcmeBundle", "Resources/contao/templates/legacy.html.twig", "legacy {{ n }}")

	loader := NewNamespaceLoader(p.TemplateRoot(), p.Config.Packages)
	return NewPongo2Engine(loader, debug), p
}

func TestPongo2EngineRender(t *testing.T) {
	ctx := context.Background()
	engine, _ := newProjectEngine(t, false)

	out, err := engine.Render(ctx, "greeting.html.twig", map[string]any{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", out)

	out, err = engine.Render(ctx, "@Acme/box.html.twig", nil)
	require.NoError(t, err)
	assert.Equal(t, "[inner]", out)

	out, err = engine.Render(ctx, "legacy.html.twig", map[string]any{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, "legacy 3", out)
}

func TestPongo2EngineErrors(t *testing.T) {
	ctx := context.Background()
	engine, p := newProjectEngine(t, false)
	p.WriteTemplate("broken.html.twig", "{% if %}")
	p.WriteTemplate("failing.html.twig", "{{ explode() }}")

	_, err := engine.Render(ctx, "missing.html.twig", nil)
	assert.True(t, twigerrors.IsRenderError(err))
	assert.Equal(t, twigerrors.ErrCodeLoader, errorCode(err))

	_, err = engine.Render(ctx, "broken.html.twig", nil)
	assert.True(t, twigerrors.IsRenderError(err))
	assert.Equal(t, twigerrors.ErrCodeSyntax, errorCode(err))

	_, err = engine.Render(ctx, "failing.html.twig", map[string]any{
		"explode": func() (string, error) { return "", errors.New("boom") },
	})
	assert.True(t, twigerrors.IsRenderError(err))
	assert.Equal(t, twigerrors.ErrCodeRuntime, errorCode(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = engine.Render(cancelled, "greeting.html.twig", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPongo2EngineCaching(t *testing.T) {
	ctx := context.Background()

	engine, p := newProjectEngine(t, false)
	file := p.WriteTemplate("note.html.twig", "v1")

	out, err := engine.Render(ctx, "note.html.twig", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", out)

	require.NoError(t, os.WriteFile(file, []byte("v2"), 0644))
	out, _ = engine.Render(ctx, "note.html.twig", nil)
	assert.Equal(t, "v1", out, "compiled templates are cached")

	engine.ClearCache()
	out, _ = engine.Render(ctx, "note.html.twig", nil)
	assert.Equal(t, "v2", out)

	debugEngine, dp := newProjectEngine(t, true)
	debugFile := dp.WriteTemplate("note.html.twig", "v1")
	_, err = debugEngine.Render(ctx, "note.html.twig", nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(debugFile, []byte("v2"), 0644))
	out, _ = debugEngine.Render(ctx, "note.html.twig", nil)
	assert.Equal(t, "v2", out, "debug mode recompiles")
}
