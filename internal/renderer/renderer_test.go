package renderer

import (
	"context"
	"errors"
	"testing"

	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, name string, rc locator.RequestContext, _ ...locator.Option) (types.Resolution, error) {
	if rc.Frontend && locator.IsInsecurePath(rc.ThemeFolder) {
		return types.Resolution{}, twigerrors.NewInsecurePathError(rc.ThemeFolder)
	}
	path, ok := m[name]
	if !ok {
		return types.Resolution{}, twigerrors.NewTemplateNotFoundError(name)
	}
	return types.Resolution{Name: name, Path: path}, nil
}

type stubEngine struct {
	outputs map[string]string
	err     error
	path    string
	data    map[string]any
}

func (e *stubEngine) Render(_ context.Context, path string, data map[string]any) (string, error) {
	e.path = path
	e.data = data
	if e.err != nil {
		return "", e.err
	}
	return e.outputs[path], nil
}

func newStubRenderer(debug bool) (*TemplateRenderer, *stubEngine) {
	engine := &stubEngine{outputs: map[string]string{
		"ce_text.html.twig":         "text",
		"@Acme/ce_custom.html.twig": "custom",
	}}
	resolver := mapResolver{"ce_text": "ce_text.html.twig"}
	return NewTemplateRenderer(engine, resolver, debug, nil), engine
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	r, engine := newStubRenderer(false)

	out, err := r.Render(ctx, "ce_text", map[string]any{"a": 1}, locator.RequestContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.Equal(t, "ce_text.html.twig", engine.path)
	assert.Equal(t, map[string]any{"a": 1}, engine.data)

	out, err = r.Render(ctx, "ignored", nil, locator.RequestContext{}, &Configuration{TemplatePath: "@Acme/ce_custom.html.twig"})
	require.NoError(t, err)
	assert.Equal(t, "custom", out)
}

func TestRenderDebugComments(t *testing.T) {
	ctx := context.Background()
	r, _ := newStubRenderer(true)

	out, err := r.Render(ctx, "ce_text", nil, locator.RequestContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "\n<!-- TWIG TEMPLATE START: ce_text.html.twig -->\ntext\n<!-- TWIG TEMPLATE END: ce_text.html.twig -->\n", out)

	out, err = r.Render(ctx, "ce_text", nil, locator.RequestContext{}, &Configuration{ThrowExceptionOnError: true})
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.True(t, r.DebugMode())
}

func TestRenderNotFound(t *testing.T) {
	ctx := context.Background()
	r, _ := newStubRenderer(false)

	_, err := r.Render(ctx, "ce_missing", nil, locator.RequestContext{}, nil)
	assert.True(t, twigerrors.IsNotFound(err))

	out, err := r.Render(ctx, "ce_missing", nil, locator.RequestContext{}, &Configuration{})
	require.NoError(t, err)
	assert.Empty(t, out)

	debug, _ := newStubRenderer(true)
	out, err = debug.Render(ctx, "ce_missing", nil, locator.RequestContext{}, &Configuration{ShowTemplateComments: true})
	require.NoError(t, err)
	assert.Contains(t, out, "<!-- TWIG TEMPLATE START: Template not found: ce_missing -->")
}

func TestRenderEngineErrors(t *testing.T) {
	ctx := context.Background()
	r, engine := newStubRenderer(false)

	engine.err = twigerrors.NewSyntaxError("ce_text.html.twig", errors.New("unexpected end"))
	_, err := r.Render(ctx, "ce_text", nil, locator.RequestContext{}, nil)
	assert.True(t, twigerrors.IsRenderError(err))

	out, err := r.Render(ctx, "ce_text", nil, locator.RequestContext{}, &Configuration{})
	require.NoError(t, err)
	assert.Empty(t, out)

	engine.err = errors.New("out of memory")
	_, err = r.Render(ctx, "ce_text", nil, locator.RequestContext{}, &Configuration{})
	assert.ErrorContains(t, err, "out of memory")

	_, err = r.Render(ctx, "ce_text", nil, locator.RequestContext{Frontend: true, ThemeFolder: "../x"}, &Configuration{})
	assert.True(t, twigerrors.IsInsecurePath(err), "insecure folders are never swallowed")
}

func TestRenderPath(t *testing.T) {
	r, engine := newStubRenderer(false)

	out, err := r.RenderPath(context.Background(), "@Acme/ce_custom.html.twig", nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", out)
	assert.Equal(t, "@Acme/ce_custom.html.twig", engine.path)
}

func TestFrontendTemplate(t *testing.T) {
	ctx := context.Background()
	r, engine := newStubRenderer(true)

	tpl := r.NewFrontendTemplate("ce_text", locator.RequestContext{Frontend: true})
	tpl.Set("headline", "Hi")

	out, err := tpl.Inherit(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "\ntext\n")
	assert.Equal(t, map[string]any{"headline": "Hi"}, engine.data)

	engine.data["headline"] = "changed"
	assert.Equal(t, "Hi", tpl.Data["headline"], "the engine receives a copy")

	missing := r.NewFrontendTemplate("ce_missing", locator.RequestContext{})
	out, err = missing.Inherit(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)

	empty := &FrontendTemplate{renderer: r}
	out, err = empty.Inherit(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)

	insecure := r.NewFrontendTemplate("ce_text", locator.RequestContext{Frontend: true, ThemeFolder: "/etc"})
	_, err = insecure.Inherit(ctx)
	assert.True(t, twigerrors.IsInsecurePath(err))

	engine.err = twigerrors.NewRuntimeError("ce_text.html.twig", errors.New("undefined"))
	out, err = tpl.Inherit(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}
