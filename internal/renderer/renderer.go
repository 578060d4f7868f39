// Package renderer renders twig templates by name.
//
// TemplateRenderer resolves a template name through the locator and hands
// the resolved reference to an Engine. Callers choose whether failures are
// returned or swallowed into an empty buffer, and whether debug comments
// naming the template path wrap the output.
package renderer

import (
	"context"
	"fmt"

	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// Resolver resolves template names to template references.
type Resolver interface {
	Resolve(ctx context.Context, name string, rc locator.RequestContext, opts ...locator.Option) (types.Resolution, error)
}

// Configuration controls a single Render call.
type Configuration struct {
	// ShowTemplateComments wraps the output in debug comments when debug mode
	// is on.
	ShowTemplateComments bool
	// ThrowExceptionOnError returns resolution and engine failures. When
	// false they produce an empty buffer.
	ThrowExceptionOnError bool
	// TemplatePath skips name resolution and renders this reference.
	TemplatePath string
}

// DefaultConfiguration shows comments and returns errors.
func DefaultConfiguration() Configuration {
	return Configuration{
		ShowTemplateComments:  true,
		ThrowExceptionOnError: true,
	}
}

// TemplateRenderer renders templates by name.
type TemplateRenderer struct {
	engine    Engine
	resolver  Resolver
	debugMode bool
	logger    logging.Logger
	errors    *twigerrors.ErrorHandler
}

// NewTemplateRenderer creates a renderer.
func NewTemplateRenderer(engine Engine, resolver Resolver, debugMode bool, logger logging.Logger) *TemplateRenderer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &TemplateRenderer{
		engine:    engine,
		resolver:  resolver,
		debugMode: debugMode,
		logger:    logger.WithComponent("renderer"),
	}
	r.errors = twigerrors.NewErrorHandler(r.logger)
	return r
}

// Render renders a template by name. A nil configuration means
// DefaultConfiguration.
func (r *TemplateRenderer) Render(ctx context.Context, name string, data map[string]any, rc locator.RequestContext, cfg *Configuration) (string, error) {
	conf := DefaultConfiguration()
	if cfg != nil {
		conf = *cfg
	}

	var (
		buffer   string
		rendered bool
		path     = conf.TemplatePath
	)

	if path == "" {
		resolution, err := r.resolver.Resolve(ctx, name, rc)
		switch {
		case err == nil:
			path = resolution.Path
		case twigerrors.IsNotFound(err) && !conf.ThrowExceptionOnError:
			rendered = true
			path = "Template not found: " + name
		default:
			return "", err
		}
	}

	if !rendered {
		out, err := r.engine.Render(ctx, path, data)
		switch {
		case err == nil:
			buffer = out
		case twigerrors.IsRenderError(err):
			if conf.ThrowExceptionOnError {
				return "", err
			}
			r.errors.Handle(ctx, err)
		default:
			return "", fmt.Errorf("error rendering template %q: %w", path, err)
		}
	}

	if conf.ShowTemplateComments && r.debugMode {
		buffer = WrapTemplateComments(path, buffer)
	}
	return buffer, nil
}

// RenderPath renders a template reference without resolution. It is the
// engine boundary used by the render dispatcher.
func (r *TemplateRenderer) RenderPath(ctx context.Context, path string, data map[string]any) (string, error) {
	return r.engine.Render(ctx, path, data)
}

// DebugMode reports whether debug comments are enabled.
func (r *TemplateRenderer) DebugMode() bool {
	return r.debugMode
}

// WrapTemplateComments surrounds a buffer with start and end comments naming
// the template path.
func WrapTemplateComments(path, buffer string) string {
	return "\n<!-- TWIG TEMPLATE START: " + path + " -->\n" + buffer + "\n<!-- TWIG TEMPLATE END: " + path + " -->\n"
}

// FrontendTemplate is a page-level template rendered through twig. Rendering
// failures produce an empty buffer.
type FrontendTemplate struct {
	Name string
	Data map[string]any

	renderer *TemplateRenderer
	rc       locator.RequestContext
}

// NewFrontendTemplate creates a front-end template bound to this renderer.
func (r *TemplateRenderer) NewFrontendTemplate(name string, rc locator.RequestContext) *FrontendTemplate {
	return &FrontendTemplate{
		Name:     name,
		Data:     make(map[string]any),
		renderer: r,
		rc:       rc,
	}
}

// Set assigns a template variable.
func (t *FrontendTemplate) Set(key string, value any) {
	if t.Data == nil {
		t.Data = make(map[string]any)
	}
	t.Data[key] = value
}

// Inherit renders the template. A missing template or an engine failure
// yields "". Only errors that must not be hidden, such as an insecure theme
// folder, are returned.
func (t *FrontendTemplate) Inherit(ctx context.Context) (string, error) {
	if t.Name == "" {
		return "", nil
	}

	resolution, err := t.renderer.resolver.Resolve(ctx, t.Name, t.rc)
	if err != nil {
		if twigerrors.IsNotFound(err) {
			t.renderer.errors.Handle(ctx, err)
			return "", nil
		}
		return "", err
	}

	buffer, err := t.renderer.engine.Render(ctx, resolution.Path, t.context())
	if err != nil {
		if twigerrors.IsRenderError(err) {
			t.renderer.errors.Handle(ctx, err)
			return "", nil
		}
		return "", fmt.Errorf("error rendering template %q: %w", resolution.Path, err)
	}

	if t.renderer.debugMode {
		buffer = WrapTemplateComments(resolution.Path, buffer)
	}
	return buffer, nil
}

func (t *FrontendTemplate) context() map[string]any {
	ctx := make(map[string]any, len(t.Data))
	for k, v := range t.Data {
		ctx[k] = v
	}
	return ctx
}
