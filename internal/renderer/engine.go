package renderer

import (
	"context"

	"github.com/flosch/pongo2/v6"
	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
)

// Engine renders a template reference with a data map. Failures are
// reported as loader, syntax or runtime errors.
type Engine interface {
	Render(ctx context.Context, path string, data map[string]any) (string, error)
}

// Pongo2Engine renders twig-like templates with pongo2.
type Pongo2Engine struct {
	loader *NamespaceLoader
	set    *pongo2.TemplateSet
}

// NewPongo2Engine creates an engine over a loader. In debug mode compiled
// templates are not cached, so edits show up immediately.
func NewPongo2Engine(loader *NamespaceLoader, debug bool) *Pongo2Engine {
	set := pongo2.NewSet("twig-support", loader)
	set.Debug = debug
	return &Pongo2Engine{loader: loader, set: set}
}

// Render renders the template at path.
func (e *Pongo2Engine) Render(ctx context.Context, path string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := e.loader.Resolve(path)
	if err != nil {
		return "", twigerrors.NewLoaderError(path, err)
	}

	var tpl *pongo2.Template
	if e.set.Debug {
		tpl, err = e.set.FromFile(file)
	} else {
		tpl, err = e.set.FromCache(file)
	}
	if err != nil {
		return "", twigerrors.NewSyntaxError(path, err)
	}

	if data == nil {
		data = map[string]any{}
	}
	out, err := tpl.Execute(pongo2.Context(data))
	if err != nil {
		return "", twigerrors.NewRuntimeError(path, err)
	}
	return out, nil
}

// ClearCache drops every compiled template.
func (e *Pongo2Engine) ClearCache() {
	e.set.CleanCache()
}
