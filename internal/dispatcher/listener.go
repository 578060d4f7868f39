// Package dispatcher intercepts legacy templates and widgets and renders them
// through twig instead.
//
// Interception happens in two steps. On parse, a template whose name exists
// in the twig index is rewritten to a proxy template carrying the twig name
// and data. When the host later renders the proxy, Render resolves the twig
// template and renders it. Templates without a twig counterpart, or on the
// skip list, are left untouched for the legacy engine.
package dispatcher

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/events"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/normalizer"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/renderer"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// Proxy template name and data keys.
const (
	ProxyTemplate = "twig_template_proxy"
	TwigTemplate  = "twig_template"
	TwigContext   = "twig_context"
)

// Locator is the part of the template locator used by the listener.
type Locator interface {
	Templates(ctx context.Context, variant types.Variant, opts ...locator.Option) (*types.Index, error)
	Resolve(ctx context.Context, name string, rc locator.RequestContext, opts ...locator.Option) (types.Resolution, error)
}

// RenderListener implements the host lifecycle hooks.
type RenderListener struct {
	locator    Locator
	engine     renderer.Engine
	events     *events.Dispatcher
	normalizer *normalizer.Normalizer
	registrar  TemplateRegistrar
	logger     logging.Logger

	enabled bool
	debug   bool
	skip    map[string]struct{}

	mutex     sync.RWMutex
	templates *types.Index
}

// Option configures a RenderListener.
type Option func(*RenderListener)

// WithRegistrar sets the host registrar notified on back-end requests.
func WithRegistrar(registrar TemplateRegistrar) Option {
	return func(l *RenderListener) {
		l.registrar = registrar
	}
}

// NewRenderListener creates a listener.
func NewRenderListener(cfg *config.Config, loc Locator, engine renderer.Engine, dispatcher *events.Dispatcher, logger logging.Logger, opts ...Option) *RenderListener {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if dispatcher == nil {
		dispatcher = events.NewDispatcher()
	}

	skip := make(map[string]struct{}, len(cfg.SkipTemplates))
	for _, name := range cfg.SkipTemplates {
		skip[name] = struct{}{}
	}

	l := &RenderListener{
		locator:    loc,
		engine:     engine,
		events:     dispatcher,
		normalizer: normalizer.New(),
		logger:     logger.WithComponent("dispatcher"),
		enabled:    cfg.EnableTemplateLoader,
		debug:      cfg.DebugMode,
		skip:       skip,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether the template loader is switched on.
func (l *RenderListener) Enabled() bool {
	return l.enabled
}

// OnInitializeSystem loads the template index. On back-end requests every
// template name is announced to the registrar.
func (l *RenderListener) OnInitializeSystem(ctx context.Context, rc locator.RequestContext) error {
	if !l.enabled {
		return nil
	}

	idx, err := l.loadTemplates(ctx)
	if err != nil {
		return err
	}

	if rc.Frontend || l.registrar == nil {
		return nil
	}
	for _, name := range idx.Names {
		entry, ok := idx.Get(name)
		if !ok {
			continue
		}
		l.registrar.AddFile(name, locator.SelectCandidate(entry.Paths, "").Path)
	}
	l.logger.Debug(ctx, "Registered twig templates", "count", idx.Len())
	return nil
}

func (l *RenderListener) loadTemplates(ctx context.Context) (*types.Index, error) {
	l.mutex.RLock()
	idx := l.templates
	l.mutex.RUnlock()
	if idx != nil {
		return idx, nil
	}

	idx, err := l.locator.Templates(ctx, types.VariantWithoutExtension)
	if err != nil {
		return nil, err
	}

	l.mutex.Lock()
	l.templates = idx
	l.mutex.Unlock()
	return idx, nil
}

// intercepts reports whether a template name is handled by twig.
func (l *RenderListener) intercepts(ctx context.Context, name string) (*types.Index, State, error) {
	if !l.enabled {
		return nil, StateNotFound, nil
	}
	if _, skipped := l.skip[name]; skipped {
		return nil, StateSkipped, nil
	}

	idx, err := l.loadTemplates(ctx)
	if err != nil {
		return nil, StateFailed, err
	}
	if !idx.Has(name) {
		return nil, StateNotFound, nil
	}
	return idx, StateParseRequested, nil
}

// OnParseTemplate rewrites a legacy template to the twig proxy when a twig
// template of the same name exists. The returned state tells what happened.
func (l *RenderListener) OnParseTemplate(ctx context.Context, tpl LegacyTemplate) (State, error) {
	name := tpl.Name()

	idx, state, err := l.intercepts(ctx, name)
	if state != StateParseRequested {
		record(tpl, state)
		return state, err
	}
	record(tpl, StateParseRequested)

	event := &events.BeforeParseEvent{
		TemplateName: name,
		TemplateData: copyData(tpl.Data()),
		Template:     tpl,
		Templates:    idx,
	}
	if err := l.events.DispatchBeforeParse(ctx, event); err != nil {
		if twigerrors.IsSkip(err) {
			record(tpl, StateSkipped)
			return StateSkipped, nil
		}
		return StateParseRequested, err
	}

	tpl.SetName(ProxyTemplate)
	tpl.SetData(map[string]any{
		TwigTemplate: event.TemplateName,
		TwigContext:  event.TemplateData,
	})
	record(tpl, StatePrepared)
	return StatePrepared, nil
}

// OnParseWidget rewrites a widget to the twig proxy and returns its newly
// rendered buffer. Widgets that are not intercepted keep their buffer.
func (l *RenderListener) OnParseWidget(ctx context.Context, buffer string, w Widget) (string, error) {
	name := w.TemplateName()

	idx, state, err := l.intercepts(ctx, name)
	if state != StateParseRequested {
		record(w, state)
		return buffer, err
	}
	record(w, StateParseRequested)

	data := l.normalizer.Normalize(w, nil, normalizer.Options{IncludeProperties: true})
	if options, ok := data["options"]; ok && !isEmpty(options) {
		data["arrOptions"] = options
	}

	event := &events.BeforeParseEvent{
		TemplateName: name,
		TemplateData: data,
		Template:     w,
		Templates:    idx,
	}
	if err := l.events.DispatchBeforeParse(ctx, event); err != nil {
		if twigerrors.IsSkip(err) {
			record(w, StateSkipped)
			return buffer, nil
		}
		return buffer, err
	}

	w.SetProperty(TwigTemplate, event.TemplateName)
	w.SetProperty(TwigContext, event.TemplateData)
	w.SetTemplateName(ProxyTemplate)
	record(w, StatePrepared)

	return w.Inherit(ctx)
}

// Render renders a proxy instance.
func (l *RenderListener) Render(ctx context.Context, p ProxyCarrier, rc locator.RequestContext) (string, error) {
	record(p, StateRenderRequested)

	buffer, err := l.render(ctx, p, rc)
	if err != nil {
		record(p, StateFailed)
		return "", err
	}
	record(p, StateRendered)
	return buffer, nil
}

func (l *RenderListener) render(ctx context.Context, p ProxyCarrier, rc locator.RequestContext) (string, error) {
	raw, _ := p.Lookup(TwigTemplate)
	name, ok := raw.(string)
	if !ok || name == "" {
		return "", twigerrors.NewInvalidConfigurationError(
			fmt.Sprintf("instance carries no %s value", TwigTemplate))
	}

	data := map[string]any{}
	if raw, ok := p.Lookup(TwigContext); ok {
		if m, ok := raw.(map[string]any); ok && m != nil {
			data = m
		}
	}

	resolution, err := l.locator.Resolve(ctx, name, rc)
	if err != nil {
		return "", err
	}

	l.mutex.RLock()
	idx := l.templates
	l.mutex.RUnlock()

	event := &events.BeforeRenderEvent{
		TemplateName: name,
		TemplateData: data,
		TemplatePath: resolution.Path,
		Template:     p,
		Templates:    idx,
	}
	if err := l.events.DispatchBeforeRender(ctx, event); err != nil {
		return "", err
	}

	if tpl, ok := p.(LegacyTemplate); ok {
		tpl.SetData(event.TemplateData)
	}

	buffer, err := l.engine.Render(ctx, event.TemplatePath, event.TemplateData)
	if err != nil {
		return "", err
	}

	if resolution.Deprecated {
		l.logger.Debug(ctx, "Template resolved through deprecated flattened name",
			"template", name, "path", event.TemplatePath)
	}

	if l.debug {
		buffer = renderer.WrapTemplateComments(event.TemplatePath, buffer)
	}
	return buffer, nil
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// isEmpty mirrors the loose emptiness check applied to widget options.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}
