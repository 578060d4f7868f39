// Package events provides the typed extension points fired while a template
// is intercepted and rendered.
package events

import (
	"context"
	"sort"
	"sync"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// Event names, used in logs.
const (
	BeforeParseName  = "huh.twig_support.before_parse_twig_template"
	BeforeRenderName = "huh.twig_support.before_render_twig_template"
)

// BeforeParseEvent is fired before a legacy template or widget is rewritten
// to the twig proxy. Listeners may change the name and the data, or return
// errors.NewSkipError() to leave the instance untouched.
type BeforeParseEvent struct {
	TemplateName string
	TemplateData map[string]any
	// Template is the intercepted template or widget. Listeners must not
	// modify it.
	Template  any
	Templates *types.Index
}

// BeforeRenderEvent is fired after the template path is resolved and before
// the engine renders it.
type BeforeRenderEvent struct {
	TemplateName string
	TemplateData map[string]any
	TemplatePath string
	Template     any
	Templates    *types.Index
}

// BeforeParseListener handles BeforeParseEvent.
type BeforeParseListener func(ctx context.Context, event *BeforeParseEvent) error

// BeforeRenderListener handles BeforeRenderEvent.
type BeforeRenderListener func(ctx context.Context, event *BeforeRenderEvent) error

type parseHook struct {
	priority int
	listener BeforeParseListener
}

type renderHook struct {
	priority int
	listener BeforeRenderListener
}

// Dispatcher calls the registered listeners of each extension point in
// priority order, highest first. Listeners with equal priority run in
// registration order.
type Dispatcher struct {
	parseHooks  []parseHook
	renderHooks []renderHook
	mu          sync.RWMutex
}

// NewDispatcher creates a dispatcher without listeners.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		parseHooks:  make([]parseHook, 0),
		renderHooks: make([]renderHook, 0),
	}
}

// OnBeforeParse registers a before-parse listener.
func (d *Dispatcher) OnBeforeParse(listener BeforeParseListener, priority int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Copy on write so running dispatches keep their snapshot.
	hooks := append(append(make([]parseHook, 0, len(d.parseHooks)+1), d.parseHooks...),
		parseHook{priority: priority, listener: listener})
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].priority > hooks[j].priority
	})
	d.parseHooks = hooks
}

// OnBeforeRender registers a before-render listener.
func (d *Dispatcher) OnBeforeRender(listener BeforeRenderListener, priority int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hooks := append(append(make([]renderHook, 0, len(d.renderHooks)+1), d.renderHooks...),
		renderHook{priority: priority, listener: listener})
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].priority > hooks[j].priority
	})
	d.renderHooks = hooks
}

// DispatchBeforeParse runs the before-parse listeners. The first error stops
// the chain and is returned.
func (d *Dispatcher) DispatchBeforeParse(ctx context.Context, event *BeforeParseEvent) error {
	if d == nil {
		return nil
	}

	d.mu.RLock()
	hooks := d.parseHooks
	d.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook.listener(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// DispatchBeforeRender runs the before-render listeners. The first error
// stops the chain and is returned.
func (d *Dispatcher) DispatchBeforeRender(ctx context.Context, event *BeforeRenderEvent) error {
	if d == nil {
		return nil
	}

	d.mu.RLock()
	hooks := d.renderHooks
	d.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook.listener(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of registered listeners per extension point.
func (d *Dispatcher) Count() (beforeParse, beforeRender int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.parseHooks), len(d.renderHooks)
}
