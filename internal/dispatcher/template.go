package dispatcher

import (
	"context"
	"sync"
)

// LegacyTemplate is a template instance of the host engine.
type LegacyTemplate interface {
	Name() string
	SetName(name string)
	Data() map[string]any
	SetData(data map[string]any)
}

// Widget is a form widget of the host engine.
type Widget interface {
	TemplateName() string
	SetTemplateName(name string)
	SetProperty(key string, value any)
	// Inherit renders the widget with its current template.
	Inherit(ctx context.Context) (string, error)
}

// ProxyCarrier exposes the proxy values of a rewritten instance.
type ProxyCarrier interface {
	Lookup(key string) (any, bool)
}

// TemplateRegistrar receives template names on back-end requests so the
// host can offer them for selection.
type TemplateRegistrar interface {
	AddFile(name, path string)
}

// Template is a plain LegacyTemplate. It serves embedders without their own
// template type and the maintenance CLI.
type Template struct {
	mu    sync.RWMutex
	name  string
	data  map[string]any
	state State
}

// NewTemplate creates a template with the given name and data.
func NewTemplate(name string, data map[string]any) *Template {
	if data == nil {
		data = make(map[string]any)
	}
	return &Template{name: name, data: data}
}

func (t *Template) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *Template) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

func (t *Template) Data() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data
}

func (t *Template) SetData(data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = data
}

// Lookup reads a data value.
func (t *Template) Lookup(key string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[key]
	return v, ok
}

// SetState implements StateRecorder.
func (t *Template) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// State returns the interception state.
func (t *Template) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
