package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeWidget struct {
	fields    map[string]any
	accessors map[string]func() any
}

func (w *fakeWidget) Fields() map[string]any {
	return w.fields
}

func (w *fakeWidget) Accessors() map[string]func() any {
	return w.accessors
}

type opaque struct{ secret string }

func TestNormalizeAccessors(t *testing.T) {
	w := &fakeWidget{accessors: map[string]func() any{
		"getLabel":     func() any { return "Name" },
		"isMandatory":  func() any { return true },
		"hasErrors":    func() any { return false },
		"validate":     func() any { panic("not an accessor") },
		"getOptions":   func() any { return []map[string]any{{"value": "a"}} },
		"getParser":    func() any { return opaque{} },
		"getTimestamp": func() any { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}}

	data := New().Normalize(w, nil, Options{})

	assert.Equal(t, map[string]any{
		"label":     "Name",
		"mandatory": true,
		"errors":    false,
		"options":   []map[string]any{{"value": "a"}},
		"timestamp": "2024-01-02T03:04:05Z",
	}, data)
}

func TestNormalizeAccessorCollisions(t *testing.T) {
	w := &fakeWidget{accessors: map[string]func() any{
		"getValue": func() any { return "v" },
		"isValue":  func() any { return true },
		"hasValue": func() any { return true },
	}}

	data := New().Normalize(w, nil, Options{})

	assert.Equal(t, map[string]any{
		"value":    "v",
		"isValue":  true,
		"hasValue": true,
	}, data)
}

func TestNormalizeOptions(t *testing.T) {
	w := &fakeWidget{
		fields: map[string]any{"name": "email", "label": "field label", "parent": opaque{}},
		accessors: map[string]func() any{
			"getLabel": func() any { return "accessor label" },
			"getSql":   func() any { panic("skipped accessor called") },
		},
	}
	n := New()

	data := n.Normalize(w, map[string]any{"existing": 1}, Options{IncludeProperties: true, SkippedMethods: []string{"getSql"}})
	assert.Equal(t, map[string]any{"existing": 1, "name": "email", "label": "accessor label"}, data)

	data = n.Normalize(w, nil, Options{IncludeProperties: true, IgnoreMethods: true})
	assert.Equal(t, map[string]any{"name": "email", "label": "field label"}, data)

	data = n.Normalize(opaque{}, nil, Options{IncludeProperties: true})
	assert.Empty(t, data)
}

func TestNormalizeNestedDepth(t *testing.T) {
	inner := &fakeWidget{accessors: map[string]func() any{
		"getName": func() any { return "inner" },
		"getChild": func() any {
			return &fakeWidget{accessors: map[string]func() any{"getName": func() any { return "too deep" }}}
		},
	}}
	outer := &fakeWidget{accessors: map[string]func() any{
		"getInner": func() any { return inner },
		"getNil":   func() any { return nil },
	}}

	data := New().Normalize(outer, nil, Options{})

	assert.Equal(t, map[string]any{
		"inner": map[string]any{"name": "inner"},
		"nil":   nil,
	}, data)
}
