// Package normalizer converts template-like objects into plain data maps
// for the render engine.
//
// Objects describe themselves explicitly: Normalizable exposes named
// zero-argument accessors and FieldProvider exposes raw field values. No
// method lookup by reflection takes place.
package normalizer

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalizable objects expose their accessors by method name, for example
// "getLabel", "isMandatory" or "hasErrors".
type Normalizable interface {
	Accessors() map[string]func() any
}

// FieldProvider objects expose their field values by name.
type FieldProvider interface {
	Fields() map[string]any
}

// Options controls a normalization.
type Options struct {
	// IncludeProperties adds the values of Fields() before the accessors.
	IncludeProperties bool
	// IgnoreMethods skips the accessors entirely.
	IgnoreMethods bool
	// SkippedMethods lists accessor names that are never called.
	SkippedMethods []string
}

// Normalizer converts objects into data maps.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize adds the data of obj to data and returns it. Accessor values
// override field values of the same key. Nested objects are kept only when
// they describe themselves, and only one level deep.
func (n *Normalizer) Normalize(obj any, data map[string]any, opts Options) map[string]any {
	return n.normalize(obj, data, opts, 1)
}

func (n *Normalizer) normalize(obj any, data map[string]any, opts Options, depth int) map[string]any {
	if data == nil {
		data = make(map[string]any)
	}

	if opts.IncludeProperties {
		if fp, ok := obj.(FieldProvider); ok {
			for name, value := range fp.Fields() {
				if v, keep := n.value(value, depth); keep {
					data[name] = v
				} else {
					delete(data, name)
				}
			}
		}
	}

	if opts.IgnoreMethods {
		return data
	}

	nz, ok := obj.(Normalizable)
	if !ok {
		return data
	}

	accessors := nz.Accessors()
	names := make([]string, 0, len(accessors))
	for name := range accessors {
		names = append(names, name)
	}
	sort.Strings(names)

	skipped := make(map[string]struct{}, len(opts.SkippedMethods))
	for _, name := range opts.SkippedMethods {
		skipped[name] = struct{}{}
	}

	for _, method := range names {
		if _, skip := skipped[method]; skip {
			continue
		}
		property, ok := propertyName(method, accessors)
		if !ok {
			continue
		}
		fn := accessors[method]
		if fn == nil {
			continue
		}
		if v, keep := n.value(fn(), depth); keep {
			data[property] = v
		} else {
			delete(data, property)
		}
	}

	return data
}

// propertyName maps an accessor name to its data key. "getFoo" becomes
// "foo". "isFoo" and "hasFoo" become "foo" only when no other accessor style
// exists for Foo; otherwise they keep their full name.
func propertyName(method string, accessors map[string]func() any) (string, bool) {
	var start int
	switch {
	case strings.HasPrefix(method, "get"):
		start = 3
	case strings.HasPrefix(method, "is"):
		name := method[2:]
		if !hasAccessor(accessors, "has"+name) && !hasAccessor(accessors, "get"+name) {
			start = 2
		}
	case strings.HasPrefix(method, "has"):
		name := method[3:]
		if !hasAccessor(accessors, "is"+name) && !hasAccessor(accessors, "get"+name) {
			start = 3
		}
	default:
		return "", false
	}

	property := lcfirst(method[start:])
	if property == "" {
		return "", false
	}
	return property, true
}

func hasAccessor(accessors map[string]func() any, name string) bool {
	_, ok := accessors[name]
	return ok
}

func lcfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// value classifies a normalized value. Scalars, slices and maps are kept as
// they are. Self-describing objects are normalized while depth allows,
// json.Marshaler values are converted through their JSON form and every
// other object is dropped.
func (n *Normalizer) value(v any, depth int) (any, bool) {
	if v == nil {
		return nil, true
	}

	if nested, ok := v.(Normalizable); ok {
		if depth <= 0 {
			return nil, false
		}
		return n.normalize(nested, nil, Options{}, depth-1), true
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Struct, reflect.Pointer, reflect.Interface,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if m, ok := v.(json.Marshaler); ok {
			return fromJSON(m)
		}
		return nil, false
	default:
		return v, true
	}
}

func fromJSON(m json.Marshaler) (any, bool) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}
