// Package types provides the shared data model of the template index.
// This package contains shared types to avoid circular dependencies between
// the scanner, the registry, the cache and the locator.
package types

import "strings"

// NamespaceMarker prefixes every path contributed by an installed package
// (e.g. "@Acme/ce_text.html.twig").
const NamespaceMarker = "@"

// Variant selects one of the two spellings of the index keys.
type Variant int

const (
	// VariantWithoutExtension keys templates by name with the suffix stripped ("ce_text").
	VariantWithoutExtension Variant = iota
	// VariantWithExtension keys templates by their literal file name ("ce_text.html.twig").
	VariantWithExtension
)

// String returns the string representation of the Variant
func (v Variant) String() string {
	switch v {
	case VariantWithExtension:
		return "with_extension"
	case VariantWithoutExtension:
		return "without_extension"
	default:
		return "unknown"
	}
}

// Variants lists both index variants in the order they are built.
func Variants() []Variant {
	return []Variant{VariantWithoutExtension, VariantWithExtension}
}

// CandidatePath is one concrete resolution target for a template name.
type CandidatePath struct {
	// Path is the reference handed to the render engine, either relative to the
	// global template root or namespaced ("@Package/sub/path.html.twig").
	Path string `cbor:"1,keyasint" json:"path" yaml:"path"`
	// Package is the owning package, empty for project-level templates.
	Package string `cbor:"2,keyasint,omitempty" json:"package,omitempty" yaml:"package,omitempty"`
	// Pathname is the absolute filesystem location of the template file.
	Pathname string `cbor:"3,keyasint" json:"pathname" yaml:"pathname"`
	// Deprecated is set when the candidate was registered through the legacy
	// flattened-name lookup.
	Deprecated bool `cbor:"4,keyasint,omitempty" json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	// Resource marks a non-namespaced candidate found in a package resource
	// folder rather than below the project template root.
	Resource bool `cbor:"5,keyasint,omitempty" json:"resource,omitempty" yaml:"resource,omitempty"`
}

// IsNamespaced reports whether the candidate belongs to an installed package.
func (c CandidatePath) IsNamespaced() bool {
	return strings.HasPrefix(c.Path, NamespaceMarker)
}

// Namespace returns the "@Package" segment of a namespaced path, or "".
func (c CandidatePath) Namespace() string {
	if !c.IsNamespaced() {
		return ""
	}
	ns, _, _ := strings.Cut(c.Path, "/")
	return ns
}

// TemplateEntry holds every candidate of one template name in discovery order.
// The order is not the precedence order; precedence is applied at query time.
type TemplateEntry struct {
	Paths []CandidatePath `cbor:"1,keyasint" json:"paths" yaml:"paths"`
}

// PathStrings returns the engine references of all candidates.
func (e *TemplateEntry) PathStrings() []string {
	paths := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		paths[i] = p.Path
	}
	return paths
}

// Index maps template names to their candidates. Names keeps the discovery
// order of the keys so that listings are deterministic.
type Index struct {
	Names   []string                  `cbor:"1,keyasint" json:"names" yaml:"names"`
	Entries map[string]*TemplateEntry `cbor:"2,keyasint" json:"entries" yaml:"entries"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Names:   make([]string, 0),
		Entries: make(map[string]*TemplateEntry),
	}
}

// Append adds a candidate to a name. Candidates are never replaced.
func (idx *Index) Append(name string, candidate CandidatePath) {
	entry, exists := idx.Entries[name]
	if !exists {
		entry = &TemplateEntry{}
		idx.Entries[name] = entry
		idx.Names = append(idx.Names, name)
	}
	entry.Paths = append(entry.Paths, candidate)
}

// Get returns the entry for a name.
func (idx *Index) Get(name string) (*TemplateEntry, bool) {
	if idx == nil {
		return nil, false
	}
	entry, ok := idx.Entries[name]
	if !ok || entry == nil || len(entry.Paths) == 0 {
		return nil, false
	}
	return entry, true
}

// Has reports whether a name is present.
func (idx *Index) Has(name string) bool {
	_, ok := idx.Get(name)
	return ok
}

// Len returns the number of template names.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Names)
}

// Valid reports whether the index is structurally sound: every listed name has
// a non-empty entry and every entry is listed exactly once.
func (idx *Index) Valid() bool {
	if idx == nil || idx.Entries == nil {
		return false
	}
	if len(idx.Names) != len(idx.Entries) {
		return false
	}
	seen := make(map[string]struct{}, len(idx.Names))
	for _, name := range idx.Names {
		if _, dup := seen[name]; dup {
			return false
		}
		seen[name] = struct{}{}
		entry, ok := idx.Entries[name]
		if !ok || entry == nil || len(entry.Paths) == 0 {
			return false
		}
	}
	return true
}

// Resolution is the outcome of resolving a template name: the winning
// candidate together with its recorded metadata.
type Resolution struct {
	Name       string `json:"name" yaml:"name"`
	Path       string `json:"path" yaml:"path"`
	Package    string `json:"package,omitempty" yaml:"package,omitempty"`
	Pathname   string `json:"pathname" yaml:"pathname"`
	Deprecated bool   `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// NewResolution builds a Resolution from a candidate.
func NewResolution(name string, c CandidatePath) Resolution {
	return Resolution{
		Name:       name,
		Path:       c.Path,
		Package:    c.Package,
		Pathname:   c.Pathname,
		Deprecated: c.Deprecated,
	}
}

// Package describes an installed package that contributes templates.
type Package struct {
	// Name is the declared package name (e.g. "AcmeBundle").
	Name string `yaml:"name" mapstructure:"name"`
	// Path is the package root on disk.
	Path string `yaml:"path" mapstructure:"path"`
}

// Namespace returns the template namespace of the package: the name with a
// trailing "Bundle" removed.
func (p Package) Namespace() string {
	return strings.TrimSuffix(p.Name, "Bundle")
}

// Theme describes a site theme with its override folder below the project
// template root.
type Theme struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Folder string `yaml:"folder" mapstructure:"folder"`
}

// NormalizeThemeFolder turns a theme folder as stored in page or theme
// settings ("templates/customtheme/") into a path below the project template
// root ("customtheme").
func NormalizeThemeFolder(folder string) string {
	f := strings.Trim(strings.ReplaceAll(folder, "\\", "/"), "/")
	if f == "templates" {
		return ""
	}
	f = strings.TrimPrefix(f, "templates/")
	return strings.Trim(f, "/")
}
