package renderer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// Package folders that may hold namespaced templates, in lookup order.
var namespaceDirs = []string{filepath.Join("Resources", "views"), "templates"}

// NamespaceLoader maps template references to files. "@Ns/path" references
// are looked up in the view folders of the package with that namespace,
// anything else below the global roots.
type NamespaceLoader struct {
	roots      []string
	namespaces map[string][]string
}

// NewNamespaceLoader creates a loader. The first root is the project template
// root; the legacy resource folders of the packages follow.
func NewNamespaceLoader(templateRoot string, packages []types.Package) *NamespaceLoader {
	l := &NamespaceLoader{
		roots:      []string{absPath(templateRoot)},
		namespaces: make(map[string][]string, len(packages)),
	}
	for _, pkg := range packages {
		dirs := make([]string, 0, len(namespaceDirs))
		for _, dir := range namespaceDirs {
			dirs = append(dirs, absPath(filepath.Join(pkg.Path, dir)))
		}
		// Later packages override earlier ones for the same namespace.
		l.namespaces[pkg.Namespace()] = append(dirs, l.namespaces[pkg.Namespace()]...)
		l.roots = append(l.roots, absPath(filepath.Join(pkg.Path, "Resources", "contao", "templates")))
	}
	return l
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Resolve returns the file of a template reference.
func (l *NamespaceLoader) Resolve(ref string) (string, error) {
	ref = filepath.ToSlash(ref)

	if strings.HasPrefix(ref, types.NamespaceMarker) {
		ns, rel, ok := strings.Cut(strings.TrimPrefix(ref, types.NamespaceMarker), "/")
		if !ok || rel == "" {
			return "", fmt.Errorf("malformed namespaced template %q", ref)
		}
		dirs, known := l.namespaces[ns]
		if !known {
			return "", fmt.Errorf("there are no registered paths for namespace %q", ns)
		}
		return findIn(dirs, rel, ref)
	}

	if filepath.IsAbs(ref) {
		if isFile(ref) {
			return ref, nil
		}
		return "", fmt.Errorf("unable to find template %q", ref)
	}

	return findIn(l.roots, ref, ref)
}

func findIn(dirs []string, rel, ref string) (string, error) {
	if hasTraversal(rel) {
		return "", fmt.Errorf("looks like you try to load a template outside configured directories (%s)", ref)
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filepath.FromSlash(rel))
		if isFile(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unable to find template %q (looked into: %s)", ref, strings.Join(dirs, ", "))
}

func hasTraversal(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Abs implements pongo2.TemplateLoader. Unresolvable references are returned
// unchanged so that Get reports the failure.
func (l *NamespaceLoader) Abs(base, name string) string {
	if file, err := l.Resolve(name); err == nil {
		return file
	}
	if base != "" && !strings.HasPrefix(name, types.NamespaceMarker) && !filepath.IsAbs(name) {
		candidate := filepath.Join(filepath.Dir(base), filepath.FromSlash(name))
		if isFile(candidate) {
			return candidate
		}
	}
	return name
}

// Get implements pongo2.TemplateLoader.
func (l *NamespaceLoader) Get(path string) (io.Reader, error) {
	file, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
