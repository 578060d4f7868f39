// Package testutils builds temporary projects with template trees for tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/stretchr/testify/require"
)

// Project is a temporary project directory with a matching configuration.
type Project struct {
	t      *testing.T
	Dir    string
	Config *config.Config
}

// CreateTempProject creates an empty project with the default configuration,
// an in-memory cache backend and the template loader switched on.
func CreateTempProject(t *testing.T) *Project {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.ProjectDir = dir
	cfg.EnableTemplateLoader = true
	cfg.Cache.Backend = config.CacheBackendMemory

	require.NoError(t, os.MkdirAll(cfg.TemplateRoot(), 0755))

	return &Project{t: t, Dir: dir, Config: cfg}
}

// TemplateRoot returns the absolute project template root.
func (p *Project) TemplateRoot() string {
	root, err := filepath.Abs(p.Config.TemplateRoot())
	require.NoError(p.t, err)
	return root
}

// WriteTemplate writes a template below the project template root and
// returns its absolute path.
func (p *Project) WriteTemplate(rel, content string) string {
	p.t.Helper()
	return writeFile(p.t, filepath.Join(p.TemplateRoot(), filepath.FromSlash(rel)), content)
}

// AddPackage declares a package rooted at vendor/<name> and returns its root.
// Packages are scanned in the order they are added.
func (p *Project) AddPackage(name string) string {
	p.t.Helper()

	root := filepath.Join(p.Dir, "vendor", name)
	require.NoError(p.t, os.MkdirAll(root, 0755))
	p.Config.Packages = append(p.Config.Packages, types.Package{Name: name, Path: root})
	return root
}

// WritePackageTemplate writes a file below a declared package root, e.g.
// "Resources/views/ce_text.html.twig".
func (p *Project) WritePackageTemplate(pkg, rel, content string) string {
	p.t.Helper()

	for _, declared := range p.Config.Packages {
		if declared.Name == pkg {
			return writeFile(p.t, filepath.Join(declared.Path, filepath.FromSlash(rel)), content)
		}
	}
	p.t.Fatalf("package %s is not declared", pkg)
	return ""
}

// AddTheme declares a theme with its folder below the template root.
func (p *Project) AddTheme(name, folder string) {
	p.Config.Themes = append(p.Config.Themes, types.Theme{Name: name, Folder: folder})
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// PathTraversal lists template names and folders that must never reach the
// filesystem.
var PathTraversal = []string{
	"../../../etc/passwd",
	"..\\..\\..\\windows\\system32\\config\\sam",
	"/etc/passwd",
	"theme/../../secret",
	"theme\x00/evil",
}

// AssertFilePermissions checks that files have the expected permissions
func AssertFilePermissions(t *testing.T, path string, expectedMode os.FileMode) {
	info, err := os.Stat(path)
	require.NoError(t, err)

	actualMode := info.Mode()
	require.Equal(t, expectedMode, actualMode&os.FileMode(0777),
		"File %s has incorrect permissions: got %o, want %o",
		path, actualMode&os.FileMode(0777), expectedMode)
}

// WaitFor polls cond until it holds or the timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
