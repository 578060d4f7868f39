package testutils

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTempProject(t *testing.T) {
	p := CreateTempProject(t)

	info, err := os.Stat(p.TemplateRoot())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, p.Config.EnableTemplateLoader)
	assert.Equal(t, "memory", p.Config.Cache.Backend)
}

func TestWriteTemplate(t *testing.T) {
	p := CreateTempProject(t)

	path := p.WriteTemplate("customtheme/ce_text.html.twig", "hello")

	assert.Equal(t, filepath.Join(p.TemplateRoot(), "customtheme", "ce_text.html.twig"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestWritePackageTemplate(t *testing.T) {
	p := CreateTempProject(t)
	root := p.AddPackage("AcmeBundle")

	path := p.WritePackageTemplate("AcmeBundle", "Resources/views/ce_text.html.twig", "x")

	assert.Equal(t, filepath.Join(root, "Resources", "views", "ce_text.html.twig"), path)
	require.Len(t, p.Config.Packages, 1)
	assert.Equal(t, "Acme", p.Config.Packages[0].Namespace())
}

func TestAssertFilePermissions(t *testing.T) {
	p := CreateTempProject(t)
	path := p.WriteTemplate("a.html.twig", "a")
	require.NoError(t, os.Chmod(path, 0600))

	AssertFilePermissions(t, path, 0600)
}

func TestWaitFor(t *testing.T) {
	var flag atomic.Bool
	time.AfterFunc(20*time.Millisecond, func() { flag.Store(true) })

	WaitFor(t, time.Second, flag.Load, "flag set")
}
