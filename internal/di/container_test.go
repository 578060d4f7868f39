package di

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/testutils"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testService struct {
	name string
}

func newContainer(t *testing.T) (*ServiceContainer, *testutils.Project) {
	t.Helper()
	p := testutils.CreateTempProject(t)
	return NewServiceContainer(p.Config, logging.NewNopLogger()), p
}

func TestServiceContainer_SingletonBehavior(t *testing.T) {
	c, _ := newContainer(t)

	var created atomic.Int32
	c.RegisterSingleton("singleton", func(DependencyResolver) (interface{}, error) {
		created.Add(1)
		return &testService{name: "singleton"}, nil
	})

	first, err := c.Get("singleton")
	require.NoError(t, err)
	second, err := c.Get("singleton")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), created.Load())
}

func TestServiceContainer_TransientBehavior(t *testing.T) {
	c, _ := newContainer(t)

	c.Register("transient", func(DependencyResolver) (interface{}, error) {
		return &testService{name: "transient"}, nil
	})

	first, err := c.Get("transient")
	require.NoError(t, err)
	second, err := c.Get("transient")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestServiceContainer_CircularDependency(t *testing.T) {
	c, _ := newContainer(t)

	c.RegisterSingleton("a", func(r DependencyResolver) (interface{}, error) {
		return r.Get("b")
	})
	c.RegisterSingleton("b", func(r DependencyResolver) (interface{}, error) {
		return r.Get("a")
	})

	_, err := c.Get("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestServiceContainer_UnknownService(t *testing.T) {
	c, _ := newContainer(t)

	_, err := c.Get("missing")
	require.Error(t, err)
	assert.False(t, c.Has("missing"))
	assert.Panics(t, func() { c.MustGet("missing") })
}

func TestServiceContainer_ConcurrentSingleton(t *testing.T) {
	c, _ := newContainer(t)

	var created atomic.Int32
	c.RegisterSingleton("shared", func(DependencyResolver) (interface{}, error) {
		created.Add(1)
		return &testService{name: "shared"}, nil
	})

	var wg sync.WaitGroup
	results := make([]interface{}, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instance, err := c.Get("shared")
			assert.NoError(t, err)
			results[i] = instance
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, instance := range results {
		assert.Same(t, results[0], instance)
	}
}

func TestServiceContainer_Initialize(t *testing.T) {
	c, _ := newContainer(t)
	require.NoError(t, c.Initialize())
	require.NoError(t, c.Initialize())

	assert.Equal(t, []string{
		ServiceEngine,
		ServiceEvents,
		ServiceIndexCache,
		ServiceListener,
		ServiceLocator,
		ServiceLogger,
		ServiceRenderer,
		ServiceScanner,
		ServiceStore,
		ServiceWatcher,
	}, c.ListServices())

	def, ok := c.GetServiceDefinition(ServiceIndexCache)
	require.True(t, ok)
	assert.True(t, def.Singleton)
	assert.ElementsMatch(t, []string{ServiceStore, ServiceScanner, ServiceLogger}, def.Dependencies)
	assert.Contains(t, def.Tags, "cache")
}

func TestServiceContainer_InitializeWithoutConfig(t *testing.T) {
	c := NewServiceContainer(nil, nil)
	assert.Error(t, c.Initialize())
}

func TestServiceContainer_LocatorIsRequestScoped(t *testing.T) {
	c, p := newContainer(t)
	p.WriteTemplate("ce_text.html.twig", "text")
	require.NoError(t, c.Initialize())

	first, err := c.Locator()
	require.NoError(t, err)
	second, err := c.Locator()
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	ic1, err := c.IndexCache()
	require.NoError(t, err)
	ic2, err := c.IndexCache()
	require.NoError(t, err)
	assert.Same(t, ic1, ic2)

	res, err := first.Resolve(context.Background(), "ce_text", locator.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "ce_text.html.twig", res.Path)
}

func TestServiceContainer_RenderEndToEnd(t *testing.T) {
	c, p := newContainer(t)
	p.WriteTemplate("greeting.html.twig", "Hello {{ name }}!")
	require.NoError(t, c.Initialize())

	r, err := c.Renderer()
	require.NoError(t, err)

	out, err := r.Render(context.Background(), "greeting", map[string]any{"name": "World"}, locator.RequestContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", out)
}

func TestServiceContainer_Shutdown(t *testing.T) {
	c, p := newContainer(t)
	p.WriteTemplate("ce_text.html.twig", "text")
	require.NoError(t, c.Initialize())

	fw, err := c.FileWatcher()
	require.NoError(t, err)
	assert.NotEmpty(t, fw.WatchList())

	ic, err := c.IndexCache()
	require.NoError(t, err)
	idx, err := ic.Get(context.Background(), types.VariantWithoutExtension)
	require.NoError(t, err)
	assert.True(t, idx.Has("ce_text"))

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestWatchRoots(t *testing.T) {
	_, p := newContainer(t)
	root := p.AddPackage("AcmeBundle")

	assert.Equal(t, []string{p.Config.TemplateRoot(), root}, WatchRoots(p.Config))
}
