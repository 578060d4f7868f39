// Package di wires the twig support services together.
//
// The container resolves named services lazily, creates singletons exactly
// once even under concurrent access and detects circular dependencies. The
// core services are registered by Initialize from the loaded configuration.
package di

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/cache"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/dispatcher"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/events"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/locator"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/renderer"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/scanner"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/watcher"
)

// Service names.
const (
	ServiceLogger     = "logger"
	ServiceStore      = "store"
	ServiceScanner    = "scanner"
	ServiceIndexCache = "indexCache"
	ServiceLocator    = "locator"
	ServiceEvents     = "events"
	ServiceEngine     = "engine"
	ServiceRenderer   = "renderer"
	ServiceListener   = "listener"
	ServiceWatcher    = "watcher"
)

// dependencyResolver is a wrapper around ServiceContainer that prevents deadlocks
type dependencyResolver struct {
	container *ServiceContainer
	resolving map[string]bool
}

// Get retrieves a service using the safe resolver
func (dr *dependencyResolver) Get(name string) (interface{}, error) {
	return dr.container.getWithResolver(name, dr.resolving)
}

// DependencyResolver provides safe dependency resolution that prevents circular dependencies
type DependencyResolver interface {
	Get(name string) (interface{}, error)
}

// FactoryFunc creates a service instance using the dependency resolver
type FactoryFunc func(resolver DependencyResolver) (interface{}, error)

// ServiceDefinition defines how a service should be created and managed
type ServiceDefinition struct {
	Name         string
	Factory      FactoryFunc
	Singleton    bool
	Dependencies []string
	Tags         []string
}

// ServiceContainer manages dependency injection for the application
type ServiceContainer struct {
	services    map[string]ServiceDefinition
	singletons  map[string]interface{}
	creating    map[string]*sync.WaitGroup // Track services being created
	mu          sync.RWMutex
	config      *config.Config
	logger      logging.Logger
	initialized bool
}

// ServiceBuilder helps build service definitions
type ServiceBuilder struct {
	definition ServiceDefinition
	container  *ServiceContainer
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger logging.Logger) *ServiceContainer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ServiceContainer{
		services:   make(map[string]ServiceDefinition),
		singletons: make(map[string]interface{}),
		creating:   make(map[string]*sync.WaitGroup),
		config:     cfg,
		logger:     logger,
	}
}

// Register registers a transient service with the container
func (c *ServiceContainer) Register(name string, factory FactoryFunc) *ServiceBuilder {
	return c.register(name, factory, false)
}

// RegisterSingleton registers a singleton service
func (c *ServiceContainer) RegisterSingleton(name string, factory FactoryFunc) *ServiceBuilder {
	return c.register(name, factory, true)
}

func (c *ServiceContainer) register(name string, factory FactoryFunc, singleton bool) *ServiceBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()

	builder := &ServiceBuilder{
		definition: ServiceDefinition{
			Name:         name,
			Factory:      factory,
			Singleton:    singleton,
			Dependencies: make([]string, 0),
			Tags:         make([]string, 0),
		},
		container: c,
	}
	c.services[name] = builder.definition
	delete(c.singletons, name)
	return builder
}

// RegisterInstance registers an existing instance as a singleton
func (c *ServiceContainer) RegisterInstance(name string, instance interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.singletons[name] = instance
	c.services[name] = ServiceDefinition{Name: name, Singleton: true}
}

// Get retrieves a service from the container
func (c *ServiceContainer) Get(name string) (interface{}, error) {
	return c.getWithResolver(name, make(map[string]bool))
}

// getWithResolver retrieves a service with circular dependency detection
func (c *ServiceContainer) getWithResolver(name string, resolving map[string]bool) (interface{}, error) {
	if resolving[name] {
		return nil, fmt.Errorf("circular dependency detected for service '%s'", name)
	}

	c.mu.RLock()
	definition, exists := c.services[name]
	c.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("service '%s' not registered", name)
	}

	if !definition.Singleton {
		resolving[name] = true
		instance, err := c.createInstance(definition.Factory, resolving)
		delete(resolving, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create service '%s': %w", name, err)
		}
		return instance, nil
	}

	c.mu.Lock()
	if instance, exists := c.singletons[name]; exists {
		c.mu.Unlock()
		return instance, nil
	}

	// Another goroutine is creating this singleton
	if wg, creating := c.creating[name]; creating {
		c.mu.Unlock()
		wg.Wait()
		c.mu.RLock()
		instance, ok := c.singletons[name]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("failed to create singleton service '%s'", name)
		}
		return instance, nil
	}

	// Reserve creation - we will create this singleton
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.creating[name] = wg
	resolving[name] = true
	c.mu.Unlock()

	instance, err := c.createInstance(definition.Factory, resolving)
	delete(resolving, name)

	c.mu.Lock()
	delete(c.creating, name)
	if err == nil {
		c.singletons[name] = instance
	}
	c.mu.Unlock()
	wg.Done()

	if err != nil {
		return nil, fmt.Errorf("failed to create singleton service '%s': %w", name, err)
	}
	return instance, nil
}

func (c *ServiceContainer) createInstance(factory FactoryFunc, resolving map[string]bool) (interface{}, error) {
	if factory == nil {
		return nil, fmt.Errorf("factory is nil")
	}
	return factory(&dependencyResolver{container: c, resolving: resolving})
}

// MustGet retrieves a service and panics if not found
func (c *ServiceContainer) MustGet(name string) interface{} {
	instance, err := c.Get(name)
	if err != nil {
		panic(fmt.Sprintf("failed to get service '%s': %v", name, err))
	}
	return instance
}

// Has checks if a service is registered
func (c *ServiceContainer) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	return exists
}

// Initialize registers the core services once.
func (c *ServiceContainer) Initialize() error {
	if c.initialized {
		return nil
	}
	if c.config == nil {
		return fmt.Errorf("container has no configuration")
	}

	c.registerCoreServices()
	c.initialized = true
	return nil
}

// get resolves a dependency and asserts its type.
func get[T any](resolver DependencyResolver, name string) (T, error) {
	var zero T
	instance, err := resolver.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service '%s' has unexpected type %T", name, instance)
	}
	return typed, nil
}

// registerCoreServices registers the twig support services
func (c *ServiceContainer) registerCoreServices() {
	cfg := c.config

	c.RegisterInstance(ServiceLogger, c.logger)

	c.RegisterSingleton(ServiceStore, func(resolver DependencyResolver) (interface{}, error) {
		return cache.NewStore(cfg)
	}).WithTag("cache")

	c.RegisterSingleton(ServiceScanner, func(resolver DependencyResolver) (interface{}, error) {
		logger, err := get[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		return scanner.NewTemplateScanner(cfg, logger), nil
	}).DependsOn(ServiceLogger).WithTag("core")

	c.RegisterSingleton(ServiceIndexCache, func(resolver DependencyResolver) (interface{}, error) {
		store, err := get[cache.Store](resolver, ServiceStore)
		if err != nil {
			return nil, err
		}
		sc, err := get[*scanner.TemplateScanner](resolver, ServiceScanner)
		if err != nil {
			return nil, err
		}
		logger, err := get[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		return cache.NewIndexCache(store, sc, logger, cache.Options{
			Bypass:   cfg.IsDev(),
			Lifetime: cfg.CacheLifetime(),
			Compress: cfg.Cache.Compress,
		}), nil
	}).DependsOn(ServiceStore, ServiceScanner, ServiceLogger).WithTag("core", "cache")

	// The locator memoizes indexes, so every Get returns a fresh request scope.
	c.Register(ServiceLocator, func(resolver DependencyResolver) (interface{}, error) {
		ic, err := get[*cache.IndexCache](resolver, ServiceIndexCache)
		if err != nil {
			return nil, err
		}
		logger, err := get[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		return locator.NewTemplateLocator(ic, cfg.Themes, logger), nil
	}).DependsOn(ServiceIndexCache, ServiceLogger).WithTag("core")

	c.RegisterSingleton(ServiceEvents, func(resolver DependencyResolver) (interface{}, error) {
		return events.NewDispatcher(), nil
	}).WithTag("core")

	c.RegisterSingleton(ServiceEngine, func(resolver DependencyResolver) (interface{}, error) {
		loader := renderer.NewNamespaceLoader(cfg.TemplateRoot(), cfg.Packages)
		return renderer.NewPongo2Engine(loader, cfg.IsDev()), nil
	}).WithTag("render")

	c.Register(ServiceRenderer, func(resolver DependencyResolver) (interface{}, error) {
		engine, err := get[*renderer.Pongo2Engine](resolver, ServiceEngine)
		if err != nil {
			return nil, err
		}
		loc, err := get[*locator.TemplateLocator](resolver, ServiceLocator)
		if err != nil {
			return nil, err
		}
		logger, err := get[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		return renderer.NewTemplateRenderer(engine, loc, cfg.DebugMode, logger), nil
	}).DependsOn(ServiceEngine, ServiceLocator, ServiceLogger).WithTag("render")

	c.Register(ServiceListener, func(resolver DependencyResolver) (interface{}, error) {
		loc, err := get[*locator.TemplateLocator](resolver, ServiceLocator)
		if err != nil {
			return nil, err
		}
		engine, err := get[*renderer.Pongo2Engine](resolver, ServiceEngine)
		if err != nil {
			return nil, err
		}
		ev, err := get[*events.Dispatcher](resolver, ServiceEvents)
		if err != nil {
			return nil, err
		}
		logger, err := get[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}
		return dispatcher.NewRenderListener(cfg, loc, engine, ev, logger), nil
	}).DependsOn(ServiceLocator, ServiceEngine, ServiceEvents, ServiceLogger).WithTag("render")

	c.RegisterSingleton(ServiceWatcher, func(resolver DependencyResolver) (interface{}, error) {
		ic, err := get[*cache.IndexCache](resolver, ServiceIndexCache)
		if err != nil {
			return nil, err
		}
		engine, err := get[*renderer.Pongo2Engine](resolver, ServiceEngine)
		if err != nil {
			return nil, err
		}
		logger, err := get[logging.Logger](resolver, ServiceLogger)
		if err != nil {
			return nil, err
		}

		fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
		if err != nil {
			return nil, err
		}
		fw.Ignore(cfg.Watch.Ignore...)
		fw.AddFilter(watcher.TwigFilter)
		fw.AddHandler(watcher.InvalidateOnChange(ic, engine))
		for _, root := range WatchRoots(cfg) {
			if err := fw.AddRecursive(root); err != nil {
				_ = fw.Stop()
				return nil, fmt.Errorf("watching %s: %w", root, err)
			}
		}
		return fw, nil
	}).DependsOn(ServiceIndexCache, ServiceEngine, ServiceLogger).WithTag("watch")
}

// WatchRoots lists every directory that may contribute templates.
func WatchRoots(cfg *config.Config) []string {
	roots := []string{cfg.TemplateRoot()}
	for _, pkg := range cfg.Packages {
		roots = append(roots, pkg.Path)
	}
	return roots
}

// Shutdown stops the watcher and closes the cache store.
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	if instance, ok := c.singletons[ServiceWatcher]; ok {
		if err := instance.(*watcher.FileWatcher).Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop watcher: %w", err))
		}
	}
	if instance, ok := c.singletons[ServiceStore]; ok {
		if err := instance.(cache.Store).Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}

	c.singletons = make(map[string]interface{})

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// ServiceBuilder methods for fluent interface

// DependsOn adds dependencies to the service
func (sb *ServiceBuilder) DependsOn(dependencies ...string) *ServiceBuilder {
	sb.definition.Dependencies = append(sb.definition.Dependencies, dependencies...)
	sb.updateContainer()
	return sb
}

// WithTag adds tags to the service
func (sb *ServiceBuilder) WithTag(tags ...string) *ServiceBuilder {
	sb.definition.Tags = append(sb.definition.Tags, tags...)
	sb.updateContainer()
	return sb
}

// updateContainer updates the service definition in the container
func (sb *ServiceBuilder) updateContainer() {
	sb.container.mu.Lock()
	sb.container.services[sb.definition.Name] = sb.definition
	sb.container.mu.Unlock()
}

// Convenience methods for typed service retrieval

// IndexCache retrieves the template index cache
func (c *ServiceContainer) IndexCache() (*cache.IndexCache, error) {
	return get[*cache.IndexCache](c, ServiceIndexCache)
}

// Scanner retrieves the template scanner
func (c *ServiceContainer) Scanner() (*scanner.TemplateScanner, error) {
	return get[*scanner.TemplateScanner](c, ServiceScanner)
}

// Locator returns a new request-scoped template locator
func (c *ServiceContainer) Locator() (*locator.TemplateLocator, error) {
	return get[*locator.TemplateLocator](c, ServiceLocator)
}

// Renderer returns a new template renderer with its own locator
func (c *ServiceContainer) Renderer() (*renderer.TemplateRenderer, error) {
	return get[*renderer.TemplateRenderer](c, ServiceRenderer)
}

// Listener returns a new render listener with its own locator
func (c *ServiceContainer) Listener() (*dispatcher.RenderListener, error) {
	return get[*dispatcher.RenderListener](c, ServiceListener)
}

// Events retrieves the extension point dispatcher
func (c *ServiceContainer) Events() (*events.Dispatcher, error) {
	return get[*events.Dispatcher](c, ServiceEvents)
}

// FileWatcher retrieves the template watcher
func (c *ServiceContainer) FileWatcher() (*watcher.FileWatcher, error) {
	return get[*watcher.FileWatcher](c, ServiceWatcher)
}

// ListServices returns the registered service names, sorted
func (c *ServiceContainer) ListServices() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	services := make([]string, 0, len(c.services))
	for name := range c.services {
		services = append(services, name)
	}
	sort.Strings(services)
	return services
}

// GetServiceDefinition returns the definition for a service
func (c *ServiceContainer) GetServiceDefinition(name string) (ServiceDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	definition, exists := c.services[name]
	return definition, exists
}
