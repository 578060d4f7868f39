// Package internal contains the implementation packages of the twig support
// layer.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - types: shared data model (candidates, index, resolution, packages, themes)
//   - scanner: template discovery across package and project roots
//   - registry: append-only index construction used by the scanner
//   - codec, cache: persisted index values and their stores (file, sqlite, memory)
//   - locator: name resolution with override precedence and template groups
//   - renderer: the pongo2 engine, its namespace loader and the renderer API
//   - dispatcher, events, normalizer: interception of legacy templates and widgets
//   - watcher: filesystem monitoring that invalidates the cached index
//   - config, logging, errors, di, version: ambient infrastructure
//
// # Inter-Package Communication
//
// Data flows in one direction:
//
//   - Scanner builds both index variants through the registry
//   - IndexCache stores them and rebuilds on a miss or a corrupt value
//   - TemplateLocator memoizes the indexes of one request scope and resolves names
//   - RenderListener rewrites intercepted instances and renders them through the engine
//   - Watcher invalidates the IndexCache and the compiled templates on change
//
// The di package wires these services from a config.Config.
package internal
