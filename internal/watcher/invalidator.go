package watcher

import (
	"context"
)

// Invalidator drops cached template indexes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheClearer drops compiled templates.
type CacheClearer interface {
	ClearCache()
}

// InvalidateOnChange returns a handler that invalidates the index cache and
// the engine's compiled templates after every batch of template changes.
// The engine may be nil.
func InvalidateOnChange(cache Invalidator, engine CacheClearer) ChangeHandler {
	return func(ctx context.Context, events []ChangeEvent) error {
		if len(events) == 0 {
			return nil
		}
		if engine != nil {
			engine.ClearCache()
		}
		return cache.Invalidate(ctx)
	}
}
