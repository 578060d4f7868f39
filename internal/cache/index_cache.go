package cache

import (
	"context"
	"errors"
	"time"

	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"golang.org/x/sync/singleflight"
)

// Store slots of the template indexes.
const (
	Pool                = "huh_twig_support"
	KeyWithExtension    = "templates_with_extension"
	KeyWithoutExtension = "templates_without_extension"
)

// KeyFor returns the store key of an index variant.
func KeyFor(variant types.Variant) string {
	if variant == types.VariantWithExtension {
		return KeyWithExtension
	}
	return KeyWithoutExtension
}

// Builder builds both index variants from the filesystem.
type Builder interface {
	BuildIndexes(ctx context.Context) (map[types.Variant]*types.Index, error)
}

// Options configures an IndexCache.
type Options struct {
	// Bypass disables the store entirely; every query rebuilds.
	Bypass bool
	// Lifetime bounds how long a stored index is trusted. Zero means forever.
	Lifetime time.Duration
	// Compress enables zstd compression of stored values.
	Compress bool
}

// GetOption modifies a single Get call.
type GetOption func(*getOptions)

type getOptions struct {
	disableCache bool
}

// WithoutCache forces a rebuild that neither reads nor writes the store.
func WithoutCache() GetOption {
	return func(o *getOptions) {
		o.disableCache = true
	}
}

// IndexCache returns template indexes from the store, rebuilding and storing
// them on a miss. Structurally invalid values are treated as misses.
type IndexCache struct {
	store   Store
	builder Builder
	opts    Options
	logger  logging.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewIndexCache creates a cache over the given store and builder.
func NewIndexCache(store Store, builder Builder, logger logging.Logger, opts Options) *IndexCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &IndexCache{
		store:   store,
		builder: builder,
		opts:    opts,
		logger:  logger.WithComponent("cache"),
		now:     time.Now,
	}
}

// Get returns the index of one variant.
func (c *IndexCache) Get(ctx context.Context, variant types.Variant, opts ...GetOption) (*types.Index, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	if c.opts.Bypass || o.disableCache || c.store == nil {
		indexes, err := c.builder.BuildIndexes(ctx)
		if err != nil {
			return nil, err
		}
		return indexes[variant], nil
	}

	key := KeyFor(variant)
	if idx, ok := c.load(ctx, key); ok {
		return idx, nil
	}

	v, err, _ := c.group.Do("rebuild", func() (interface{}, error) {
		return c.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[types.Variant]*types.Index)[variant], nil
}

// Invalidate removes both stored variants.
func (c *IndexCache) Invalidate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	var errs []error
	for _, variant := range types.Variants() {
		if err := c.store.Delete(ctx, Pool, KeyFor(variant)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return twigerrors.NewCacheStoreError("invalidating template indexes", err)
	}

	c.logger.Info(ctx, "Template index cache cleared")
	return nil
}

// Warm rebuilds and stores both variants regardless of the stored state.
func (c *IndexCache) Warm(ctx context.Context) (map[types.Variant]*types.Index, error) {
	indexes, err := c.builder.BuildIndexes(ctx)
	if err != nil {
		return nil, err
	}
	if c.store == nil || c.opts.Bypass {
		return indexes, nil
	}
	if err := c.save(ctx, indexes); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "Template index cache warmed",
		"templates", indexes[types.VariantWithoutExtension].Len(),
	)
	return indexes, nil
}

func (c *IndexCache) load(ctx context.Context, key string) (*types.Index, bool) {
	data, ok, err := c.store.Get(ctx, Pool, key)
	if err != nil {
		c.logger.Warn(ctx, err, "Reading template index failed", "key", key)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	idx, err := openIndex(data, c.now())
	if err != nil {
		c.logger.Debug(ctx, "Discarding stored template index", "key", key, "reason", err.Error())
		return nil, false
	}
	return idx, true
}

func (c *IndexCache) rebuild(ctx context.Context) (map[types.Variant]*types.Index, error) {
	perf := logging.StartOperation(c.logger, "rebuild_index")
	indexes, err := c.builder.BuildIndexes(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	perf.End(ctx, "templates", indexes[types.VariantWithoutExtension].Len())

	if err := c.save(ctx, indexes); err != nil {
		// The built index is still correct; only persistence failed.
		c.logger.Warn(ctx, err, "Storing template index failed")
	}
	return indexes, nil
}

func (c *IndexCache) save(ctx context.Context, indexes map[types.Variant]*types.Index) error {
	var expiresAt time.Time
	if c.opts.Lifetime > 0 {
		expiresAt = c.now().Add(c.opts.Lifetime)
	}

	for _, variant := range types.Variants() {
		idx := indexes[variant]
		if idx == nil {
			continue
		}
		value, err := sealIndex(idx, c.opts.Compress, expiresAt)
		if err != nil {
			return twigerrors.NewCacheStoreError("encoding template index", err)
		}
		if err := c.store.Set(ctx, Pool, KeyFor(variant), value); err != nil {
			return twigerrors.NewCacheStoreError("storing template index", err)
		}
	}
	return nil
}
