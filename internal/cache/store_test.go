package cache

import (
	"context"
	"testing"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqliteFile, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)

	sqliteMemory, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)

	stores := map[string]Store{
		"memory":        NewMemoryStore(),
		"file":          file,
		"sqlite":        sqliteFile,
		"sqlite memory": sqliteMemory,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, Pool, KeyWithExtension)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, Pool, KeyWithExtension, []byte("first")))
			require.NoError(t, store.Set(ctx, Pool, KeyWithExtension, []byte("second")))
			require.NoError(t, store.Set(ctx, "other_pool", KeyWithExtension, []byte("other")))

			value, ok, err := store.Get(ctx, Pool, KeyWithExtension)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("second"), value)

			value, _, err = store.Get(ctx, "other_pool", KeyWithExtension)
			require.NoError(t, err)
			assert.Equal(t, []byte("other"), value)

			require.NoError(t, store.Delete(ctx, Pool, KeyWithExtension))
			require.NoError(t, store.Delete(ctx, Pool, KeyWithExtension))

			_, ok, err = store.Get(ctx, Pool, KeyWithExtension)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStoreIsolatesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, Pool, "k", value))
	value[0] = 'x'

	got, _, _ := store.Get(ctx, Pool, "k")
	assert.Equal(t, []byte("abc"), got)
	got[0] = 'y'

	again, _, _ := store.Get(ctx, Pool, "k")
	assert.Equal(t, []byte("abc"), again)

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.Entries)
}

func TestFileStoreRejectsInvalidKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.Error(t, store.Set(context.Background(), Pool, key, []byte("x")), key)
	}

	_, err = NewFileStore("")
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectDir = t.TempDir()

	tests := []struct {
		backend string
		want    any
	}{
		{config.CacheBackendFile, &FileStore{}},
		{config.CacheBackendSQLite, &SQLiteStore{}},
		{config.CacheBackendMemory, &MemoryStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg.Cache.Backend = tt.backend
			store, err := NewStore(cfg)
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.want, store)
		})
	}

	cfg.Cache.Backend = "redis"
	_, err := NewStore(cfg)
	assert.Error(t, err)
}
