package filecache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AterDev/Perigon.minidb/internal/storage"
	"github.com/AterDev/Perigon.minidb/internal/writequeue"
)

func newTestCache(t *testing.T, path string) func() (*Cache, error) {
	t.Helper()
	return func() (*Cache, error) {
		mgr, err := storage.Open(path, []string{"Widgets"}, map[string]int32{"Widgets": 10})
		if err != nil {
			return nil, err
		}
		return New(mgr, writequeue.New()), nil
	}
}

func TestAcquireReturnsSameCacheForSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mdb")

	c1, err := Acquire(path, newTestCache(t, path))
	require.NoError(t, err)
	defer func() { _ = Release(path) }()

	c2, err := Acquire(path, newTestCache(t, path))
	require.NoError(t, err)
	defer func() { _ = Release(path) }()

	assert.Same(t, c1, c2)
}

func TestReleaseTearsDownOnLastReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.mdb")

	_, err := Acquire(path, newTestCache(t, path))
	require.NoError(t, err)
	_, err = Acquire(path, newTestCache(t, path))
	require.NoError(t, err)

	require.NoError(t, Release(path))

	registryMu.Lock()
	_, stillThere := registry[mustNormalize(t, path)]
	registryMu.Unlock()
	assert.True(t, stillThere, "cache should survive while one reference remains")

	require.NoError(t, Release(path))

	registryMu.Lock()
	_, stillThere = registry[mustNormalize(t, path)]
	registryMu.Unlock()
	assert.False(t, stillThere, "cache should be torn down once refcount reaches zero")
}

func mustNormalize(t *testing.T, path string) string {
	t.Helper()
	n, err := NormalizePath(path)
	require.NoError(t, err)
	return n
}
