package filecache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AterDev/Perigon.minidb/internal/change"
)

type widget struct {
	Id   int32
	Name string
}

func TestGetSetBufferRoundTripsByType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.mdb")
	c, err := Acquire(path, newTestCache(t, path))
	require.NoError(t, err)
	defer func() { _ = Release(path) }()

	_, ok := GetBuffer[widget](c, "Widgets")
	assert.False(t, ok)

	buf := change.NewBuffer[widget](nil, 0)
	SetBuffer(c, "Widgets", buf)

	got, ok := GetBuffer[widget](c, "Widgets")
	require.True(t, ok)
	assert.Same(t, buf, got)
}

func TestHasTableReflectsRegisteredBuffers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.mdb")
	c, err := Acquire(path, newTestCache(t, path))
	require.NoError(t, err)
	defer func() { _ = Release(path) }()

	assert.False(t, c.HasTable("Widgets"))
	SetBuffer(c, "Widgets", change.NewBuffer[widget](nil, 0))
	assert.True(t, c.HasTable("Widgets"))
}
