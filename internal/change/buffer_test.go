package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	Id   int32
	Name string
}

func TestBufferAppendRemoveSnapshot(t *testing.T) {
	a := &item{Id: 1, Name: "a"}
	b := &item{Id: 2, Name: "b"}
	buf := NewBuffer([]*item{a}, 1)

	buf.Append(b)
	assert.Equal(t, 2, buf.Count())

	snap := buf.Snapshot()
	require2Len(t, snap, 2)

	assert.True(t, buf.Remove(a))
	assert.False(t, buf.Remove(a))
	assert.Equal(t, 1, buf.Count())

	// the earlier snapshot is unaffected by the later Remove.
	require2Len(t, snap, 2)
}

func require2Len(t *testing.T, s []*item, n int) {
	t.Helper()
	assert.Len(t, s, n)
}

func TestBufferNextIdIsMonotonicAndContainsMatchesLiveIds(t *testing.T) {
	buf := NewBuffer[item](nil, 0)

	id1 := buf.NextId()
	id2 := buf.NextId()
	assert.EqualValues(t, 1, id1)
	assert.EqualValues(t, 2, id2)

	rec := &item{Id: id1, Name: "x"}
	buf.Append(rec)

	idOf := func(r *item) int32 { return r.Id }
	assert.True(t, buf.Contains(id1, idOf))
	assert.False(t, buf.Contains(99, idOf))
}

func TestBufferBumpMaxIdOnlyRaises(t *testing.T) {
	buf := NewBuffer[item](nil, 5)
	buf.BumpMaxId(3)
	assert.EqualValues(t, 5, buf.MaxId())
	buf.BumpMaxId(9)
	assert.EqualValues(t, 9, buf.MaxId())
}
