package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackDeletedOnPendingAddCancelsBoth(t *testing.T) {
	tr := NewTracker()
	e := &item{Id: 1}

	tr.TrackAdded(e)
	require.Len(t, tr.Added(), 1)

	tr.TrackDeleted(e)
	assert.Empty(t, tr.Added())
	assert.Empty(t, tr.Deleted())
}

func TestTrackModifiedOnPendingAddIsNoOp(t *testing.T) {
	tr := NewTracker()
	e := &item{Id: 1}

	tr.TrackAdded(e)
	tr.TrackModified(e)

	assert.Len(t, tr.Added(), 1)
	assert.Empty(t, tr.Modified())
}

func TestTrackDeletedAfterModifiedDropsModification(t *testing.T) {
	tr := NewTracker()
	e := &item{Id: 7}

	tr.TrackModified(e)
	require.Len(t, tr.Modified(), 1)

	tr.TrackDeleted(e)
	assert.Empty(t, tr.Modified())
	assert.Len(t, tr.Deleted(), 1)
}

func TestTrackAddedIsIdempotentByIdentity(t *testing.T) {
	tr := NewTracker()
	e := &item{Id: 1}

	tr.TrackAdded(e)
	tr.TrackAdded(e)

	assert.Len(t, tr.Added(), 1)
}

func TestClearEmptiesAllThreeSets(t *testing.T) {
	tr := NewTracker()
	tr.TrackAdded(&item{Id: 1})
	tr.TrackModified(&item{Id: 2})
	tr.TrackDeleted(&item{Id: 3})

	assert.False(t, tr.IsEmpty())
	tr.Clear()
	assert.True(t, tr.IsEmpty())
	assert.Empty(t, tr.Added())
	assert.Empty(t, tr.Modified())
	assert.Empty(t, tr.Deleted())
}

func TestIdentityNotValueEqualityDistinguishesEntities(t *testing.T) {
	tr := NewTracker()
	a := &item{Id: 1, Name: "dup"}
	b := &item{Id: 1, Name: "dup"}

	tr.TrackAdded(a)
	tr.TrackAdded(b)

	assert.Len(t, tr.Added(), 2)
}
