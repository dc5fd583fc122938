package minidb

import (
	"reflect"

	"github.com/AterDev/Perigon.minidb/internal/change"
	"github.com/AterDev/Perigon.minidb/internal/codec"
	"github.com/AterDev/Perigon.minidb/internal/filecache"
	"github.com/AterDev/Perigon.minidb/internal/schema"
	"github.com/AterDev/Perigon.minidb/internal/storage"
)

// tableBinder is implemented by every *Table[T]. Open discovers tables by
// reflecting over the exported fields of the user's Context struct and
// finding the ones whose type implements tableBinder, rather than a
// concrete type check, since Go generics mean no two tables share a
// single concrete field type.
type tableBinder interface {
	entityType() reflect.Type
	prepare(name string) (recordWidth int32, err error)
	finalize(cache *filecache.Cache, eng *engine) error
	tableName() string
	hasPendingChanges(tracker *change.Tracker) bool
	commitMutations(tracker *change.Tracker) (added, modified []storage.Mutation, deleted []int32, err error)
}

// Table is the per-table public surface: add, update, remove, snapshot
// iteration, and count, bound to one table's shared in-memory buffer and
// one Context's change tracker.
//
// Entities are always pointers (*T); the engine relies on Go pointer
// identity to tell two otherwise-equal records apart, so that the same
// in-memory object tracked as added or removed is recognized as such
// regardless of its field values.
type Table[T any] struct {
	name string
	eng  *engine
	buf  *change.Buffer[T]
	md   *schema.Metadata
}

func (t *Table[T]) entityType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (t *Table[T]) tableName() string { return t.name }

func (t *Table[T]) prepare(name string) (int32, error) {
	md, err := schema.For(t.entityType())
	if err != nil {
		return 0, newConfigurationError("%v", err)
	}
	t.name = name
	t.md = md
	return int32(md.RecordWidth), nil
}

func (t *Table[T]) finalize(cache *filecache.Cache, eng *engine) error {
	t.eng = eng

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	if buf, ok := filecache.GetBuffer[T](cache, t.name); ok {
		t.buf = buf
		return nil
	}

	raw, err := cache.Storage.LoadTable(t.name)
	if err != nil {
		return IoError{Op: "load table", Path: cache.Path(), Err: err}
	}

	records := make([]*T, 0, len(raw))
	maxId := int32(0)
	for _, slot := range raw {
		e := new(T)
		ev := reflect.ValueOf(e).Elem()
		id, err := codec.Decode(t.md, slot, ev)
		if err != nil {
			return IoError{Op: "decode record", Path: cache.Path(), Err: err}
		}
		ev.Field(t.md.IdFieldIndex).SetInt(int64(id))
		records = append(records, e)
		if id > maxId {
			maxId = id
		}
	}

	// Tombstoned slots still count toward the Id space: the table's
	// record count is the highest slot index ever written, plus one, so
	// max_id must be at least that count, not just the highest live Id.
	if info, ok := cache.Storage.TableMetadata(t.name); ok && info.RecordCount > maxId {
		maxId = info.RecordCount
	}

	t.buf = change.NewBuffer(records, maxId)
	filecache.SetBuffer(cache, t.name, t.buf)
	return nil
}

func (t *Table[T]) idOf(e *T) int32 {
	return int32(reflect.ValueOf(e).Elem().Field(t.md.IdFieldIndex).Int())
}

// Add assigns e an Id if it doesn't have one (Id == 0), rejects an
// explicit Id that collides with a live record, appends e to the shared
// table buffer, and records it as pending in this Context's change
// tracker. Add and Remove take the cache's write lock, since both mutate
// the shared buffer; Update defers entirely to the tracker.
func (t *Table[T]) Add(e *T) error {
	if t.eng == nil || t.eng.closed.Load() {
		return DisposedError{}
	}

	t.eng.cache.Mu.Lock()
	defer t.eng.cache.Mu.Unlock()

	id := t.idOf(e)
	if id == 0 {
		id = t.buf.NextId()
		reflect.ValueOf(e).Elem().Field(t.md.IdFieldIndex).SetInt(int64(id))
	} else {
		if t.buf.Contains(id, t.idOf) {
			return DuplicateKeyError{Table: t.name, Id: id}
		}
		t.buf.BumpMaxId(id)
	}

	t.buf.Append(e)
	t.eng.tracker.TrackAdded(e)
	return nil
}

// Update marks e as modified. e is assumed to already be a record
// present in the table buffer (obtained via Iterate); mutating its Id is
// unsupported.
func (t *Table[T]) Update(e *T) error {
	if t.eng == nil || t.eng.closed.Load() {
		return DisposedError{}
	}
	t.eng.tracker.TrackModified(e)
	return nil
}

// Remove deletes e from the shared table buffer and tracks it as a
// pending deletion.
func (t *Table[T]) Remove(e *T) error {
	if t.eng == nil || t.eng.closed.Load() {
		return DisposedError{}
	}

	t.eng.cache.Mu.Lock()
	defer t.eng.cache.Mu.Unlock()

	t.buf.Remove(e)
	t.eng.tracker.TrackDeleted(e)
	return nil
}

// Iterate returns a snapshot of the table's live records in slot order.
// Mutating the returned slice does not affect the table. The records
// themselves are shared: mutating one through a pointer obtained from it
// changes the in-memory record at once, and is persisted by the next
// Commit once the record is passed to Update.
func (t *Table[T]) Iterate() []*T {
	if t.eng == nil || t.eng.closed.Load() {
		return nil
	}
	return t.buf.Snapshot()
}

// Count returns the number of live records currently buffered.
func (t *Table[T]) Count() int {
	if t.eng == nil || t.eng.closed.Load() {
		return 0
	}
	return t.buf.Count()
}

func (t *Table[T]) hasPendingChanges(tracker *change.Tracker) bool {
	for _, a := range tracker.Added() {
		if _, ok := a.(*T); ok {
			return true
		}
	}
	for _, m := range tracker.Modified() {
		if _, ok := m.(*T); ok {
			return true
		}
	}
	for _, d := range tracker.Deleted() {
		if _, ok := d.(*T); ok {
			return true
		}
	}
	return false
}

func (t *Table[T]) commitMutations(tracker *change.Tracker) (added, modified []storage.Mutation, deleted []int32, err error) {
	for _, a := range tracker.Added() {
		e, ok := a.(*T)
		if !ok {
			continue
		}
		m, err := t.encode(e)
		if err != nil {
			return nil, nil, nil, err
		}
		added = append(added, m)
	}
	for _, mo := range tracker.Modified() {
		e, ok := mo.(*T)
		if !ok {
			continue
		}
		m, err := t.encode(e)
		if err != nil {
			return nil, nil, nil, err
		}
		modified = append(modified, m)
	}
	for _, d := range tracker.Deleted() {
		e, ok := d.(*T)
		if !ok {
			continue
		}
		deleted = append(deleted, t.idOf(e))
	}
	return added, modified, deleted, nil
}

func (t *Table[T]) encode(e *T) (storage.Mutation, error) {
	buf := make([]byte, t.md.RecordWidth)
	id := t.idOf(e)
	if err := codec.Encode(t.md, id, reflect.ValueOf(e).Elem(), buf); err != nil {
		return storage.Mutation{}, err
	}
	return storage.Mutation{Id: id, Data: buf}, nil
}
