package minidb

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"

	"github.com/AterDev/Perigon.minidb/internal/change"
	"github.com/AterDev/Perigon.minidb/internal/filecache"
	"github.com/AterDev/Perigon.minidb/internal/storage"
	"github.com/AterDev/Perigon.minidb/internal/writequeue"
	log "github.com/sirupsen/logrus"
)

// engine is the state a Session shares with every Table[T] it has bound:
// the process-wide file cache, this session's own change tracker, and the
// ordered list of tables discovered on the caller's context struct.
type engine struct {
	path    string
	cache   *filecache.Cache
	tracker *change.Tracker
	tables  []tableBinder
	closed  atomic.Bool
}

// Session is the handle returned by Open alongside the populated context
// struct. It owns the Commit/Close lifecycle; the context struct itself
// is just a typed bag of *Table[T] fields with no behavior of its own.
type Session struct {
	eng *engine
}

// Open allocates a new C, reflects over its exported fields to find every
// one whose type is *Table[T] for some T, and binds each to the shared,
// process-wide in-memory state for path — creating the backing file on
// first use, or validating and loading an existing one otherwise.
//
// A *Table[T] field may be left nil; Open allocates one. Declaring the
// same entity type twice, or a field whose entity type cannot be mapped
// to a fixed-length record, is reported as a ConfigurationError.
func Open[C any](path string) (*C, *Session, error) {
	if path == "" {
		return nil, nil, newConfigurationError("path must not be empty")
	}

	out := new(C)
	v := reflect.ValueOf(out).Elem()
	t := v.Type()
	if t.Kind() != reflect.Struct {
		return nil, nil, newConfigurationError("context type %s must be a struct", t.Kind())
	}

	var binders []tableBinder
	order := make([]string, 0, t.NumField())
	widths := make(map[string]int32, t.NumField())
	seen := make(map[string]bool, t.NumField())
	seenTypes := make(map[reflect.Type]string, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() != reflect.Ptr {
			continue
		}
		if fv.IsNil() {
			fv.Set(reflect.New(field.Type.Elem()))
		}
		binder, ok := fv.Interface().(tableBinder)
		if !ok {
			continue
		}

		name := field.Name
		if seen[name] {
			return nil, nil, newConfigurationError("table %q declared more than once", name)
		}
		seen[name] = true

		entity := binder.entityType()
		if other, ok := seenTypes[entity]; ok {
			return nil, nil, newConfigurationError("entity type %s is declared by both %q and %q", entity, other, name)
		}
		seenTypes[entity] = name

		width, err := binder.prepare(name)
		if err != nil {
			return nil, nil, err
		}

		order = append(order, name)
		widths[name] = width
		binders = append(binders, binder)
	}

	if len(binders) == 0 {
		return nil, nil, newConfigurationError("context type %s declares no *Table fields", t.Name())
	}

	cache, err := filecache.Acquire(path, func() (*filecache.Cache, error) {
		mgr, err := storage.Open(path, order, widths)
		if err != nil {
			return nil, toPublicError(path, err)
		}
		return filecache.New(mgr, writequeue.New()), nil
	})
	if err != nil {
		return nil, nil, err
	}

	eng := &engine{
		path:    path,
		cache:   cache,
		tracker: change.NewTracker(),
		tables:  binders,
	}

	for _, b := range binders {
		if err := b.finalize(cache, eng); err != nil {
			_ = filecache.Release(path)
			return nil, nil, err
		}
	}

	return out, &Session{eng: eng}, nil
}

// Commit encodes every pending added, modified, and deleted entity across
// every table this Session touched, submits them as one unit of work to
// the backing file's write queue, and — on success — clears this
// Session's pending changes. Concurrent Commits against the same file,
// whether from this Session's tables or another Session's, are
// serialized by the shared cache's write lock; Commit holds it for the
// whole call, including the time spent waiting on the write queue.
//
// A context cancelled before the write queue runs the work returns a
// CancelledError; an update or delete aimed at an Id that was never
// allocated returns a NotFoundError. Tables are applied one after another:
// the table holding the bad Id has nothing written, but tables applied
// before it in the same Commit keep their writes.
func (s *Session) Commit(ctx context.Context) error {
	eng := s.eng
	if eng.closed.Load() {
		return DisposedError{}
	}

	eng.cache.Mu.Lock()
	defer eng.cache.Mu.Unlock()

	if eng.tracker.IsEmpty() {
		return nil
	}

	type pendingTable struct {
		name            string
		added, modified []storage.Mutation
		deleted         []int32
	}

	var work []pendingTable
	for _, b := range eng.tables {
		if !b.hasPendingChanges(eng.tracker) {
			continue
		}
		added, modified, deleted, err := b.commitMutations(eng.tracker)
		if err != nil {
			return err
		}
		work = append(work, pendingTable{name: b.tableName(), added: added, modified: modified, deleted: deleted})
	}

	err := eng.cache.Queue.Run(ctx, func(context.Context) error {
		for _, w := range work {
			if err := eng.cache.Storage.ApplyChanges(w.name, w.added, w.modified, w.deleted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return CancelledError{Err: err}
		}
		return toPublicError(eng.cache.Path(), err)
	}

	eng.tracker.Clear()
	log.WithField("path", eng.path).WithField("tables", len(work)).Debug("minidb: commit applied")
	return nil
}

// Close releases this Session's reference to the shared file cache. The
// cache, its write queue, and the backing file are only torn down once
// every Session open on that path has closed; closing one Session never
// disturbs the in-memory state sibling Sessions are still using.
func (s *Session) Close() error {
	eng := s.eng
	if eng.closed.Swap(true) {
		return nil
	}
	return filecache.Release(eng.path)
}

// ReleaseSharedCache releases one reference to the shared in-memory cache
// for path, the same single decrement a Session.Close on that path would
// perform. The cache, its write queue, and the backing file are only torn
// down once every outstanding reference — every open Session plus every
// call to this function — has been released; ordinary callers should just
// Close every Session they opened instead of calling this directly.
func ReleaseSharedCache(path string) error {
	norm, err := filecache.NormalizePath(path)
	if err != nil {
		return err
	}
	return filecache.Release(norm)
}

func toPublicError(path string, err error) error {
	var nf storage.NotFoundError
	if errors.As(err, &nf) {
		return NotFoundError{Table: nf.Table, Id: nf.Id}
	}
	if storage.IsInvalidFormat(err) {
		return InvalidFormatError{Path: path}
	}
	if v, ok := storage.IsUnsupportedVersion(err); ok {
		return UnsupportedVersionError{Path: path, Version: v}
	}
	return IoError{Op: "storage", Path: path, Err: err}
}
