package filecache

import (
	"context"
	"sync"
	"time"

	"github.com/AterDev/Perigon.minidb/internal/change"
	"github.com/AterDev/Perigon.minidb/internal/storage"
	"github.com/AterDev/Perigon.minidb/internal/writequeue"
)

// Cache is the process-wide, in-memory authoritative state for one file:
// the loaded table buffers, the reader/writer mutex guarding them, and
// the one write queue serializing mutations to the file. Every Context
// opened on the same path shares the same Cache.
//
// Mu also serializes commits from different Contexts: a commit holds
// Mu.Lock() for its entire duration, including the time spent waiting on
// the write queue, so the write-lock holder is always exactly one
// commit. A single blocking mutex is enough for this in Go; there is no
// async/await suspension point that would force holding a lock across a
// goroutine yield.
type Cache struct {
	path string

	Mu      sync.RWMutex
	Queue   *writequeue.Queue
	Storage *storage.Manager

	tablesMu sync.Mutex
	tables   map[string]any

	refCount int
}

// New wraps an already-open storage.Manager and a fresh write queue into
// a Cache. Called exactly once per path, from the create callback passed
// to Acquire.
func New(storageMgr *storage.Manager, queue *writequeue.Queue) *Cache {
	return &Cache{
		Queue:   queue,
		Storage: storageMgr,
		tables:  make(map[string]any),
	}
}

// Path returns the normalized path this Cache was registered under.
func (c *Cache) Path() string { return c.path }

func (c *Cache) dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = c.Queue.Flush(ctx)
	if err := c.Queue.Shutdown(); err != nil {
		return err
	}
	return c.Storage.Close()
}

// HasTable reports whether a buffer has already been registered for
// name, so Context can decide whether it needs to call storage.LoadTable.
func (c *Cache) HasTable(name string) bool {
	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()
	_, ok := c.tables[name]
	return ok
}

// GetBuffer type-asserts the buffer registered for table name back to
// Buffer[T]. It is a package-level function, not a method, because Go
// methods cannot introduce their own type parameters.
func GetBuffer[T any](c *Cache, name string) (*change.Buffer[T], bool) {
	c.tablesMu.Lock()
	v, ok := c.tables[name]
	c.tablesMu.Unlock()
	if !ok {
		return nil, false
	}
	b, ok := v.(*change.Buffer[T])
	return b, ok
}

// SetBuffer registers buf as the shared buffer for table name. Called
// once, by whichever Context is first to load that table.
func SetBuffer[T any](c *Cache, name string, buf *change.Buffer[T]) {
	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()
	c.tables[name] = buf
}
