package schema

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// processCache holds one Metadata value per entity type for the lifetime
// of the process: computed once per process, never recomputed. Ristretto
// is built for exactly this shape of read-mostly, write-once cache; it is
// configured large enough that a schema entry is never evicted under
// normal use, with a plain map as the fallback path if construction of
// the cache itself ever fails.
var (
	processCache   *ristretto.Cache[string, *Metadata]
	processCacheMu sync.Mutex
	fallback       = map[string]*Metadata{}
)

func init() {
	c, err := ristretto.NewCache(&ristretto.Config[string, *Metadata]{
		NumCounters: 1e4,  // ~1000 distinct entity types tracked comfortably
		MaxCost:     1e6,  // cost is "1 per field, plus 1", generous for any real schema
		BufferItems: 64,
	})
	if err == nil {
		processCache = c
	}
}

func cacheKey(t reflect.Type) string {
	return fmt.Sprintf("%p", t)
}

// For returns the cached Metadata for t, building and caching it on the
// first call for that type.
func For(t reflect.Type) (*Metadata, error) {
	key := cacheKey(t)

	processCacheMu.Lock()
	defer processCacheMu.Unlock()

	if processCache != nil {
		if md, ok := processCache.Get(key); ok {
			return md, nil
		}
	} else if md, ok := fallback[key]; ok {
		return md, nil
	}

	md, err := Build(t)
	if err != nil {
		return nil, err
	}

	if processCache != nil {
		processCache.Set(key, md, int64(len(md.Fields)+1))
		processCache.Wait()
	} else {
		fallback[key] = md
	}
	return md, nil
}
