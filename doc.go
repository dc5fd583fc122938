// Package minidb is a single-file embedded storage engine for small,
// structured datasets. A caller declares a context struct whose exported
// fields are *Table[T] handles, one per table, and calls Open to bind
// that struct to a backing file:
//
//	type Catalog struct {
//		Products *minidb.Table[Product]
//	}
//
//	type Product struct {
//		Id    int32
//		Name  string `minidb:"max=64"`
//		Price minidb.Decimal
//	}
//
//	catalog, session, err := minidb.Open[Catalog]("catalog.mdb")
//	if err != nil {
//		// ...
//	}
//	defer session.Close()
//
//	catalog.Products.Add(&Product{Name: "widget", Price: minidb.NewDecimal(999, 2)})
//	if err := session.Commit(context.Background()); err != nil {
//		// ...
//	}
//
// Every table's record layout is derived from its entity type by
// reflection. An entity needs an int32 field named Id; its other exported
// fields may be int32, bool, Decimal, time.Time, a named type over int32
// (an enum), or a string with a `minidb:"max=N"` byte limit, each
// optionally as a pointer for a nullable field. Multiple Sessions
// opened on the same path share one in-memory copy of every table's
// records, kept consistent by a process-wide cache (see
// internal/filecache) and a single-writer commit queue (see
// internal/writequeue). Closing a Session releases that Session's
// reference to the shared cache; the cache itself is torn down only once
// every Session on that path has closed.
package minidb
