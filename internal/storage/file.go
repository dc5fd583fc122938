// Package storage owns the on-disk binary image: the file header, the
// table-metadata records, and the fixed-width record slots. It knows
// nothing about entity types or reflection; callers hand it and receive
// back raw record bytes and let internal/codec do the encoding.
package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// SizeBudget is the soft ceiling on this engine's target dataset size.
// Exceeding it is not an error, only a goal this engine aims to stay
// under, but it is logged once per table, by the commit that takes the
// table's data region over it.
const SizeBudget = 50 * 1024 * 1024

// TableInfo is the live, in-memory mirror of one table's 128-byte
// metadata record.
type TableInfo struct {
	Name        string
	RecordWidth int32
	RecordCount int32
	DataStart   int64
}

// Mutation pairs a record's Id with its fully encoded, record-width byte
// slice (tombstone + Id + fields), as produced by internal/codec.Encode.
type Mutation struct {
	Id   int32
	Data []byte
}

// Manager owns the file handle and the header/table-metadata layout for
// one path. It is the sole component that knows how table names map to
// byte offsets in the file.
type Manager struct {
	path string

	mu     sync.RWMutex
	order  []string
	tables map[string]*TableInfo
}

// Open creates the file at path if it does not exist (writing the header
// and zero-count table-metadata records for the tables named in order,
// with widths from recordWidths), or opens and validates an existing one.
// order is only consulted on creation; on reopen the table set and layout
// are read back from the file itself.
func Open(path string, order []string, recordWidths map[string]int32) (*Manager, error) {
	m := &Manager{path: path, tables: make(map[string]*TableInfo)}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.create(order, recordWidths); err != nil {
			return nil, err
		}
		log.WithField("path", path).Debug("minidb: created new file image")
		return m, nil
	} else if err != nil {
		return nil, fmt.Errorf("minidb: %s: %w", path, err)
	}

	if err := m.load(); err != nil {
		return nil, err
	}
	log.WithField("path", path).WithField("tables", len(m.tables)).Debug("minidb: opened existing file image")
	return m, nil
}

func (m *Manager) create(order []string, recordWidths map[string]int32) error {
	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("minidb: create %s: %w", m.path, err)
	}
	defer f.Close()

	n := len(order)
	dataStart := int64(HeaderSize + TableMetaSize*n)

	if _, err := f.Write(encodeHeader(fileHeader{Version: currentVersion, TableCount: int16(n)})); err != nil {
		return fmt.Errorf("minidb: create %s: %w", m.path, err)
	}

	m.order = append([]string(nil), order...)
	for _, name := range order {
		width := recordWidths[name]
		rec := tableMetaRecord{Name: name, RecordCount: 0, RecordWidth: width, DataStart: dataStart}
		buf, err := encodeTableMeta(rec)
		if err != nil {
			return err
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("minidb: create %s: %w", m.path, err)
		}
		m.tables[name] = &TableInfo{Name: name, RecordWidth: width, RecordCount: 0, DataStart: dataStart}
	}
	return f.Sync()
}

func (m *Manager) load() error {
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("minidb: open %s: %w", m.path, err)
	}
	defer f.Close()

	hdrBuf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		return fmt.Errorf("minidb: read header %s: %w", m.path, err)
	}
	hdr, err := decodeHeader(hdrBuf, m.path)
	if err != nil {
		return err
	}

	m.order = make([]string, 0, hdr.TableCount)
	for i := int16(0); i < hdr.TableCount; i++ {
		off := int64(HeaderSize) + int64(i)*int64(TableMetaSize)
		buf := make([]byte, TableMetaSize)
		if _, err := f.ReadAt(buf, off); err != nil {
			return fmt.Errorf("minidb: read table metadata %s: %w", m.path, err)
		}
		rec := decodeTableMeta(buf)
		m.order = append(m.order, rec.Name)
		m.tables[rec.Name] = &TableInfo{
			Name:        rec.Name,
			RecordWidth: rec.RecordWidth,
			RecordCount: rec.RecordCount,
			DataStart:   rec.DataStart,
		}
	}
	return nil
}

// TableMetadata returns a copy of the current in-memory metadata for name.
func (m *Manager) TableMetadata(name string) (TableInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return TableInfo{}, false
	}
	return *t, true
}

// LoadTable opens the file for shared read and returns the raw bytes of
// every live (non-tombstoned) slot in table name, in slot order. Decoding
// those bytes into entities is the caller's job (internal/codec).
func (m *Manager) LoadTable(name string) ([][]byte, error) {
	m.mu.RLock()
	info, ok := m.tables[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("minidb: table %q not found in %s", name, m.path)
	}

	f, err := os.Open(m.path)
	if err != nil {
		return nil, fmt.Errorf("minidb: open %s: %w", m.path, err)
	}
	defer f.Close()

	unlock, err := flockShared(f)
	if err != nil {
		return nil, fmt.Errorf("minidb: lock %s: %w", m.path, err)
	}
	defer unlock()

	width := int(info.RecordWidth)
	total := int(info.RecordCount) * width
	if total == 0 {
		return nil, nil
	}

	region := make([]byte, total)
	if _, err := f.ReadAt(region, info.DataStart); err != nil {
		return nil, fmt.Errorf("minidb: read table %q from %s: %w", name, m.path, err)
	}

	live := make([][]byte, 0, info.RecordCount)
	for off := 0; off < total; off += width {
		slot := region[off : off+width]
		if slot[0] == 0x00 {
			rec := make([]byte, width)
			copy(rec, slot)
			live = append(live, rec)
		}
	}
	return live, nil
}

// ApplyChanges mutates table name's on-disk region: it appends added
// records, rewrites modified records in place, tombstones deleted ids,
// then rewrites the table's metadata slot with the new record count. It
// flushes the data writes before the header rewrite, so a crash between
// the two leaves the header conservatively small rather than claiming
// records that were never durably written.
//
// modified and deleted reference existing slots by Id; an Id outside
// [1, RecordCount] is rejected with a NotFoundError rather than silently
// growing the file.
func (m *Manager) ApplyChanges(name string, added, modified []Mutation, deletedIDs []int32) error {
	m.mu.Lock()
	info, ok := m.tables[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("minidb: table %q not found in %s", name, m.path)
	}
	width := int64(info.RecordWidth)
	recordCount := info.RecordCount
	startCount := recordCount
	for _, mut := range modified {
		if mut.Id < 1 || int32(mut.Id) > recordCount {
			m.mu.Unlock()
			return NotFoundError{Table: name, Id: mut.Id}
		}
	}
	for _, id := range deletedIDs {
		if id < 1 || id > recordCount {
			m.mu.Unlock()
			return NotFoundError{Table: name, Id: id}
		}
	}
	m.mu.Unlock()

	f, err := os.OpenFile(m.path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("minidb: open %s: %w", m.path, err)
	}
	defer f.Close()

	for _, mut := range added {
		offset := info.DataStart + int64(recordCount)*width
		if _, err := f.WriteAt(mut.Data, offset); err != nil {
			return fmt.Errorf("minidb: append to table %q in %s: %w", name, m.path, err)
		}
		recordCount++
	}
	for _, mut := range modified {
		offset := info.DataStart + int64(mut.Id-1)*width
		if _, err := f.WriteAt(mut.Data, offset); err != nil {
			return fmt.Errorf("minidb: update table %q in %s: %w", name, m.path, err)
		}
	}
	for _, id := range deletedIDs {
		offset := info.DataStart + int64(id-1)*width
		if _, err := f.WriteAt([]byte{Tombstone}, offset); err != nil {
			return fmt.Errorf("minidb: delete from table %q in %s: %w", name, m.path, err)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("minidb: flush %s: %w", m.path, err)
	}

	m.mu.Lock()
	info.RecordCount = recordCount
	metaBuf, err := encodeTableMeta(tableMetaRecord{
		Name:        info.Name,
		RecordCount: info.RecordCount,
		RecordWidth: info.RecordWidth,
		DataStart:   info.DataStart,
	})
	m.mu.Unlock()
	if err != nil {
		return err
	}

	slot := m.tableMetaOffset(name)
	if _, err := f.WriteAt(metaBuf, slot); err != nil {
		return fmt.Errorf("minidb: rewrite metadata for table %q in %s: %w", name, m.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("minidb: flush metadata %s: %w", m.path, err)
	}

	if sz := int64(recordCount) * width; sz > SizeBudget && int64(startCount)*width <= SizeBudget {
		log.WithFields(log.Fields{
			"table": name,
			"size":  humanize.Bytes(uint64(sz)),
		}).Warn("minidb: table has grown past the engine's recommended size budget")
	}
	return nil
}

func (m *Manager) tableMetaOffset(name string) int64 {
	for i, n := range m.order {
		if n == name {
			return int64(HeaderSize) + int64(i)*int64(TableMetaSize)
		}
	}
	return -1
}

// Close releases the Manager's resources. Manager itself holds no open
// file handle between calls (every operation opens, does its I/O, and
// closes), so Close only exists to satisfy callers that want a symmetric
// lifecycle; it never returns an error.
func (m *Manager) Close() error { return nil }

// Tombstone is the single byte written to soft-delete a slot.
const Tombstone byte = 0x01

// NotFoundError is returned by ApplyChanges when a modification or
// deletion targets an Id that was never allocated in the table.
type NotFoundError struct {
	Table string
	Id    int32
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("minidb: table %q: no record with id %d", e.Table, e.Id)
}
