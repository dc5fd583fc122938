package storage

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed size of the file header.
	HeaderSize = 256
	// TableMetaSize is the fixed size of one table-metadata record.
	TableMetaSize = 128
	// MaxTableNameBytes is the longest UTF-8 table name the 64-byte name
	// field in a table-metadata record can hold.
	MaxTableNameBytes = 64

	currentVersion int16 = 1
)

var magic = [4]byte{'M', 'D', 'B', '1'}

type fileHeader struct {
	Version    int16
	TableCount int16
}

func encodeHeader(h fileHeader) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], uint16(h.Version))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.TableCount))
	// buf[8:256] stays zero: reserved.
	return buf
}

func decodeHeader(buf []byte, path string) (fileHeader, error) {
	if len(buf) < HeaderSize {
		return fileHeader{}, fmt.Errorf("minidb: %s: truncated header", path)
	}
	var got [4]byte
	copy(got[:], buf[0:4])
	if got != magic {
		return fileHeader{}, invalidFormatError{path: path}
	}
	h := fileHeader{
		Version:    int16(binary.LittleEndian.Uint16(buf[4:6])),
		TableCount: int16(binary.LittleEndian.Uint16(buf[6:8])),
	}
	if h.Version != currentVersion {
		return fileHeader{}, unsupportedVersionError{path: path, version: h.Version}
	}
	return h, nil
}

// tableMetaRecord is the decoded form of one 128-byte table-metadata slot.
type tableMetaRecord struct {
	Name        string
	RecordCount int32
	RecordWidth int32
	DataStart   int64
}

func encodeTableMeta(m tableMetaRecord) ([]byte, error) {
	nameBytes := []byte(m.Name)
	if len(nameBytes) > MaxTableNameBytes {
		return nil, fmt.Errorf("minidb: table name %q exceeds %d UTF-8 bytes", m.Name, MaxTableNameBytes)
	}
	buf := make([]byte, TableMetaSize)
	copy(buf[0:MaxTableNameBytes], nameBytes)
	binary.LittleEndian.PutUint32(buf[64:68], uint32(m.RecordCount))
	binary.LittleEndian.PutUint32(buf[68:72], uint32(m.RecordWidth))
	binary.LittleEndian.PutUint64(buf[72:80], uint64(m.DataStart))
	// buf[80:128] stays zero: reserved.
	return buf, nil
}

func decodeTableMeta(buf []byte) tableMetaRecord {
	nameEnd := 0
	for nameEnd < MaxTableNameBytes && buf[nameEnd] != 0 {
		nameEnd++
	}
	return tableMetaRecord{
		Name:        string(buf[0:nameEnd]),
		RecordCount: int32(binary.LittleEndian.Uint32(buf[64:68])),
		RecordWidth: int32(binary.LittleEndian.Uint32(buf[68:72])),
		DataStart:   int64(binary.LittleEndian.Uint64(buf[72:80])),
	}
}

type invalidFormatError struct{ path string }

func (e invalidFormatError) Error() string { return fmt.Sprintf("minidb: %s: invalid format", e.path) }

type unsupportedVersionError struct {
	path    string
	version int16
}

func (e unsupportedVersionError) Error() string {
	return fmt.Sprintf("minidb: %s: unsupported version %d", e.path, e.version)
}

// PathValue returns the file path the error was raised for.
func (e invalidFormatError) PathValue() string { return e.path }

// IsInvalidFormat reports whether err is an invalid-magic-number error.
func IsInvalidFormat(err error) bool {
	_, ok := err.(invalidFormatError)
	return ok
}

// IsUnsupportedVersion reports whether err is an unsupported-version error,
// and if so, the offending version.
func IsUnsupportedVersion(err error) (int16, bool) {
	uv, ok := err.(unsupportedVersionError)
	if !ok {
		return 0, false
	}
	return uv.version, true
}
