package minidb

import "fmt"

// ConfigurationError is returned by Open and schema construction when a
// declared entity cannot be mapped to a fixed-length record: a string
// field without a declared maximum length, an unsupported field type, a
// duplicate table name, or a missing file path.
type ConfigurationError struct {
	Message string
}

func (e ConfigurationError) Error() string { return "minidb: configuration: " + e.Message }

func newConfigurationError(format string, args ...any) ConfigurationError {
	return ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidFormatError is returned when a file's magic number does not match.
type InvalidFormatError struct {
	Path string
}

func (e InvalidFormatError) Error() string {
	return fmt.Sprintf("minidb: %s: invalid format: bad magic number", e.Path)
}

// UnsupportedVersionError is returned when a file's version byte is not
// one this build of the engine understands.
type UnsupportedVersionError struct {
	Path    string
	Version int16
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("minidb: %s: unsupported version %d", e.Path, e.Version)
}

// DuplicateKeyError is returned by Table.Add when an explicit Id collides
// with a live record already in the table.
type DuplicateKeyError struct {
	Table string
	Id    int32
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("minidb: table %q: duplicate key %d", e.Table, e.Id)
}

// NotFoundError is returned when an update targets an Id that does not
// refer to any slot ever allocated in the table. See DESIGN.md for why
// this engine rejects such updates instead of silently growing the file.
type NotFoundError struct {
	Table string
	Id    int32
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("minidb: table %q: no record with id %d", e.Table, e.Id)
}

// IoError wraps an underlying OS error encountered while reading or
// writing the backing file.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e IoError) Error() string {
	return fmt.Sprintf("minidb: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e IoError) Unwrap() error { return e.Err }

// CancelledError is returned from Commit when the supplied context is
// cancelled before or during the commit.
type CancelledError struct {
	Err error
}

func (e CancelledError) Error() string { return fmt.Sprintf("minidb: commit cancelled: %v", e.Err) }

func (e CancelledError) Unwrap() error { return e.Err }

// DisposedError is returned by Session.Commit and by Table.Add, Update
// and Remove when issued after the owning Session has been closed.
// Table.Iterate and Table.Count return an empty result instead, and a
// repeated Session.Close returns nil.
type DisposedError struct{}

func (e DisposedError) Error() string { return "minidb: session is closed" }
