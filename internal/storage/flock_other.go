//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package storage

import "os"

// flockShared is a no-op on platforms without BSD advisory locks; the
// in-process reader/writer mutex (internal/filecache) is still the
// authoritative guard for this process's own handles.
func flockShared(f *os.File) (unlock func(), err error) {
	return func() {}, nil
}
