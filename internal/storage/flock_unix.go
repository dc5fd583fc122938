//go:build linux || darwin || freebsd || netbsd || openbsd

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// flockShared takes a BSD shared advisory lock on f for the duration of a
// read-path load, signalling to any concurrent process that this process
// only intends to read. It does not attempt real cross-process write
// safety — two processes can still both open this file for writing.
func flockShared(f *os.File) (unlock func(), err error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, err
	}
	return func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}
