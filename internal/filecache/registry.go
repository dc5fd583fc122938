// Package filecache implements the process-wide, reference-counted
// registry of one in-memory Cache per normalized file path. It is the
// mechanism that lets multiple Contexts on the same path observe one
// authoritative in-memory state.
package filecache

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Cache)
)

// NormalizePath resolves path to an absolute, symlink-resolved form and
// folds case on platforms whose default filesystem is case-insensitive,
// so two different spellings of the same file always key the same Cache.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("minidb: %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	// EvalSymlinks fails if the file doesn't exist yet (first Open on a
	// fresh path); that's fine, Abs+Clean is already stable.
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		abs = strings.ToLower(abs)
	}
	return filepath.Clean(abs), nil
}

// Acquire returns the Cache registered for path, creating it via create
// on the first call for that path. Every call increments the Cache's
// reference count; callers must pair it with exactly one Release.
func Acquire(path string, create func() (*Cache, error)) (*Cache, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if c, ok := registry[norm]; ok {
		c.refCount++
		log.WithField("path", norm).WithField("refs", c.refCount).Debug("minidb: acquired existing file cache")
		return c, nil
	}

	c, err := create()
	if err != nil {
		return nil, err
	}
	c.path = norm
	c.refCount = 1
	registry[norm] = c
	log.WithField("path", norm).Debug("minidb: created new file cache")
	return c, nil
}

// Release decrements the Cache's reference count for path. When it
// reaches zero, the Cache's write queue is flushed and shut down and it
// is removed from the registry — this is the only thing that tears a
// Cache down. Session.Close calls Release, so closing the last Session
// open on a path tears its Cache down.
func Release(path string) error {
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}

	registryMu.Lock()
	c, ok := registry[norm]
	if !ok {
		registryMu.Unlock()
		return nil
	}
	c.refCount--
	remaining := c.refCount
	if remaining <= 0 {
		delete(registry, norm)
	}
	registryMu.Unlock()

	if remaining > 0 {
		log.WithField("path", norm).WithField("refs", remaining).Debug("minidb: released file cache")
		return nil
	}

	log.WithField("path", norm).Debug("minidb: disposing file cache, no handles remain")
	return c.dispose()
}

// ReleaseAll tears down every cache still registered. Go has no built-in
// process-exit hook for this; call this
// from a deferred main() or a signal handler to get the same guarantee.
func ReleaseAll() error {
	registryMu.Lock()
	paths := make([]string, 0, len(registry))
	for p := range registry {
		paths = append(paths, p)
	}
	registryMu.Unlock()

	var firstErr error
	for _, p := range paths {
		registryMu.Lock()
		c := registry[p]
		delete(registry, p)
		registryMu.Unlock()
		if c == nil {
			continue
		}
		if err := c.dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
