// Package filelock guards a beekeeper run against overlapping runs
// and writes state files without exposing partial content.
package filelock

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

// ErrLocked is returned by Acquire when another process holds the
// lock.
var ErrLocked = errors.New("another run holds the lock")

// RunLock is an exclusive advisory lock on a lock file.
type RunLock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes the lock at path without blocking. It creates the
// parent directory when needed.
func Acquire(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create lock dir for %s", path)
	}

	l := &RunLock{flock: flock.New(path), path: path}
	ok, err := l.flock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	if !ok {
		return nil, errors.WithHintf(
			errors.Mark(errors.Newf("%s is locked", path), ErrLocked),
			"wait for the running beekeeper to finish or remove %s if no run is active", path,
		)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}

// Release drops the lock. Releasing twice is a no-op.
func (l *RunLock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return errors.Wrapf(err, "unlock %s", l.path)
	}
	return nil
}

// AtomicWrite replaces path with data. The content goes to a
// temporary file in the same directory, is synced, and is renamed
// over path, so readers see either the old or the new file.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return errors.Wrap(err, "set permissions")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "rename temp file to %s", path)
	}
	committed = true
	return nil
}

// LockedAppend appends data to path while holding path+".lock".
// It blocks until the lock is free.
func LockedAppend(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "lock %s", path)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "append to %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
