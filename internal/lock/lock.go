// Package lock keeps two runs of the same command from working on the same
// target at once, across processes.
package lock

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("already running")

// Locker hands out advisory file locks below a directory.
type Locker struct {
	dir string
}

func New(dir string) *Locker {
	return &Locker{dir: dir}
}

// Path returns the lock file used for (command, key). The key is
// percent-escaped, so distinct keys never share a file.
func (l *Locker) Path(command, key string) string {
	return filepath.Join(l.dir, command+"-"+url.PathEscape(key)+".lock")
}

// Acquire takes the lock for (command, key) without waiting. The returned
// function releases it.
func (l *Locker) Acquire(command, key string) (func(), error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory %s: %w", l.dir, err)
	}
	fl := flock.New(l.Path(command, key))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s %s: %w", command, key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrLocked, command, key)
	}
	return func() { _ = fl.Unlock() }, nil
}
