package paths

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/kofron/lattice/internal/errs"
)

// RepoLock is a non-blocking OS-level exclusive lock over a single
// repository, serialising Lattice's mutating commands across processes.
// It is released deterministically by Release, never by finalizer.
type RepoLock struct {
	file *os.File
}

// Acquire takes the exclusive lock at paths.Lock(), creating the lattice
// directory tree if needed. It does not wait: a held lock returns
// errs.AlreadyLocked immediately.
func Acquire(p LatticePaths) (*RepoLock, error) {
	if err := os.MkdirAll(p.Root(), 0o755); err != nil {
		return nil, fmt.Errorf("creating lattice directory: %w", err)
	}

	f, err := os.OpenFile(p.Lock(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errs.AlreadyLocked()
		}
		return nil, fmt.Errorf("locking %s: %w", p.Lock(), err)
	}

	return &RepoLock{file: f}, nil
}

// Release drops the lock and closes the underlying file. Safe to call once;
// callers typically defer it immediately after Acquire succeeds.
func (l *RepoLock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlocking: %w", err)
	}
	return closeErr
}
