//go:build unix

package iptables

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLockBusy means another bbfw process holds the lock file.
var ErrLockBusy = errors.New("lock is held by another process")

// FileLock is an exclusive advisory lock on a file.
type FileLock struct {
	f    *os.File
	path string
}

// AcquireLock takes an exclusive flock on path, retrying with cfg while it
// is busy.
func AcquireLock(ctx context.Context, path string, cfg RetryConfig) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	cfg.RetryableErrors = []error{ErrLockBusy}
	err = Retry(ctx, cfg, func() error {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrLockBusy, path)
		}
		return err
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileLock{f: f, path: path}, nil
}

// Release drops the lock.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return l.f.Close()
}
