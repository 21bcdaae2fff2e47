//go:build !unix

package iptables

import (
	"context"
	"errors"
)

// ErrLockBusy means another bbfw process holds the lock file.
var ErrLockBusy = errors.New("lock is held by another process")

// FileLock is a no-op on platforms without flock.
type FileLock struct{}

// AcquireLock returns a no-op lock.
func AcquireLock(ctx context.Context, path string, cfg RetryConfig) (*FileLock, error) {
	return &FileLock{}, nil
}

// Release does nothing.
func (l *FileLock) Release() error { return nil }
