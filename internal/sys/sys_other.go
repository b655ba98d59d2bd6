//go:build !unix

package sys

import (
	"errors"
	"os"
)

var ErrWouldBlock = errors.New("file is locked by another owner")

// Advisory locking is a no-op where flock(2) is unavailable.
func TryLock(file *os.File) error {
	return nil
}

func Unlock(file *os.File) error {
	return nil
}

func Fsync(file *os.File) error {
	return file.Sync()
}
