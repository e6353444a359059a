//go:build windows

package executor

import (
	"errors"
	"syscall"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// platformClassify checks for Windows error codes that need a more
// specific classification: sharing/lock violations (a process holding the
// file open) and the two disk-full codes.
func platformClassify(err error) (syncdata.ErrorKind, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}

	switch errno {
	case 32, 33: // ERROR_SHARING_VIOLATION, ERROR_LOCK_VIOLATION
		return syncdata.ErrorFileLocked, true
	case 112, 39: // ERROR_DISK_FULL, ERROR_HANDLE_DISK_FULL
		return syncdata.ErrorDiskFull, true
	case 206: // ERROR_FILENAME_EXCED_RANGE
		return syncdata.ErrorPathTooLong, true
	}
	return 0, false
}
