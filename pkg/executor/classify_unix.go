//go:build !windows

package executor

import (
	"errors"
	"syscall"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// platformClassify checks for POSIX errno values that need a more specific
// classification than the generic IsNotExist/IsPermission checks give:
// ENOSPC for a full disk and ENAMETOOLONG for an over-length path.
func platformClassify(err error) (syncdata.ErrorKind, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}

	switch errno {
	case syscall.ENOSPC:
		return syncdata.ErrorDiskFull, true
	case syscall.ENAMETOOLONG:
		return syncdata.ErrorPathTooLong, true
	}
	return 0, false
}
