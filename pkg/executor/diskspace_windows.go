//go:build windows

package executor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// availableSpace reports free bytes on path's volume via
// GetDiskFreeSpaceEx.
func availableSpace(path string) (uint64, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to resolve path %q", path)
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return 0, errors.Wrapf(err, "unable to query disk space for %q", path)
	}
	return freeBytesAvailable, nil
}
