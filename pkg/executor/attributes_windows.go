//go:build windows

package executor

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// applyPlatformAttributes restores the source file's readonly/hidden
// attributes on the destination, best-effort.
func applyPlatformAttributes(dstPath string, srcInfo os.FileInfo) {
	winInfo, ok := srcInfo.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return
	}

	pathPtr, err := windows.UTF16PtrFromString(dstPath)
	if err != nil {
		return
	}

	attrs := winInfo.FileAttributes & (windows.FILE_ATTRIBUTE_READONLY | windows.FILE_ATTRIBUTE_HIDDEN)
	if attrs == 0 {
		attrs = windows.FILE_ATTRIBUTE_NORMAL
	}
	windows.SetFileAttributes(pathPtr, attrs)
}
