//go:build windows

package scanner

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// platformAttributes extracts the Windows readonly/hidden attribute bits
// from info.Sys().
func platformAttributes(info fs.FileInfo) syncdata.FileAttributes {
	var attrs syncdata.FileAttributes
	if winInfo, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		readOnly := winInfo.FileAttributes&windows.FILE_ATTRIBUTE_READONLY != 0
		hidden := winInfo.FileAttributes&windows.FILE_ATTRIBUTE_HIDDEN != 0
		attrs.WindowsReadOnly = &readOnly
		attrs.WindowsHidden = &hidden
	}
	return attrs
}
