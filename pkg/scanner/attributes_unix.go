//go:build !windows

package scanner

import (
	"io/fs"
	"syscall"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// platformAttributes extracts the raw POSIX st_mode (file-type and
// permission bits) from info.Sys().
func platformAttributes(info fs.FileInfo) syncdata.FileAttributes {
	var attrs syncdata.FileAttributes
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		mode := uint32(stat.Mode)
		attrs.UnixMode = &mode
	}
	return attrs
}
