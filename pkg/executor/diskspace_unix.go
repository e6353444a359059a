//go:build !windows

package executor

import (
	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

// availableSpace reports free bytes on path's filesystem via statfs.
func availableSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, errors.Wrapf(err, "unable to statfs %q", path)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
