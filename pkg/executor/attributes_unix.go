//go:build !windows

package executor

import "os"

// applyPlatformAttributes restores the source file's POSIX permission bits
// on the destination, best-effort: a failure here does not fail the copy,
// since mode bits are secondary to content and mtime.
func applyPlatformAttributes(dstPath string, srcInfo os.FileInfo) {
	os.Chmod(dstPath, srcInfo.Mode().Perm())
}
