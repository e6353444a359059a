package executor

// DiskSpaceInfo reports the available space at a path against a required
// byte count. It is produced by CheckDiskSpace, a free function that Execute
// never calls; a caller that wants a pre-flight check invokes it explicitly.
type DiskSpaceInfo struct {
	Available  uint64
	Required   uint64
	Sufficient bool
}

// CheckDiskSpace reports whether at least requiredBytes are free at path's
// filesystem.
func CheckDiskSpace(path string, requiredBytes uint64) (DiskSpaceInfo, error) {
	available, err := availableSpace(path)
	if err != nil {
		return DiskSpaceInfo{}, err
	}
	return DiskSpaceInfo{
		Available:  available,
		Required:   requiredBytes,
		Sufficient: available >= requiredBytes,
	}, nil
}
