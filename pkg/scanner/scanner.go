// Package scanner enumerates a filesystem tree into an immutable,
// deterministically ordered snapshot: a single synchronous pass suited to
// this engine's one-cycle-at-a-time model rather than a persistent
// watch-and-rescan loop.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/rahzom-sync/rahzom/pkg/exclusions"
	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// MetadataDirName is the reserved directory name the scanner refuses to
// descend into on any sync root, since it holds the engine's own
// bookkeeping (state.json, _trash, _backup).
const MetadataDirName = ".rahzom"

// hashBufferSize is the streaming buffer size used by ComputeHash.
const hashBufferSize = 64 * 1024

// SkippedEntry records a path that was not included in a scan's Entries,
// along with why.
type SkippedEntry struct {
	Path   string
	Reason string
}

// Result is the output of scanning one tree.
type Result struct {
	// Root is the canonicalized absolute path that was scanned.
	Root string
	// Entries holds every included file and directory, sorted
	// lexicographically (byte-wise) by Path so that diffing is
	// deterministic.
	Entries []syncdata.FileEntry
	// ScanTime is when the scan was performed.
	ScanTime time.Time
	// Skipped holds every path that was excluded, was a symlink, or could
	// not be read, along with the reason.
	Skipped []SkippedEntry
}

// Scan walks root and returns its entries. Symbolic links are never
// followed; if excl is non-nil, matching paths are filtered out. Hashing is
// never performed here — FileEntry.Hash is always nil on a fresh scan; a
// caller that wants hashes invokes ComputeHash itself for the paths it
// cares about.
func Scan(root string, excl *exclusions.Exclusions) (*Result, error) {
	canonical, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve absolute path for %q", root)
	}
	canonical, err = filepath.EvalSymlinks(canonical)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to canonicalize root %q", root)
	}

	result := &Result{Root: canonical}

	walkErr := filepath.WalkDir(canonical, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == canonical {
			return nil
		}

		relative, relErr := filepath.Rel(canonical, path)
		if relErr != nil {
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: relErr.Error()})
			return nil
		}
		relative = filepath.ToSlash(relative)

		if containsReservedDir(relative) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: "Symlink"})
			return nil
		}

		if excl != nil && excl.IsExcluded(relative, d.IsDir()) {
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: "Excluded by pattern"})
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Reason: infoErr.Error()})
			return nil
		}

		entry := syncdata.FileEntry{
			Path:       relative,
			IsDir:      d.IsDir(),
			MTime:      info.ModTime().UTC(),
			Attributes: platformAttributes(info),
		}
		if !entry.IsDir {
			entry.Size = uint64(info.Size())
		}

		result.Entries = append(result.Entries, entry)
		return nil
	})
	if walkErr != nil {
		return nil, errors.Wrapf(walkErr, "unable to walk root %q", canonical)
	}

	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Path < result.Entries[j].Path
	})

	result.ScanTime = time.Now().UTC()
	return result, nil
}

// containsReservedDir reports whether any path component of a
// slash-normalized relative path is the reserved metadata directory name.
func containsReservedDir(relative string) bool {
	for _, component := range splitComponents(relative) {
		if component == MetadataDirName {
			return true
		}
	}
	return false
}

func splitComponents(relative string) []string {
	var components []string
	start := 0
	for i := 0; i <= len(relative); i++ {
		if i == len(relative) || relative[i] == '/' {
			if i > start {
				components = append(components, relative[start:i])
			}
			start = i + 1
		}
	}
	return components
}

// ComputeHash computes the SHA-256 digest of the file at path, streaming
// through a 64 KiB buffer so that large files never need to be loaded whole
// into memory. Neither the scanner, the differ, nor the executor calls it;
// FileEntry.Hash is populated only by a caller that invokes it explicitly.
func ComputeHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to open file %q", path)
	}
	defer file.Close()

	hasher := sha256.New()
	buffer := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(hasher, file, buffer); err != nil {
		return "", errors.Wrapf(err, "unable to read file %q", path)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
