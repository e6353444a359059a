// Package executor applies a reconciliation plan to two filesystem roots:
// creating directories, copying files with pre-copy snapshot verification,
// and deleting (by default to a recoverable trash) in an order that never
// assumes anything about the order the plan arrived in.
package executor

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// fat32Tolerance matches the differ's comparison slack; a snapshot taken at
// scan time and a re-stat at copy time are compared with the same leniency.
const fat32Tolerance = 2 * time.Second

// copyBufferSize is the streaming buffer size for file copies.
const copyBufferSize = 64 * 1024

// Config controls optional executor behavior.
type Config struct {
	// BackupEnabled, when true, moves an about-to-be-overwritten destination
	// file into "<root>/.rahzom/_backup/" before a copy replaces it.
	BackupEnabled bool
	// BackupVersions caps how many backups of a given file are retained;
	// older ones are pruned after each backup.
	BackupVersions int
	// SoftDelete, when true, moves deleted files into
	// "<root>/.rahzom/_trash/" instead of removing them outright.
	SoftDelete bool
}

// DefaultConfig returns the executor's default behavior: backups on,
// keeping 5 versions, soft-deleting to trash.
func DefaultConfig() Config {
	return Config{BackupEnabled: true, BackupVersions: 5, SoftDelete: true}
}

// ProgressCallback receives execution progress as actions are applied.
type ProgressCallback interface {
	OnProgress(current, total int, path string)
	OnFileComplete(action syncdata.SyncAction, success bool)
}

// NoopProgress implements ProgressCallback with no-ops, for callers that
// don't need progress reporting.
type NoopProgress struct{}

func (NoopProgress) OnProgress(current, total int, path string)          {}
func (NoopProgress) OnFileComplete(action syncdata.SyncAction, success bool) {}

// Executor applies sync actions against a pair of roots.
type Executor struct {
	LeftRoot  string
	RightRoot string
	Config    Config
	// Cancelled is polled between actions (never mid-action); when it
	// returns true, Execute stops dispatching further actions and returns
	// immediately with whatever outcomes have already accumulated. A nil
	// Cancelled means the cycle always runs to completion. Cancellation is
	// not reported as an error.
	Cancelled func() bool
}

// New returns an Executor for the given roots and configuration.
func New(leftRoot, rightRoot string, config Config) *Executor {
	return &Executor{LeftRoot: leftRoot, RightRoot: rightRoot, Config: config}
}

// SnapshotKey builds the key an Execute caller should use in its snapshots
// map for a given side and relative path. "left"/"right" refer to the side
// the file was captured from when the plan was built (the copy source).
func SnapshotKey(side, path string) string {
	return side + ":" + path
}

// Execute applies actions in a safe order (never trusting the order they
// were supplied in), reporting progress through progress if non-nil.
// snapshots carries the size/mtime captured at scan time for every file a
// Copy action might read from, keyed by SnapshotKey("left"|"right", path);
// a copy whose source has no snapshot proceeds without verification.
func (e *Executor) Execute(actions []syncdata.SyncAction, snapshots map[string]syncdata.FileSnapshot, progress ProgressCallback) (*syncdata.ExecutionResult, error) {
	if progress == nil {
		progress = NoopProgress{}
	}

	ordered := append([]syncdata.SyncAction(nil), actions...)
	sortActions(ordered)

	result := &syncdata.ExecutionResult{}

	for i, action := range ordered {
		if e.Cancelled != nil && e.Cancelled() {
			break
		}

		progress.OnProgress(i+1, len(ordered), action.Path)

		bytesTransferred, skipReason, err, kind := e.executeOne(action, snapshots)
		switch {
		case err != nil:
			result.Failed = append(result.Failed, syncdata.FailedAction{Action: action, Err: err, Kind: kind})
			progress.OnFileComplete(action, false)
		case skipReason != "":
			result.Skipped = append(result.Skipped, syncdata.SkippedAction{Action: action, Reason: skipReason})
			progress.OnFileComplete(action, true)
		default:
			result.Completed = append(result.Completed, syncdata.CompletedAction{Action: action, BytesTransferred: bytesTransferred})
			progress.OnFileComplete(action, true)
		}
	}

	return result, nil
}

func (e *Executor) executeOne(action syncdata.SyncAction, snapshots map[string]syncdata.FileSnapshot) (bytesTransferred uint64, skipReason string, err error, kind syncdata.ErrorKind) {
	switch action.Kind {
	case syncdata.ActionCopyToRight:
		return e.verifyAndCopy(e.LeftRoot, e.RightRoot, action, "left", snapshots)
	case syncdata.ActionCopyToLeft:
		return e.verifyAndCopy(e.RightRoot, e.LeftRoot, action, "right", snapshots)
	case syncdata.ActionDeleteRight:
		return e.deleteFile(e.RightRoot, action.Path)
	case syncdata.ActionDeleteLeft:
		return e.deleteFile(e.LeftRoot, action.Path)
	case syncdata.ActionCreateDirRight:
		return e.createDir(e.RightRoot, action.Path)
	case syncdata.ActionCreateDirLeft:
		return e.createDir(e.LeftRoot, action.Path)
	case syncdata.ActionConflict:
		return 0, "conflict: " + action.ConflictReason.String(), nil, 0
	default: // ActionSkip
		reason := action.SkipReason
		if reason == "" {
			reason = "skipped"
		}
		return 0, reason, nil, 0
	}
}

func (e *Executor) verifyAndCopy(srcRoot, dstRoot string, action syncdata.SyncAction, snapshotSide string, snapshots map[string]syncdata.FileSnapshot) (uint64, string, error, syncdata.ErrorKind) {
	srcPath := filepath.Join(srcRoot, action.Path)
	dstPath := filepath.Join(dstRoot, action.Path)

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return 0, "", err, classifyIOError(err)
	}

	// Verification only applies when a snapshot was captured for this path;
	// a copy with no snapshot on record proceeds unverified rather than
	// being skipped outright.
	if snap, ok := snapshots[SnapshotKey(snapshotSide, action.Path)]; ok {
		if uint64(srcInfo.Size()) != snap.Size || absDuration(srcInfo.ModTime().Sub(snap.MTime)) > fat32Tolerance {
			return 0, "File changed during sync", nil, 0
		}
	}

	if e.Config.BackupEnabled {
		if _, statErr := os.Lstat(dstPath); statErr == nil {
			if backupErr := e.createBackup(dstRoot, action.Path); backupErr != nil {
				return 0, "", backupErr, classifyIOError(backupErr)
			}
		}
	}

	if err := copyFile(srcPath, dstPath, srcInfo); err != nil {
		return 0, "", err, classifyIOError(err)
	}

	dstInfo, err := os.Stat(dstPath)
	if err != nil {
		return 0, "", err, classifyIOError(err)
	}
	if uint64(dstInfo.Size()) != action.Size {
		return 0, "", errors.Errorf("size mismatch after copying %q: wrote %d bytes, expected %d", action.Path, dstInfo.Size(), action.Size), syncdata.ErrorIO
	}

	return uint64(dstInfo.Size()), "", nil, 0
}

func copyFile(srcPath, dstPath string, srcInfo os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return errors.Wrapf(err, "unable to create parent directory for %q", dstPath)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrapf(err, "unable to open source %q", srcPath)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrapf(err, "unable to create destination %q", dstPath)
	}

	reader := bufio.NewReaderSize(src, copyBufferSize)
	writer := bufio.NewWriterSize(dst, copyBufferSize)

	if _, err := io.Copy(writer, reader); err != nil {
		dst.Close()
		return errors.Wrapf(err, "unable to copy %q to %q", srcPath, dstPath)
	}
	if err := writer.Flush(); err != nil {
		dst.Close()
		return errors.Wrapf(err, "unable to flush %q", dstPath)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, "unable to close %q", dstPath)
	}

	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dstPath, mtime, mtime); err != nil {
		return errors.Wrapf(err, "unable to preserve mtime on %q", dstPath)
	}

	applyPlatformAttributes(dstPath, srcInfo)
	return nil
}

func (e *Executor) deleteFile(root, relPath string) (uint64, string, error, syncdata.ErrorKind) {
	path := filepath.Join(root, relPath)

	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return 0, "", nil, 0
		}
		return 0, "", err, classifyIOError(err)
	}

	if e.Config.SoftDelete {
		if err := softDelete(root, relPath, path); err != nil {
			return 0, "", err, classifyIOError(err)
		}
		return 0, "", nil, 0
	}

	if err := os.Remove(path); err != nil {
		return 0, "", err, classifyIOError(err)
	}
	return 0, "", nil, 0
}

func (e *Executor) createDir(root, relPath string) (uint64, string, error, syncdata.ErrorKind) {
	path := filepath.Join(root, relPath)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return 0, "", err, classifyIOError(err)
	}
	return 0, "", nil, 0
}

// timestampSuffix formats the current instant the way backup and trash
// filenames embed it: millisecond-precision, filename-safe.
func timestampSuffix() string {
	now := time.Now().UTC()
	return now.Format("20060102_150405") + "_" + threeDigits(now.Nanosecond()/1e6)
}

func threeDigits(n int) string {
	s := "000" + strconv.Itoa(n)
	return s[len(s)-3:]
}

func softDelete(root, relPath, absPath string) error {
	trashDir := filepath.Join(root, ".rahzom", "_trash")
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create trash directory %q", trashDir)
	}
	dest := filepath.Join(trashDir, filepath.Base(relPath)+"."+timestampSuffix())
	if err := os.Rename(absPath, dest); err != nil {
		return errors.Wrapf(err, "unable to move %q to trash", absPath)
	}
	return nil
}

func (e *Executor) createBackup(root, relPath string) error {
	backupDir := filepath.Join(root, ".rahzom", "_backup")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create backup directory %q", backupDir)
	}
	src := filepath.Join(root, relPath)
	dest := filepath.Join(backupDir, filepath.Base(relPath)+"."+timestampSuffix())
	if err := os.Rename(src, dest); err != nil {
		return errors.Wrapf(err, "unable to move %q to backup", src)
	}
	e.rotateBackups(backupDir, filepath.Base(relPath))
	return nil
}

// rotateBackups keeps only the newest BackupVersions backups of baseName,
// identified by their filename-embedded timestamp, which sorts
// lexicographically in the same order as chronologically.
func (e *Executor) rotateBackups(backupDir, baseName string) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return
	}

	prefix := baseName + "."
	var matching []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			matching = append(matching, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matching)))

	versions := e.Config.BackupVersions
	if versions <= 0 {
		versions = 1
	}
	for i := versions; i < len(matching); i++ {
		os.Remove(filepath.Join(backupDir, matching[i]))
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func actionClass(kind syncdata.ActionKind) int {
	switch kind {
	case syncdata.ActionCreateDirRight, syncdata.ActionCreateDirLeft:
		return 0
	case syncdata.ActionCopyToRight, syncdata.ActionCopyToLeft:
		return 1
	case syncdata.ActionDeleteRight, syncdata.ActionDeleteLeft:
		return 2
	default:
		return 3
	}
}

func pathDepth(path string) int {
	return strings.Count(path, "/")
}

// sortActions re-derives a safe execution order independently of whatever
// order the plan arrived in, the same invariant the differ already
// establishes — the executor never assumes a caller preserved it. A final
// lexicographic path tiebreak keeps the order total rather than relying on
// whatever order the caller's slice happened to arrive in.
func sortActions(actions []syncdata.SyncAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		ci, cj := actionClass(actions[i].Kind), actionClass(actions[j].Kind)
		if ci != cj {
			return ci < cj
		}
		di, dj := pathDepth(actions[i].Path), pathDepth(actions[j].Path)
		if di != dj {
			if ci == 2 {
				return di > dj
			}
			return di < dj
		}
		return actions[i].Path < actions[j].Path
	})
}
