// Package syncdata defines the plain-value data model shared by the
// scanner, differ, executor, and metadata store: scan entries, persisted
// file states, deletion tombstones, and the tagged sync-action variants
// that the differ emits and the executor consumes. None of these types hold
// back-references to one another — scans, metadata, and plans are produced,
// consumed, and dropped within a single synchronization cycle, with only
// metadata outliving it.
package syncdata

import "time"

// FileAttributes holds platform-specific attributes for a file. Only the
// fields applicable to the runtime platform are populated on read; all
// populated fields are preserved on copy where possible.
type FileAttributes struct {
	// UnixMode is the raw POSIX st_mode (file-type and permission bits),
	// populated on POSIX platforms.
	UnixMode *uint32 `json:"unixMode,omitempty"`
	// WindowsReadOnly is the Windows read-only attribute, populated on
	// Windows.
	WindowsReadOnly *bool `json:"windowsReadonly,omitempty"`
	// WindowsHidden is the Windows hidden attribute, populated on Windows.
	WindowsHidden *bool `json:"windowsHidden,omitempty"`
}

// FileEntry is a single scanner result: a snapshot of one path at scan time.
// It is transient — it lives inside one Scan result and is read-only
// downstream.
type FileEntry struct {
	// Path is relative to the scan root, using forward slashes.
	Path string
	// Size is the file size in bytes (0 for directories).
	Size uint64
	// MTime is the last-modified time, normalized to UTC.
	MTime time.Time
	// IsDir indicates whether this entry is a directory.
	IsDir bool
	// Hash is the SHA-256 content hash, only populated when a caller
	// explicitly opted into hashing; nil otherwise.
	Hash *string
	// Attributes holds platform-specific attributes.
	Attributes FileAttributes
}

// FileState is the metadata record of a path's last-known-synced state. It
// persists across sync cycles and is mutated only by the successful
// completion of an action involving that path.
type FileState struct {
	Path       string         `json:"path"`
	Size       uint64         `json:"size"`
	MTime      time.Time      `json:"mtime"`
	Hash       *string        `json:"hash,omitempty"`
	Attributes FileAttributes `json:"attributes"`
	LastSynced time.Time      `json:"last_synced"`
}

// DeletedFile is a tombstone recording that a previously known path has
// been removed on this side. It is retained for a bounded window to
// disambiguate "deleted" from "never seen".
type DeletedFile struct {
	Path      string    `json:"path"`
	Size      uint64    `json:"size"`
	MTime     time.Time `json:"mtime"`
	Hash      *string   `json:"hash,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ConflictReason classifies why a path could not be reconciled
// automatically.
type ConflictReason int

const (
	// ConflictBothModified indicates both sides changed a file since its
	// last recorded synced state.
	ConflictBothModified ConflictReason = iota
	// ConflictModifiedAndDeleted indicates one side modified a file that the
	// other side deleted.
	ConflictModifiedAndDeleted
	// ConflictExistsVsDeleted indicates a file exists on one side while the
	// other side's metadata holds a deletion tombstone for the same path.
	ConflictExistsVsDeleted
	// ConflictCaseConflict indicates two paths collide case-insensitively
	// but differ in exact case.
	ConflictCaseConflict
)

// String renders a ConflictReason for logging and display.
func (r ConflictReason) String() string {
	switch r {
	case ConflictBothModified:
		return "BothModified"
	case ConflictModifiedAndDeleted:
		return "ModifiedAndDeleted"
	case ConflictExistsVsDeleted:
		return "ExistsVsDeleted"
	case ConflictCaseConflict:
		return "CaseConflict"
	default:
		return "Unknown"
	}
}

// FileInfo is a lightweight snapshot of a file's size/mtime/hash, attached
// to Conflict actions for display to the user.
type FileInfo struct {
	Size  uint64
	MTime time.Time
	Hash  *string
}

// ActionKind identifies the variant of a SyncAction, playing the role that
// a sum type's discriminant would in a language with native tagged unions;
// a switch on Kind is the primary control-flow shape in the differ,
// executor, and any UI adapter.
type ActionKind int

const (
	ActionCopyToRight ActionKind = iota
	ActionCopyToLeft
	ActionDeleteRight
	ActionDeleteLeft
	ActionCreateDirRight
	ActionCreateDirLeft
	ActionConflict
	ActionSkip
)

// SyncAction is one element of a reconciliation plan. Every variant carries
// the relative path it applies to; fields outside a variant's scope are left
// at their zero value.
type SyncAction struct {
	Kind ActionKind
	Path string

	// Size is populated for ActionCopyToRight / ActionCopyToLeft.
	Size uint64

	// ConflictReason is populated for ActionConflict and SkipReason (a
	// free-form string) for ActionSkip; keeping them in separate fields
	// keeps the zero value unambiguous.
	ConflictReason ConflictReason
	SkipReason     string

	// Left and Right are populated for ActionConflict when the
	// corresponding side has a present entry.
	Left  *FileInfo
	Right *FileInfo
}

// PathOf returns the action's path. Kept as a method even though Path is
// already an exported field, so that callers written against an
// action-like interface can use a single accessor name across possible
// future variants.
func (a SyncAction) PathOf() string {
	return a.Path
}

// FileSnapshot is the pre-copy verification witness the executor uses to
// detect in-flight changes between scan time and copy time: size and mtime
// captured at scan time. Snapshot maps are keyed by executor.SnapshotKey
// (the source side plus the relative path), not by absolute path.
type FileSnapshot struct {
	Size  uint64
	MTime time.Time
}

// ErrorKind classifies an execution failure for the caller, so that only
// the genuinely retryable kinds are surfaced as such.
type ErrorKind int

const (
	ErrorFileLocked ErrorKind = iota
	ErrorPermissionDenied
	ErrorDiskFull
	ErrorFileChanged
	ErrorPathTooLong
	ErrorInvalidPath
	ErrorNotFound
	ErrorIO
)

// String renders an ErrorKind for logging and display.
func (k ErrorKind) String() string {
	switch k {
	case ErrorFileLocked:
		return "FileLocked"
	case ErrorPermissionDenied:
		return "PermissionDenied"
	case ErrorDiskFull:
		return "DiskFull"
	case ErrorFileChanged:
		return "FileChanged"
	case ErrorPathTooLong:
		return "PathTooLong"
	case ErrorInvalidPath:
		return "InvalidPath"
	case ErrorNotFound:
		return "NotFound"
	default:
		return "IoError"
	}
}

// IsRecoverable reports whether the caller may reasonably re-plan and retry
// after this kind of failure. Only FileLocked and DiskFull qualify.
func (k ErrorKind) IsRecoverable() bool {
	return k == ErrorFileLocked || k == ErrorDiskFull
}

// CompletedAction records a successfully applied action and the number of
// bytes it transferred (zero for non-copy actions).
type CompletedAction struct {
	Action           SyncAction
	BytesTransferred uint64
}

// FailedAction records an action that could not be applied, with its
// classified error kind.
type FailedAction struct {
	Action SyncAction
	Err    error
	Kind   ErrorKind
}

// SkippedAction records a benign non-application of an action (e.g. a file
// changed mid-sync, a Skip action, or a Conflict left for the user). A delete
// whose target is already absent is recorded as completed, not skipped.
type SkippedAction struct {
	Action SyncAction
	Reason string
}

// ExecutionResult is the three-way outcome of applying a plan.
type ExecutionResult struct {
	Completed []CompletedAction
	Failed    []FailedAction
	Skipped   []SkippedAction
}

// TotalBytesTransferred sums BytesTransferred across all completed actions.
func (r *ExecutionResult) TotalBytesTransferred() uint64 {
	var total uint64
	for _, c := range r.Completed {
		total += c.BytesTransferred
	}
	return total
}
