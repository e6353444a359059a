// Package syncmeta implements the durable per-side record of last-known file
// states and deletion tombstones that makes three-way reconciliation
// possible: the store is small, read wholesale at cycle start, written
// wholesale at cycle end, pruning stale tombstones as it loads.
package syncmeta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

const (
	// metadataDir is the reserved directory name holding all of a side's
	// sync bookkeeping; the scanner refuses to descend into it.
	metadataDir = ".rahzom"
	// stateFile is the metadata file name within metadataDir.
	stateFile = "state.json"
	// DefaultRetentionDays is the default tombstone retention window.
	DefaultRetentionDays = 90
)

// document is the on-disk JSON shape of SyncMetadata.
type document struct {
	Files    []syncdata.FileState   `json:"files"`
	Deleted  []syncdata.DeletedFile `json:"deleted"`
	LastSync *time.Time             `json:"last_sync,omitempty"`
}

// SyncMetadata is the complete sync metadata for one side.
type SyncMetadata struct {
	Files    []syncdata.FileState
	Deleted  []syncdata.DeletedFile
	LastSync *time.Time
}

// New returns an empty SyncMetadata, as used for a side with no prior sync
// history.
func New() *SyncMetadata {
	return &SyncMetadata{}
}

// Dir returns the ".rahzom" metadata directory path for root.
func Dir(root string) string {
	return filepath.Join(root, metadataDir)
}

// StatePath returns the path to "<root>/.rahzom/state.json".
func StatePath(root string) string {
	return filepath.Join(Dir(root), stateFile)
}

// Load loads metadata from "<root>/.rahzom/state.json", using the default
// 90-day tombstone retention window. A missing file yields empty metadata,
// not an error; a parse failure is a hard error.
func Load(root string) (*SyncMetadata, error) {
	return LoadWithRetention(root, DefaultRetentionDays)
}

// LoadWithRetention loads metadata with a caller-specified tombstone
// retention window (in days), pruning deleted[] entries older than it as
// part of the load.
func LoadWithRetention(root string, retentionDays int) (*SyncMetadata, error) {
	path := StatePath(root)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrapf(err, "unable to read state file %q", path)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "unable to parse state file %q", path)
	}

	meta := &SyncMetadata{
		Files:    doc.Files,
		Deleted:  doc.Deleted,
		LastSync: doc.LastSync,
	}
	meta.PruneDeleted(retentionDays)
	return meta, nil
}

// Save writes metadata to "<root>/.rahzom/state.json", creating the
// ".rahzom" directory if absent. It writes to a temporary file and renames
// it into place, tightening the underlying design's "write + rename is
// acceptable" floor into an atomic-on-this-host replace (per the recorded
// Open Question decision in SPEC_FULL.md) without changing on-disk
// semantics.
func (m *SyncMetadata) Save(root string) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create metadata directory %q", dir)
	}

	doc := document{
		Files:    m.Files,
		Deleted:  m.Deleted,
		LastSync: m.LastSync,
	}
	if doc.Files == nil {
		doc.Files = []syncdata.FileState{}
	}
	if doc.Deleted == nil {
		doc.Deleted = []syncdata.DeletedFile{}
	}

	encoded, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to encode state file")
	}

	final := StatePath(root)
	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary state file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "unable to write temporary state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "unable to sync temporary state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "unable to close temporary state file")
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "unable to replace state file %q", final)
	}

	return nil
}

// PruneDeleted removes tombstones whose DeletedAt predates the retention
// window.
func (m *SyncMetadata) PruneDeleted(retentionDays int) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	kept := m.Deleted[:0:0]
	for _, d := range m.Deleted {
		if d.DeletedAt.After(cutoff) {
			kept = append(kept, d)
		}
	}
	m.Deleted = kept
}

// FindFile performs a linear lookup for a FileState by path, acceptable
// given the typical scale of a single sync tree's metadata.
func (m *SyncMetadata) FindFile(path string) *syncdata.FileState {
	for i := range m.Files {
		if m.Files[i].Path == path {
			return &m.Files[i]
		}
	}
	return nil
}

// FindDeleted performs a linear lookup for a DeletedFile tombstone by path.
func (m *SyncMetadata) FindDeleted(path string) *syncdata.DeletedFile {
	for i := range m.Deleted {
		if m.Deleted[i].Path == path {
			return &m.Deleted[i]
		}
	}
	return nil
}

// UpsertFile replaces any FileState with a matching path (or appends a new
// one) and removes any tombstone for that path, enforcing the invariant
// that a path never appears in both Files and Deleted simultaneously.
func (m *SyncMetadata) UpsertFile(state syncdata.FileState) {
	m.removeDeleted(state.Path)

	for i := range m.Files {
		if m.Files[i].Path == state.Path {
			m.Files[i] = state
			return
		}
	}
	m.Files = append(m.Files, state)
}

// MarkDeleted removes any FileState for the tombstone's path and replaces
// any prior tombstone for that path, enforcing the same mutual-exclusivity
// invariant as UpsertFile.
func (m *SyncMetadata) MarkDeleted(tombstone syncdata.DeletedFile) {
	m.removeFile(tombstone.Path)
	m.removeDeleted(tombstone.Path)
	m.Deleted = append(m.Deleted, tombstone)
}

func (m *SyncMetadata) removeFile(path string) {
	kept := m.Files[:0:0]
	for _, f := range m.Files {
		if f.Path != path {
			kept = append(kept, f)
		}
	}
	m.Files = kept
}

func (m *SyncMetadata) removeDeleted(path string) {
	kept := m.Deleted[:0:0]
	for _, d := range m.Deleted {
		if d.Path != path {
			kept = append(kept, d)
		}
	}
	m.Deleted = kept
}

// SortedFiles returns Files sorted by path, useful for deterministic
// display and tests.
func (m *SyncMetadata) SortedFiles() []syncdata.FileState {
	out := append([]syncdata.FileState(nil), m.Files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
