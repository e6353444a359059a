// Package engine orchestrates one full synchronization cycle: load
// metadata, scan both roots, diff, execute, and persist the updated
// metadata. A caller that wants periodic synchronization invokes this
// sequence repeatedly on its own schedule; the package itself holds no
// notion of a persistent session.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rahzom-sync/rahzom/pkg/differ"
	"github.com/rahzom-sync/rahzom/pkg/exclusions"
	"github.com/rahzom-sync/rahzom/pkg/executor"
	"github.com/rahzom-sync/rahzom/pkg/scanner"
	"github.com/rahzom-sync/rahzom/pkg/syncdata"
	"github.com/rahzom-sync/rahzom/pkg/syncmeta"
	"github.com/rahzom-sync/rahzom/pkg/synclog"
)

// Config controls one cycle's behavior.
type Config struct {
	LeftRoot       string
	RightRoot      string
	ExecutorConfig executor.Config
	RetentionDays  int
	Logger         *synclog.Logger
	Progress       executor.ProgressCallback
	// Cancelled, if non-nil, is threaded through to the executor and polled
	// between actions so a caller can interrupt a cycle after its current
	// action finishes.
	Cancelled func() bool
}

// DefaultConfig returns a Config with the executor's default behavior and
// the metadata store's default tombstone retention.
func DefaultConfig(leftRoot, rightRoot string) Config {
	return Config{
		LeftRoot:       leftRoot,
		RightRoot:      rightRoot,
		ExecutorConfig: executor.DefaultConfig(),
		RetentionDays:  syncmeta.DefaultRetentionDays,
	}
}

// CycleResult is the outcome of one RunCycle call.
type CycleResult struct {
	// ID is a random identifier minted for this cycle, useful for
	// correlating its log lines across the two sides' sublogger output.
	ID        string
	Plan      *differ.Plan
	Execution *syncdata.ExecutionResult
}

// RunCycle performs exactly one scan-diff-execute-save pass over the
// configured roots. It never watches for further changes and never retries
// on its own; a caller that wants periodic synchronization invokes RunCycle
// repeatedly on its own schedule.
func RunCycle(config Config) (*CycleResult, error) {
	cycleID := uuid.NewString()
	logger := config.Logger.Sublogger(cycleID[:8])
	retention := config.RetentionDays
	if retention <= 0 {
		retention = syncmeta.DefaultRetentionDays
	}

	leftMeta, err := syncmeta.LoadWithRetention(config.LeftRoot, retention)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load left metadata")
	}
	rightMeta, err := syncmeta.LoadWithRetention(config.RightRoot, retention)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load right metadata")
	}

	leftExcl, err := exclusions.Load(config.LeftRoot)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load left exclusions")
	}
	rightExcl, err := exclusions.Load(config.RightRoot)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load right exclusions")
	}
	merged := mergeExclusions(leftExcl, rightExcl)

	leftScan, err := scanner.Scan(config.LeftRoot, merged)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan left root")
	}
	rightScan, err := scanner.Scan(config.RightRoot, merged)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan right root")
	}
	logger.Infof("scanned %d left entries, %d right entries", len(leftScan.Entries), len(rightScan.Entries))

	plan := differ.Diff(leftScan, rightScan, leftMeta, rightMeta)
	logger.Infof("plan: %d to copy (%d bytes), %d to delete, %d conflicts",
		plan.FilesToCopy, plan.TotalBytesToTransfer, plan.FilesToDelete, plan.Conflicts)

	snapshots := buildSnapshots(leftScan, rightScan)

	exec := executor.New(config.LeftRoot, config.RightRoot, config.ExecutorConfig)
	exec.Cancelled = config.Cancelled
	result, err := exec.Execute(plan.Actions, snapshots, config.Progress)
	if err != nil {
		return nil, errors.Wrap(err, "execution failed")
	}
	logger.Infof("execution: %d completed, %d failed, %d skipped",
		len(result.Completed), len(result.Failed), len(result.Skipped))

	now := time.Now().UTC()
	applyCompletions(leftMeta, rightMeta, leftScan, rightScan, result, now)

	cancelled := config.Cancelled != nil && config.Cancelled()
	if !cancelled {
		leftMeta.LastSync = &now
		rightMeta.LastSync = &now
	} else {
		logger.Infof("cycle cancelled; last_sync left unchanged")
	}

	if err := leftMeta.Save(config.LeftRoot); err != nil {
		return nil, errors.Wrap(err, "unable to save left metadata")
	}
	if err := rightMeta.Save(config.RightRoot); err != nil {
		return nil, errors.Wrap(err, "unable to save right metadata")
	}

	return &CycleResult{ID: cycleID, Plan: plan, Execution: result}, nil
}

// mergeExclusions combines both sides' independent exclusion files: a
// pattern excluded by either side is excluded from both scans, since a
// path filtered out of one side's view can never be reconciled anyway.
func mergeExclusions(left, right *exclusions.Exclusions) *exclusions.Exclusions {
	patterns := append([]string{}, left.Patterns()...)
	patterns = append(patterns, right.Patterns()...)
	merged, err := exclusions.FromPatterns(patterns)
	if err != nil {
		// Patterns already validated individually by exclusions.Load; this
		// path is unreachable in practice.
		return exclusions.Empty()
	}
	return merged
}

func buildSnapshots(leftScan, rightScan *scanner.Result) map[string]syncdata.FileSnapshot {
	snapshots := make(map[string]syncdata.FileSnapshot, len(leftScan.Entries)+len(rightScan.Entries))
	for _, e := range leftScan.Entries {
		if !e.IsDir {
			snapshots[executor.SnapshotKey("left", e.Path)] = syncdata.FileSnapshot{Size: e.Size, MTime: e.MTime}
		}
	}
	for _, e := range rightScan.Entries {
		if !e.IsDir {
			snapshots[executor.SnapshotKey("right", e.Path)] = syncdata.FileSnapshot{Size: e.Size, MTime: e.MTime}
		}
	}
	return snapshots
}

// applyCompletions folds a completed execution back into each side's
// metadata: copies and surviving files get an up-to-date FileState on both
// sides, deletions get a tombstone on the side that no longer has the file.
func applyCompletions(leftMeta, rightMeta *syncmeta.SyncMetadata, leftScan, rightScan *scanner.Result, result *syncdata.ExecutionResult, now time.Time) {
	leftEntries := entriesByPath(leftScan.Entries)
	rightEntries := entriesByPath(rightScan.Entries)

	for _, c := range result.Completed {
		switch c.Action.Kind {
		case syncdata.ActionCopyToRight, syncdata.ActionCreateDirRight:
			if e, ok := leftEntries[c.Action.Path]; ok {
				state := fileStateFrom(e, now)
				leftMeta.UpsertFile(state)
				rightMeta.UpsertFile(state)
			}
		case syncdata.ActionCopyToLeft, syncdata.ActionCreateDirLeft:
			if e, ok := rightEntries[c.Action.Path]; ok {
				state := fileStateFrom(e, now)
				leftMeta.UpsertFile(state)
				rightMeta.UpsertFile(state)
			}
		case syncdata.ActionDeleteLeft:
			tombstone := deletedFileFrom(c.Action.Path, leftEntries, now)
			leftMeta.MarkDeleted(tombstone)
			rightMeta.MarkDeleted(tombstone)
		case syncdata.ActionDeleteRight:
			tombstone := deletedFileFrom(c.Action.Path, rightEntries, now)
			leftMeta.MarkDeleted(tombstone)
			rightMeta.MarkDeleted(tombstone)
		}
	}

	// Entries that matched already (Skip "identical"/"no changes detected")
	// still deserve an up-to-date FileState so next cycle's change detection
	// has a baseline; entries untouched by this cycle (not present in any
	// plan action) are left alone.
	for _, a := range skipActionsWithBaseline(result) {
		if e, ok := leftEntries[a.Path]; ok {
			state := fileStateFrom(e, now)
			leftMeta.UpsertFile(state)
		}
		if e, ok := rightEntries[a.Path]; ok {
			state := fileStateFrom(e, now)
			rightMeta.UpsertFile(state)
		}
	}
}

func skipActionsWithBaseline(result *syncdata.ExecutionResult) []syncdata.SyncAction {
	var actions []syncdata.SyncAction
	for _, s := range result.Skipped {
		if s.Action.Kind == syncdata.ActionSkip {
			actions = append(actions, s.Action)
		}
	}
	return actions
}

func entriesByPath(entries []syncdata.FileEntry) map[string]syncdata.FileEntry {
	out := make(map[string]syncdata.FileEntry, len(entries))
	for _, e := range entries {
		out[e.Path] = e
	}
	return out
}

// deletedFileFrom builds a tombstone from the pre-execution scan entry for a
// path that a delete action just removed, preserving its last-known size,
// mtime, and hash the way spec.md's DeletedFile shape requires.
func deletedFileFrom(path string, preDeleteEntries map[string]syncdata.FileEntry, now time.Time) syncdata.DeletedFile {
	e, ok := preDeleteEntries[path]
	if !ok {
		return syncdata.DeletedFile{Path: path, DeletedAt: now}
	}
	return syncdata.DeletedFile{Path: path, Size: e.Size, MTime: e.MTime, Hash: e.Hash, DeletedAt: now}
}

func fileStateFrom(e syncdata.FileEntry, now time.Time) syncdata.FileState {
	return syncdata.FileState{
		Path:       e.Path,
		Size:       e.Size,
		MTime:      e.MTime,
		Hash:       e.Hash,
		Attributes: e.Attributes,
		LastSynced: now,
	}
}
