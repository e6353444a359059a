// Package differ reconciles two independent scans against their persisted
// metadata and produces an ordered plan of sync actions, implementing the
// disposition table that is this engine's core decision logic: a three-way
// comparison (current-left, current-right, last-synced-state) over two
// already-completed scans.
package differ

import (
	"sort"
	"strings"
	"time"

	"github.com/rahzom-sync/rahzom/pkg/scanner"
	"github.com/rahzom-sync/rahzom/pkg/syncdata"
	"github.com/rahzom-sync/rahzom/pkg/syncmeta"
)

// fat32Tolerance is the mtime comparison slack, wide enough to absorb the
// two-second rounding FAT32 (and some network filesystems) introduce.
const fat32Tolerance = 2 * time.Second

// Plan is an ordered set of actions along with summary counters derived
// solely from it.
type Plan struct {
	Actions              []syncdata.SyncAction
	TotalBytesToTransfer uint64
	FilesToCopy          int
	FilesToDelete        int
	Conflicts            int
}

// Diff compares a left and right scan against each side's persisted
// metadata and returns an execution-ordered plan.
func Diff(left, right *scanner.Result, leftMeta, rightMeta *syncmeta.SyncMetadata) *Plan {
	leftEntries := entriesByPath(left.Entries)
	rightEntries := entriesByPath(right.Entries)

	conflictActions, conflictCaseKeys := detectCaseConflicts(leftEntries, rightEntries)

	actions := make([]syncdata.SyncAction, 0, len(leftEntries)+len(rightEntries))
	actions = append(actions, conflictActions...)

	for path, lEntry := range leftEntries {
		if conflictCaseKeys[strings.ToLower(path)] {
			continue
		}
		if rEntry, ok := rightEntries[path]; ok {
			actions = append(actions, determineBothPresent(path, lEntry, rEntry, leftMeta.FindFile(path), rightMeta.FindFile(path)))
			continue
		}
		actions = append(actions, determineLeftOnly(path, lEntry, rightMeta.FindFile(path), rightMeta.FindDeleted(path)))
	}

	for path, rEntry := range rightEntries {
		if conflictCaseKeys[strings.ToLower(path)] {
			continue
		}
		if _, ok := leftEntries[path]; ok {
			continue
		}
		actions = append(actions, determineRightOnly(path, rEntry, leftMeta.FindFile(path), leftMeta.FindDeleted(path)))
	}

	sortActions(actions)
	return buildPlan(actions)
}

func entriesByPath(entries []syncdata.FileEntry) map[string]syncdata.FileEntry {
	out := make(map[string]syncdata.FileEntry, len(entries))
	for _, e := range entries {
		out[e.Path] = e
	}
	return out
}

// detectCaseConflicts finds paths that collide case-insensitively with
// another path, either within one side or across sides. Within one side,
// every colliding spelling is a conflict (they all genuinely clash with
// each other there). Across sides, only the left spelling is kept as the
// single reported conflict and the right side's differently-cased sibling
// is dropped from the plan entirely — matching S6 ("a single
// Conflict{reason=CaseConflict} for the path") and the original
// implementation's `detect_case_conflicts`, which inserts only the left
// path for a cross-side collision. The returned set is keyed by lowercased
// path so callers can exclude every spelling that participated (including
// the dropped sibling) from ordinary per-path processing.
func detectCaseConflicts(left, right map[string]syncdata.FileEntry) ([]syncdata.SyncAction, map[string]bool) {
	leftByCase := groupByCase(left)
	rightByCase := groupByCase(right)

	conflictPaths := map[string]bool{}
	for _, paths := range leftByCase {
		if len(paths) > 1 {
			for _, p := range paths {
				conflictPaths[p] = true
			}
		}
	}
	for _, paths := range rightByCase {
		if len(paths) > 1 {
			for _, p := range paths {
				conflictPaths[p] = true
			}
		}
	}
	for key, leftPaths := range leftByCase {
		rightPaths, ok := rightByCase[key]
		if !ok {
			continue
		}
		for _, lp := range leftPaths {
			for _, rp := range rightPaths {
				if lp != rp {
					conflictPaths[lp] = true
				}
			}
		}
	}

	// excludeKeys covers every lowercased path touched by a conflict,
	// including a cross-side sibling spelling that was dropped rather than
	// reported, so it too is excluded from ordinary per-path processing.
	excludeKeys := map[string]bool{}
	for path := range conflictPaths {
		excludeKeys[strings.ToLower(path)] = true
	}

	// Sort for deterministic output before the final plan-wide sort runs.
	sortedPaths := make([]string, 0, len(conflictPaths))
	for path := range conflictPaths {
		sortedPaths = append(sortedPaths, path)
	}
	sort.Strings(sortedPaths)

	actions := make([]syncdata.SyncAction, 0, len(sortedPaths))
	for _, path := range sortedPaths {
		action := syncdata.SyncAction{
			Kind:           syncdata.ActionConflict,
			Path:           path,
			ConflictReason: syncdata.ConflictCaseConflict,
		}
		if entry, ok := left[path]; ok {
			action.Left = fileInfoOf(entry)
		}
		if entry, ok := right[path]; ok {
			action.Right = fileInfoOf(entry)
		} else if entry, ok := findByCase(right, path); ok {
			// The colliding sibling spelling lives on the other side under a
			// different case and was dropped from the plan; still surface its
			// info on the one conflict action that represents the collision.
			action.Right = fileInfoOf(entry)
		}
		actions = append(actions, action)
	}
	return actions, excludeKeys
}

// groupByCase buckets entries by their lowercased path, so multiple
// differently-cased spellings of what is effectively the same path land in
// the same group.
func groupByCase(entries map[string]syncdata.FileEntry) map[string][]string {
	groups := map[string][]string{}
	for path := range entries {
		key := strings.ToLower(path)
		groups[key] = append(groups[key], path)
	}
	return groups
}

// findByCase looks up an entry whose path matches target case-insensitively
// but not exactly.
func findByCase(entries map[string]syncdata.FileEntry, target string) (syncdata.FileEntry, bool) {
	key := strings.ToLower(target)
	for path, entry := range entries {
		if path != target && strings.ToLower(path) == key {
			return entry, true
		}
	}
	return syncdata.FileEntry{}, false
}

func fileInfoOf(entry syncdata.FileEntry) *syncdata.FileInfo {
	return &syncdata.FileInfo{Size: entry.Size, MTime: entry.MTime, Hash: entry.Hash}
}

// filesEqual reports whether two present entries are already in sync: equal
// size, mtime within FAT32 tolerance, and (when both carry a hash) equal
// hashes.
func filesEqual(a, b syncdata.FileEntry) bool {
	if a.Size != b.Size {
		return false
	}
	if absDuration(a.MTime.Sub(b.MTime)) > fat32Tolerance {
		return false
	}
	if a.Hash != nil && b.Hash != nil && *a.Hash != *b.Hash {
		return false
	}
	return true
}

// sideChanged reports whether current differs from its side's last recorded
// synced state. A missing prior state is always treated as a change — there
// is nothing to compare against, so the side cannot be assumed unchanged.
func sideChanged(current syncdata.FileEntry, prev *syncdata.FileState) bool {
	if prev == nil {
		return true
	}
	if current.Size != prev.Size {
		return true
	}
	if absDuration(current.MTime.Sub(prev.MTime)) > fat32Tolerance {
		return true
	}
	if current.Hash != nil && prev.Hash != nil && *current.Hash != *prev.Hash {
		return true
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func determineBothPresent(path string, left, right syncdata.FileEntry, leftPrev, rightPrev *syncdata.FileState) syncdata.SyncAction {
	if left.IsDir && right.IsDir {
		return syncdata.SyncAction{Kind: syncdata.ActionSkip, Path: path, SkipReason: "already synced"}
	}
	if filesEqual(left, right) {
		return syncdata.SyncAction{Kind: syncdata.ActionSkip, Path: path, SkipReason: "identical"}
	}

	leftChanged := sideChanged(left, leftPrev)
	rightChanged := sideChanged(right, rightPrev)

	switch {
	case leftChanged && rightChanged:
		return syncdata.SyncAction{
			Kind:           syncdata.ActionConflict,
			Path:           path,
			ConflictReason: syncdata.ConflictBothModified,
			Left:           fileInfoOf(left),
			Right:          fileInfoOf(right),
		}
	case leftChanged:
		return syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: path, Size: left.Size}
	case rightChanged:
		return syncdata.SyncAction{Kind: syncdata.ActionCopyToLeft, Path: path, Size: right.Size}
	default:
		return syncdata.SyncAction{Kind: syncdata.ActionSkip, Path: path, SkipReason: "no changes detected"}
	}
}

func determineLeftOnly(path string, left syncdata.FileEntry, rightPrev *syncdata.FileState, rightDeleted *syncdata.DeletedFile) syncdata.SyncAction {
	if left.IsDir {
		return syncdata.SyncAction{Kind: syncdata.ActionCreateDirRight, Path: path}
	}

	if rightDeleted != nil {
		return syncdata.SyncAction{
			Kind:           syncdata.ActionConflict,
			Path:           path,
			ConflictReason: syncdata.ConflictExistsVsDeleted,
			Left:           fileInfoOf(left),
		}
	}

	if rightPrev != nil {
		if sideChanged(left, rightPrev) {
			return syncdata.SyncAction{
				Kind:           syncdata.ActionConflict,
				Path:           path,
				ConflictReason: syncdata.ConflictModifiedAndDeleted,
				Left:           fileInfoOf(left),
			}
		}
		return syncdata.SyncAction{Kind: syncdata.ActionDeleteLeft, Path: path}
	}

	return syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: path, Size: left.Size}
}

func determineRightOnly(path string, right syncdata.FileEntry, leftPrev *syncdata.FileState, leftDeleted *syncdata.DeletedFile) syncdata.SyncAction {
	if right.IsDir {
		return syncdata.SyncAction{Kind: syncdata.ActionCreateDirLeft, Path: path}
	}

	if leftDeleted != nil {
		return syncdata.SyncAction{
			Kind:           syncdata.ActionConflict,
			Path:           path,
			ConflictReason: syncdata.ConflictExistsVsDeleted,
			Right:          fileInfoOf(right),
		}
	}

	if leftPrev != nil {
		if sideChanged(right, leftPrev) {
			return syncdata.SyncAction{
				Kind:           syncdata.ActionConflict,
				Path:           path,
				ConflictReason: syncdata.ConflictModifiedAndDeleted,
				Right:          fileInfoOf(right),
			}
		}
		return syncdata.SyncAction{Kind: syncdata.ActionDeleteRight, Path: path}
	}

	return syncdata.SyncAction{Kind: syncdata.ActionCopyToLeft, Path: path, Size: right.Size}
}

// actionClass buckets an action kind into its execution phase: directory
// creation first, then copies, then deletes, then skips/conflicts last.
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

// sortActions orders a plan so that directories are created shallowest
// first, copies proceed shallowest first, and deletes proceed deepest
// first (so a directory is always empty by the time its own delete runs).
// Skips and conflicts trail the plan; nothing downstream depends on them.
// Map iteration (building the unordered action list) is the only source of
// nondeterminism left once class and depth are equal, so a final
// lexicographic path tiebreak makes the ordering total, satisfying the
// determinism invariant regardless of map iteration order.
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

func buildPlan(actions []syncdata.SyncAction) *Plan {
	plan := &Plan{Actions: actions}
	for _, a := range actions {
		switch a.Kind {
		case syncdata.ActionCopyToRight, syncdata.ActionCopyToLeft:
			plan.FilesToCopy++
			plan.TotalBytesToTransfer += a.Size
		case syncdata.ActionDeleteRight, syncdata.ActionDeleteLeft:
			plan.FilesToDelete++
		case syncdata.ActionConflict:
			plan.Conflicts++
		}
	}
	return plan
}
