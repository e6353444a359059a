package executor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func snapshotFor(t *testing.T, path string) syncdata.FileSnapshot {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	return syncdata.FileSnapshot{Size: uint64(info.Size()), MTime: info.ModTime()}
}

func TestExecuteSingleCopy(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	src := filepath.Join(left, "file.txt")
	mustWriteFile(t, src, "hello world")

	snap := snapshotFor(t, src)
	action := syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: "file.txt", Size: uint64(len("hello world"))}

	ex := New(left, right, DefaultConfig())
	snapshots := map[string]syncdata.FileSnapshot{SnapshotKey("left", "file.txt"): snap}
	result, err := ex.Execute([]syncdata.SyncAction{action}, snapshots, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Completed) != 1 {
		t.Fatalf("expected 1 completed action, got %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(right, "file.txt"))
	if err != nil {
		t.Fatalf("read copied file: %v", err)
	}
	if string(content) != "hello world" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestExecutePreservesMTime(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	src := filepath.Join(left, "file.txt")
	mustWriteFile(t, src, "x")

	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	snap := snapshotFor(t, src)
	action := syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: "file.txt", Size: 1}

	ex := New(left, right, DefaultConfig())
	snapshots := map[string]syncdata.FileSnapshot{SnapshotKey("left", "file.txt"): snap}
	if _, err := ex.Execute([]syncdata.SyncAction{action}, snapshots, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	dstInfo, err := os.Stat(filepath.Join(right, "file.txt"))
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if diff := dstInfo.ModTime().Sub(past); diff > 2*time.Second || diff < -2*time.Second {
		t.Fatalf("expected mtime within FAT32 tolerance of %v, got %v", past, dstInfo.ModTime())
	}
}

func TestExecuteSoftDeleteMovesToTrash(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	mustWriteFile(t, filepath.Join(left, "doomed.txt"), "x")

	ex := New(left, right, DefaultConfig())
	action := syncdata.SyncAction{Kind: syncdata.ActionDeleteLeft, Path: "doomed.txt"}
	result, err := ex.Execute([]syncdata.SyncAction{action}, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Completed) != 1 {
		t.Fatalf("expected 1 completed deletion, got %+v", result)
	}

	if _, err := os.Stat(filepath.Join(left, "doomed.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected original removed")
	}

	trashEntries, err := os.ReadDir(filepath.Join(left, ".rahzom", "_trash"))
	if err != nil {
		t.Fatalf("read trash dir: %v", err)
	}
	if len(trashEntries) != 1 {
		t.Fatalf("expected 1 trashed file, got %d", len(trashEntries))
	}
}

func TestExecuteHardDeleteNoTrash(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	mustWriteFile(t, filepath.Join(left, "doomed.txt"), "x")

	cfg := DefaultConfig()
	cfg.SoftDelete = false
	ex := New(left, right, cfg)
	action := syncdata.SyncAction{Kind: syncdata.ActionDeleteLeft, Path: "doomed.txt"}
	if _, err := ex.Execute([]syncdata.SyncAction{action}, nil, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(filepath.Join(left, ".rahzom", "_trash")); !os.IsNotExist(err) {
		t.Fatalf("expected no trash directory created")
	}
}

func TestExecuteBackupBeforeOverwrite(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	src := filepath.Join(left, "file.txt")
	mustWriteFile(t, src, "new content")
	mustWriteFile(t, filepath.Join(right, "file.txt"), "old content")

	snap := snapshotFor(t, src)
	action := syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: "file.txt", Size: uint64(len("new content"))}

	ex := New(left, right, DefaultConfig())
	snapshots := map[string]syncdata.FileSnapshot{SnapshotKey("left", "file.txt"): snap}
	if _, err := ex.Execute([]syncdata.SyncAction{action}, snapshots, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	backupEntries, err := os.ReadDir(filepath.Join(right, ".rahzom", "_backup"))
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(backupEntries) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(backupEntries))
	}
}

func TestExecuteBackupRotationKeepsConfiguredVersions(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	cfg := DefaultConfig()
	cfg.BackupVersions = 3
	ex := New(left, right, cfg)

	for i := 0; i < 5; i++ {
		mustWriteFile(t, filepath.Join(left, "file.txt"), "version")
		snap := snapshotFor(t, filepath.Join(left, "file.txt"))
		mustWriteFile(t, filepath.Join(right, "file.txt"), "previous")

		action := syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: "file.txt", Size: uint64(len("version"))}
		snapshots := map[string]syncdata.FileSnapshot{SnapshotKey("left", "file.txt"): snap}
		if _, err := ex.Execute([]syncdata.SyncAction{action}, snapshots, nil); err != nil {
			t.Fatalf("Execute iteration %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := os.ReadDir(filepath.Join(right, ".rahzom", "_backup"))
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected exactly 3 backups retained, got %d", len(entries))
	}
}

func TestExecuteDirectoryCreation(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	ex := New(left, right, DefaultConfig())

	action := syncdata.SyncAction{Kind: syncdata.ActionCreateDirRight, Path: "newdir"}
	if _, err := ex.Execute([]syncdata.SyncAction{action}, nil, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	info, err := os.Stat(filepath.Join(right, "newdir"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory created, got err=%v info=%v", err, info)
	}
}

func TestExecuteOrderIndependentOfInputOrder(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()

	mustWriteFile(t, filepath.Join(left, "dir", "file.txt"), "content")
	mustWriteFile(t, filepath.Join(left, "stale.txt"), "x")
	snap := snapshotFor(t, filepath.Join(left, "dir", "file.txt"))

	// Deliberately supplied out of dependency order: delete, then copy
	// (whose parent dir doesn't exist yet), then the directory creation.
	actions := []syncdata.SyncAction{
		{Kind: syncdata.ActionDeleteLeft, Path: "stale.txt"},
		{Kind: syncdata.ActionCopyToRight, Path: "dir/file.txt", Size: uint64(len("content"))},
		{Kind: syncdata.ActionCreateDirRight, Path: "dir"},
	}
	snapshots := map[string]syncdata.FileSnapshot{SnapshotKey("left", "dir/file.txt"): snap}

	ex := New(left, right, DefaultConfig())
	result, err := ex.Execute(actions, snapshots, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Completed) != 3 {
		t.Fatalf("expected all 3 actions to succeed, got %+v", result)
	}
}

func TestExecuteSkipsFileChangedDuringSync(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	src := filepath.Join(left, "file.txt")
	mustWriteFile(t, src, "original")

	staleSnapshot := syncdata.FileSnapshot{Size: 999, MTime: time.Now().Add(-time.Hour)}
	action := syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: "file.txt", Size: 8}

	ex := New(left, right, DefaultConfig())
	snapshots := map[string]syncdata.FileSnapshot{SnapshotKey("left", "file.txt"): staleSnapshot}
	result, err := ex.Execute([]syncdata.SyncAction{action}, snapshots, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected the action to be skipped, got %+v", result)
	}
	if _, err := os.Stat(filepath.Join(right, "file.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected destination to remain untouched")
	}
}

func TestExecuteCopyProceedsWithoutSnapshot(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	mustWriteFile(t, filepath.Join(left, "file.txt"), "hello world")

	action := syncdata.SyncAction{Kind: syncdata.ActionCopyToRight, Path: "file.txt", Size: uint64(len("hello world"))}

	ex := New(left, right, DefaultConfig())
	result, err := ex.Execute([]syncdata.SyncAction{action}, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Completed) != 1 {
		t.Fatalf("expected the copy to complete despite no snapshot being recorded, got %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(right, "file.txt"))
	if err != nil {
		t.Fatalf("read copied file: %v", err)
	}
	if string(content) != "hello world" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestExecuteDeleteOfAlreadyAbsentTargetIsNoop(t *testing.T) {
	left := t.TempDir()
	right := t.TempDir()
	ex := New(left, right, DefaultConfig())

	action := syncdata.SyncAction{Kind: syncdata.ActionDeleteLeft, Path: "never-existed.txt"}
	result, err := ex.Execute([]syncdata.SyncAction{action}, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Completed) != 1 || result.Completed[0].BytesTransferred != 0 {
		t.Fatalf("expected a no-op success, got %+v", result)
	}
}

func TestCheckDiskSpaceReportsSufficiency(t *testing.T) {
	dir := t.TempDir()
	info, err := CheckDiskSpace(dir, 1)
	if err != nil {
		t.Fatalf("CheckDiskSpace: %v", err)
	}
	if !info.Sufficient {
		t.Fatalf("expected 1 byte to be available: %+v", info)
	}
}
