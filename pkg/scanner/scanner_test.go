package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahzom-sync/rahzom/pkg/exclusions"
)

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(result.Entries))
	}
}

func TestScanFlatDirectory(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"), "hello")
	mustWriteFile(t, filepath.Join(root, "b.txt"), "world")

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Path != "a.txt" || result.Entries[1].Path != "b.txt" {
		t.Fatalf("entries not sorted: %+v", result.Entries)
	}
}

func TestScanNestedDirectory(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "sub", "nested.txt"), "x")

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var dirs, files int
	for _, e := range result.Entries {
		if e.IsDir {
			dirs++
		} else {
			files++
		}
	}
	if dirs != 1 || files != 1 {
		t.Fatalf("expected 1 dir and 1 file, got %d dirs, %d files", dirs, files)
	}
}

func TestScanSkipsMetadataDirectory(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, ".rahzom", "state.json"), "{}")
	mustWriteFile(t, filepath.Join(root, "keep.txt"), "x")

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, e := range result.Entries {
		if e.Path == ".rahzom" || filepath.Base(filepath.Dir(e.Path)) == ".rahzom" {
			t.Fatalf("expected .rahzom to be skipped, found %q", e.Path)
		}
	}
	if len(result.Entries) != 1 || result.Entries[0].Path != "keep.txt" {
		t.Fatalf("expected only keep.txt, got %+v", result.Entries)
	}
}

func TestScanReportsCorrectSize(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "sized.txt"), "0123456789")

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Size != 10 {
		t.Fatalf("expected size 10, got %+v", result.Entries)
	}
}

func TestScanExclusionsFilterFilesAndDirectories(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "keep.txt"), "x")
	mustWriteFile(t, filepath.Join(root, "skip.tmp"), "x")
	mustWriteFile(t, filepath.Join(root, "node_modules", "lodash", "index.js"), "x")

	excl, err := exclusions.FromPatterns([]string{"*.tmp", "node_modules/"})
	if err != nil {
		t.Fatalf("FromPatterns: %v", err)
	}

	result, err := Scan(root, excl)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	paths := map[string]bool{}
	for _, e := range result.Entries {
		paths[e.Path] = true
	}
	if !paths["keep.txt"] {
		t.Fatalf("expected keep.txt present, got %+v", result.Entries)
	}
	if paths["skip.tmp"] {
		t.Fatalf("expected skip.tmp excluded, got %+v", result.Entries)
	}
	for p := range paths {
		if filepath.ToSlash(p) == "node_modules" || filepath.Dir(filepath.ToSlash(p)) == "node_modules/lodash" {
			t.Fatalf("expected node_modules subtree excluded, found %q", p)
		}
	}
}

func TestScanSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	mustWriteFile(t, target, "x")
	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	for _, e := range result.Entries {
		if e.Path == "link.txt" {
			t.Fatalf("expected symlink to be skipped, found in entries")
		}
	}

	found := false
	for _, s := range result.Skipped {
		if filepath.Base(s.Path) == "link.txt" && s.Reason == "Symlink" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected link.txt recorded as skipped symlink, got %+v", result.Skipped)
	}
}

func TestScanBrokenSymlinkSkipped(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "broken.txt")
	if err := os.Symlink(filepath.Join(root, "does-not-exist"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, e := range result.Entries {
		if e.Path == "broken.txt" {
			t.Fatalf("expected broken symlink to be skipped")
		}
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "content.txt")
	mustWriteFile(t, path, "the quick brown fox")

	h1, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	h2, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %q and %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 digest, got %d chars", len(h1))
	}
}

func TestScanMTimeCaptured(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "stamped.txt")
	mustWriteFile(t, path, "x")

	future := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	result, err := Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry")
	}
	if result.Entries[0].MTime.Unix() != future.Unix() {
		t.Fatalf("expected mtime %v, got %v", future, result.Entries[0].MTime)
	}
}
