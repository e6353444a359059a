package rzconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rahzom-sync/rahzom/pkg/syncmeta"
)

func TestLoadMissingFileYieldsZeroValueDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	defaults, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if defaults.Backup != nil || defaults.RetentionDays != nil {
		t.Fatalf("expected zero-value defaults, got %+v", defaults)
	}
}

func TestLoadParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rahzom.yaml")
	content := "backup: false\nbackupVersions: 2\nsoftDelete: false\nretentionDays: 10\nlogLevel: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	defaults, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if defaults.Backup == nil || *defaults.Backup != false {
		t.Fatalf("expected backup=false, got %+v", defaults.Backup)
	}
	if defaults.BackupVersions == nil || *defaults.BackupVersions != 2 {
		t.Fatalf("expected backupVersions=2, got %+v", defaults.BackupVersions)
	}
	if defaults.RetentionDays == nil || *defaults.RetentionDays != 10 {
		t.Fatalf("expected retentionDays=10, got %+v", defaults.RetentionDays)
	}
	if defaults.LogLevel != "debug" {
		t.Fatalf("expected logLevel=debug, got %q", defaults.LogLevel)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rahzom.yaml")
	if err := os.WriteFile(path, []byte("backup: [this is not a bool"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

func TestApplyExecutorConfigOverlaysOnlySetFields(t *testing.T) {
	backup := false
	defaults := &Defaults{Backup: &backup}

	config := defaults.ApplyExecutorConfig()
	if config.BackupEnabled {
		t.Fatalf("expected backup overridden to false")
	}
	if config.BackupVersions == 0 {
		t.Fatalf("expected unset BackupVersions to retain its default, got 0")
	}
}

func TestApplyExecutorConfigNilReceiverReturnsDefault(t *testing.T) {
	var defaults *Defaults
	config := defaults.ApplyExecutorConfig()
	if config.BackupVersions == 0 {
		t.Fatalf("expected default config from nil receiver")
	}
}

func TestRetentionDaysOrDefault(t *testing.T) {
	var nilDefaults *Defaults
	if got := nilDefaults.RetentionDaysOrDefault(); got != syncmeta.DefaultRetentionDays {
		t.Fatalf("expected default retention for nil receiver, got %d", got)
	}

	days := 30
	defaults := &Defaults{RetentionDays: &days}
	if got := defaults.RetentionDaysOrDefault(); got != 30 {
		t.Fatalf("expected overridden retention of 30, got %d", got)
	}
}

func TestGlobalPathJoinsHomeDirectory(t *testing.T) {
	path, err := GlobalPath()
	if err != nil {
		t.Fatalf("GlobalPath: %v", err)
	}
	if filepath.Base(path) != ".rahzom.yaml" {
		t.Fatalf("expected filename .rahzom.yaml, got %q", path)
	}
}
