// Package rzconfig loads optional global CLI defaults from a YAML file,
// trimmed to the handful of settings the core sync engine actually exposes
// (backup behavior, tombstone retention, log level). Per-pair settings
// (which two roots to sync, exclusion overrides) are the caller's
// responsibility and are deliberately not modeled here.
package rzconfig

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rahzom-sync/rahzom/pkg/executor"
	"github.com/rahzom-sync/rahzom/pkg/syncmeta"
)

// Defaults holds the subset of engine behavior a user can override globally
// instead of repeating on every invocation.
type Defaults struct {
	// Backup mirrors executor.Config.BackupEnabled.
	Backup *bool `yaml:"backup"`
	// BackupVersions mirrors executor.Config.BackupVersions.
	BackupVersions *int `yaml:"backupVersions"`
	// SoftDelete mirrors executor.Config.SoftDelete.
	SoftDelete *bool `yaml:"softDelete"`
	// RetentionDays mirrors syncmeta's tombstone retention window.
	RetentionDays *int `yaml:"retentionDays"`
	// LogLevel is one of synclog's level names ("error", "info", ...).
	LogLevel string `yaml:"logLevel"`
}

// GlobalPath returns the path of the optional global configuration file,
// "$HOME/.rahzom.yaml". It does not verify that the file exists.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to compute path to home directory")
	}
	return filepath.Join(home, ".rahzom.yaml"), nil
}

// Load reads the global configuration file at path. A missing file yields a
// zero-value Defaults and no error, mirroring the metadata store's treatment
// of an absent state.json.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Defaults{}, nil
		}
		return nil, errors.Wrap(err, "unable to read configuration file")
	}
	result := &Defaults{}
	if err := yaml.Unmarshal(data, result); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration file")
	}
	return result, nil
}

// ApplyExecutorConfig overlays non-nil fields onto an executor.Config,
// starting from executor.DefaultConfig().
func (d *Defaults) ApplyExecutorConfig() executor.Config {
	config := executor.DefaultConfig()
	if d == nil {
		return config
	}
	if d.Backup != nil {
		config.BackupEnabled = *d.Backup
	}
	if d.BackupVersions != nil {
		config.BackupVersions = *d.BackupVersions
	}
	if d.SoftDelete != nil {
		config.SoftDelete = *d.SoftDelete
	}
	return config
}

// RetentionDaysOrDefault returns the configured retention window, or
// syncmeta.DefaultRetentionDays if unset.
func (d *Defaults) RetentionDaysOrDefault() int {
	if d != nil && d.RetentionDays != nil {
		return *d.RetentionDays
	}
	return syncmeta.DefaultRetentionDays
}
