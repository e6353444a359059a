package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rahzom-sync/rahzom/cmd"
	"github.com/rahzom-sync/rahzom/pkg/engine"
	"github.com/rahzom-sync/rahzom/pkg/executor"
	"github.com/rahzom-sync/rahzom/pkg/profile"
	"github.com/rahzom-sync/rahzom/pkg/rzconfig"
	"github.com/rahzom-sync/rahzom/pkg/syncdata"
	"github.com/rahzom-sync/rahzom/pkg/synclog"
)

// syncConfiguration stores configuration for the sync command.
var syncConfiguration struct {
	// help indicates whether to show help information and exit.
	help bool
	// logLevel overrides the global configuration's log level.
	logLevel string
	// backup overrides the global configuration's backup setting.
	backup bool
	// noBackup disables backups regardless of configuration.
	noBackup bool
	// backupVersions overrides the number of retained backups.
	backupVersions int
	// hardDelete disables soft deletion (trashing) of removed files.
	hardDelete bool
	// retentionDays overrides the tombstone retention window.
	retentionDays int
	// profilePath, if set, captures a CPU and heap profile under this name.
	profilePath string
}

// syncMain is the entry point for the sync command.
func syncMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return fmt.Errorf("exactly two root paths are required (left, right)")
	}
	left, right := arguments[0], arguments[1]

	if syncConfiguration.profilePath != "" {
		p, err := profile.New(syncConfiguration.profilePath)
		if err != nil {
			return fmt.Errorf("unable to start profiling: %w", err)
		}
		defer p.Finalize()
	}

	globalPath, err := rzconfig.GlobalPath()
	if err != nil {
		return fmt.Errorf("unable to determine global configuration path: %w", err)
	}
	defaults, err := rzconfig.Load(globalPath)
	if err != nil {
		return fmt.Errorf("unable to load global configuration: %w", err)
	}

	level := synclog.LevelInfo
	levelName := defaults.LogLevel
	if syncConfiguration.logLevel != "" {
		levelName = syncConfiguration.logLevel
	}
	if levelName != "" {
		parsed, ok := synclog.NameToLevel(levelName)
		if !ok {
			return fmt.Errorf("invalid log level %q", levelName)
		}
		level = parsed
	}
	logger := synclog.NewRoot(level)

	executorConfig := defaults.ApplyExecutorConfig()
	if command.Flags().Changed("backup") {
		executorConfig.BackupEnabled = syncConfiguration.backup
	}
	if syncConfiguration.noBackup {
		executorConfig.BackupEnabled = false
	}
	if command.Flags().Changed("backup-versions") {
		executorConfig.BackupVersions = syncConfiguration.backupVersions
	}
	if syncConfiguration.hardDelete {
		executorConfig.SoftDelete = false
	}

	retentionDays := defaults.RetentionDaysOrDefault()
	if command.Flags().Changed("retention-days") {
		retentionDays = syncConfiguration.retentionDays
	}

	var cancelled int32
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmd.TerminationSignals...)
	defer signal.Stop(signals)
	go func() {
		if _, ok := <-signals; ok {
			atomic.StoreInt32(&cancelled, 1)
		}
	}()

	printer := &cmd.StatusLinePrinter{UseStandardError: true}
	reporter := &progressReporter{printer: printer}

	result, err := engine.RunCycle(engine.Config{
		LeftRoot:       left,
		RightRoot:      right,
		ExecutorConfig: executorConfig,
		RetentionDays:  retentionDays,
		Logger:         logger,
		Progress:       reporter,
		Cancelled: func() bool {
			return atomic.LoadInt32(&cancelled) != 0
		},
	})
	printer.BreakIfNonEmpty()
	if err != nil {
		return err
	}

	summarize(result.Execution)

	if len(result.Execution.Failed) > 0 {
		return fmt.Errorf("%d action(s) failed", len(result.Execution.Failed))
	}
	return nil
}

// progressReporter adapts the executor's ProgressCallback to a single
// overwriting status line, so the terminal shows live progress without a
// line printed per file.
type progressReporter struct {
	printer *cmd.StatusLinePrinter
}

func (r *progressReporter) OnProgress(current, total int, path string) {
	r.printer.Print(fmt.Sprintf("[%d/%d] %s", current, total, path))
}

func (r *progressReporter) OnFileComplete(action syncdata.SyncAction, success bool) {
	if success {
		return
	}
	r.printer.BreakIfNonEmpty()
	fmt.Fprintln(color.Error, color.RedString("failed:"), action.PathOf())
}

func summarize(result *syncdata.ExecutionResult) {
	fmt.Printf(
		"%s %d completed (%s), %d skipped, %d failed\n",
		color.GreenString("sync:"),
		len(result.Completed),
		humanize.Bytes(result.TotalBytesTransferred()),
		len(result.Skipped),
		len(result.Failed),
	)
	for _, f := range result.Failed {
		retry := ""
		if f.Kind.IsRecoverable() {
			retry = " (retryable)"
		}
		fmt.Printf("  %s %s: %v [%s]%s\n", color.RedString("failed"), f.Action.PathOf(), f.Err, f.Kind, retry)
	}
}

// syncCommand is the sync command.
var syncCommand = &cobra.Command{
	Use:          "sync <left> <right>",
	Short:        "Run one reconciliation cycle between two roots",
	Args:         cobra.ExactArgs(2),
	RunE:         syncMain,
	SilenceUsage: true,
}

func init() {
	flags := syncCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&syncConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVar(&syncConfiguration.logLevel, "log-level", "", "Set the log level (disabled|error|warn|info|debug|trace)")
	flags.BoolVar(&syncConfiguration.backup, "backup", true, "Back up overwritten destination files before replacing them")
	flags.BoolVar(&syncConfiguration.noBackup, "no-backup", false, "Disable destination backups")
	flags.IntVar(&syncConfiguration.backupVersions, "backup-versions", executor.DefaultConfig().BackupVersions, "Number of backups to retain per file")
	flags.BoolVar(&syncConfiguration.hardDelete, "hard-delete", false, "Delete files permanently instead of moving them to trash")
	flags.IntVar(&syncConfiguration.retentionDays, "retention-days", 0, "Tombstone retention window in days")
	flags.StringVar(&syncConfiguration.profilePath, "profile", "", "Capture CPU/heap profiles under this name")
}
