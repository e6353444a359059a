// Command rahzom is the reference command-line driver for the rahzom
// synchronization engine: it scans, diffs, executes, and persists metadata
// for a single reconciliation cycle between two local roots, without a
// long-running daemon or remote transports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahzom-sync/rahzom/cmd"
	"github.com/rahzom-sync/rahzom/pkg/rahzom"
)

// rootMain is the entry point for the root command.
func rootMain(command *cobra.Command, arguments []string) error {
	return command.Help()
}

// rootCommand is the root command for the rahzom CLI.
var rootCommand = &cobra.Command{
	Use:          "rahzom",
	Short:        "Bidirectional folder synchronization",
	RunE:         rootMain,
	SilenceUsage: true,
}

var rootConfiguration struct {
	// help indicates whether to show help information and exit.
	help bool
}

func init() {
	rootCommand.AddCommand(syncCommand, versionCommand)

	flags := rootCommand.PersistentFlags()
	flags.SortFlags = false
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
	os.Exit(0)
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cmd.DisallowArguments,
	Run: cmd.Mainify(func(command *cobra.Command, arguments []string) error {
		fmt.Println(rahzom.Version)
		return nil
	}),
}
