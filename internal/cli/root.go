// Package cli implements the PhoneSync command-line interface.
// Built with cobra. One command is one run: no daemon, no watching,
// every copy is driven by an explicit invocation.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	configPath string
	dryRun     bool
)

// rootCmd is the base command for PhoneSync.
var rootCmd = &cobra.Command{
	Use:   "phonesync",
	Short: "Incremental media reconciliation and organization engine",
	Long: `PhoneSync reconciles phone media dumps against an organized target tree.

It provides:
  • Set-based source/target reconciliation (name|size inventory keys)
  • Date extraction from filenames, EXIF and modification times
  • Time-window routing of training videos into the wudan tree
  • Flexible-match deduplication tolerant of renamed target files
  • Incremental state so reruns only touch new files

State lives in two plain JSON files; delete them to force a full rerun.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Use alternate config file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without doing it")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(classifyCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile source folders against the target tree",
	Long: `Run one reconciliation pass.

Inventories source and target, computes the set difference, filters it
through the incremental state and copies what remains into date folders.
Individual file failures are logged and counted; they never abort the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSync(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and incremental state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunStatus()
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete incremental state (next sync reprocesses everything)",
	Long: `Delete processing_state.json and processed_files.json.

No target files are touched. The next sync rebuilds its view from the
target tree itself, so already-copied files are still skipped by
deduplication; reset only removes the date cutoff shortcut.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return RunReset(force)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <timestamp>",
	Short: "Explain how a timestamp would be routed",
	Long: `Evaluate the wudan routing rules for a timestamp.

Accepts "2006-01-02 15:04:05" or "2006-01-02T15:04:05" and prints the
epoch, weekday match and candidate time ranges behind the decision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunClassify(args[0])
	},
}

func init() {
	resetCmd.Flags().Bool("force", false, "Skip confirmation prompt")
}
