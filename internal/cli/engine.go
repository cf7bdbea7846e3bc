// Package cli provides the engine integration for the PhoneSync CLI.
// This file contains the core initialization and command implementations.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/phonesync/phonesync/internal/config"
	"github.com/phonesync/phonesync/internal/core"
)

// Engine holds the loaded configuration and the sync controller.
type Engine struct {
	Config     *config.Config
	Controller *core.SyncController
	Logger     *log.Logger
	ConfigFile string
}

// Global engine instance
var engine *Engine

// InitEngine loads the configuration and builds the controller.
func InitEngine() (*Engine, error) {
	path, err := config.Discover(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.Options.DryRun = true
	}

	logger := newLogger()
	controller, err := core.NewSyncController(cfg, core.NopVideoSink{}, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Config:     cfg,
		Controller: controller,
		Logger:     logger,
		ConfigFile: path,
	}, nil
}

// GetEngine returns the engine, initializing if needed.
func GetEngine() (*Engine, error) {
	if engine != nil {
		return engine, nil
	}

	var err error
	engine, err = InitEngine()
	return engine, err
}

// newLogger builds the run logger honoring --verbose and --quiet.
func newLogger() *log.Logger {
	out := io.Writer(os.Stderr)
	if quiet {
		out = io.Discard
	}
	flags := log.Ltime
	if verbose {
		flags = log.Ldate | log.Ltime | log.Lmicroseconds
	}
	return log.New(out, "", flags)
}

// ConfirmAction prompts the user for confirmation.
func ConfirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// --- Command Implementations ---

// RunSync executes one reconciliation pass.
func RunSync(ctx context.Context) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	if e.Config.Options.DryRun && !quiet {
		fmt.Println("[DRY-RUN] No files will be copied.")
	}

	stats, err := e.Controller.Run(ctx)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Println("Sync Complete")
		fmt.Println("=============")
		fmt.Printf("Source files:   %d\n", stats.SourceFiles)
		fmt.Printf("Target files:   %d\n", stats.TargetFiles)
		fmt.Printf("Candidates:     %d\n", stats.Candidates)
		fmt.Printf("Copied:         %d (%s)\n", stats.FilesCopied, formatBytes(stats.BytesCopied))
		fmt.Printf("Duplicates:     %d\n", stats.DuplicatesFound)
		fmt.Printf("Skipped:        %d (incremental)\n", stats.FilesSkipped)
		fmt.Printf("Failed:         %d\n", stats.FilesFailed)
		fmt.Printf("Wudan videos:   %d\n", stats.VideosRouted)
		fmt.Printf("Dirs created:   %d\n", stats.DirsCreated)
		fmt.Printf("Elapsed:        %.2fs\n", stats.Elapsed.Seconds())
		if verbose && stats.LastFile != "" {
			fmt.Printf("Last file:      %s\n", stats.LastFile)
		}
	}

	if stats.FilesFailed > 0 {
		return fmt.Errorf("%d files failed", stats.FilesFailed)
	}
	return nil
}

// RunStatus shows the effective configuration and persisted state.
func RunStatus() error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	roots := []string{e.Config.TargetPaths.Pictures, e.Config.TargetPaths.Videos, e.Config.TargetPaths.Wudan}
	e.Controller.State().Load(roots)
	state, processed := e.Controller.State().Snapshot()

	fmt.Println("PhoneSync Status")
	fmt.Println("================")
	fmt.Printf("Config:         %s\n", e.ConfigFile)
	fmt.Printf("Sources:        %s\n", strings.Join(e.Config.SourceFolders, ", "))
	fmt.Printf("Pictures root:  %s\n", e.Config.TargetPaths.Pictures)
	fmt.Printf("Videos root:    %s\n", e.Config.TargetPaths.Videos)
	fmt.Printf("Wudan root:     %s\n", e.Config.TargetPaths.Wudan)
	fmt.Printf("State dir:      %s\n", e.Config.StateDir)
	fmt.Println()
	fmt.Printf("State:          %s\n", e.Controller.State().Validity())
	if state.LastRunTimestamp != "" {
		fmt.Printf("Last run:       %s\n", state.LastRunTimestamp)
		fmt.Printf("Last date:      %s\n", state.LastProcessedDate)
		fmt.Printf("Last file:      %s\n", state.LastProcessedFile)
		fmt.Printf("Total handled:  %d files, %d videos\n", state.TotalFilesProcessed, state.TotalVideosAnalyzed)
	}
	fmt.Printf("Processed set:  %d entries\n", processed)

	if verbose {
		data, err := json.MarshalIndent(e.Config, "", "  ")
		if err == nil {
			fmt.Println("\nEffective configuration:")
			fmt.Println(string(data))
		}
	}
	return nil
}

// RunReset deletes the incremental state files.
func RunReset(force bool) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("[DRY-RUN] Would delete state files in %s\n", e.Config.StateDir)
		return nil
	}

	if !force {
		fmt.Println("The next sync will re-examine every source file.")
		if !ConfirmAction("Delete incremental state?") {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := e.Controller.State().Reset(); err != nil {
		return err
	}
	if !quiet {
		fmt.Println("✓ Incremental state cleared")
	}
	return nil
}

// RunClassify explains the routing decision for one timestamp.
func RunClassify(arg string) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}

	t, err := parseTimestamp(arg)
	if err != nil {
		return err
	}

	rules, err := core.NewRulesEngine(e.Config.Rules)
	if err != nil {
		return err
	}

	v := rules.Explain(t)
	fmt.Printf("Timestamp:  %s (%s)\n", v.Timestamp, v.DayName)
	fmt.Printf("Epoch:      %s\n", v.Epoch)
	fmt.Printf("Day match:  %v\n", v.DayMatches)
	if len(v.Ranges) > 0 {
		fmt.Printf("Ranges:     %s\n", strings.Join(v.Ranges, ", "))
	} else {
		fmt.Println("Ranges:     none for this weekday")
	}
	if v.InWindow {
		fmt.Println("Routing:    wudan")
	} else {
		fmt.Println("Routing:    videos")
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q (want 2006-01-02 15:04:05)", s)
}

// formatBytes formats bytes as human-readable.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
