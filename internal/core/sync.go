package core

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/phonesync/phonesync/internal/config"
	"github.com/phonesync/phonesync/internal/model"
)

// VideoSink receives a notification for every video placed in the target
// tree. Downstream analysis pipelines implement it; the engine only
// guarantees the file at finalPath is complete when the call is made.
type VideoSink interface {
	VideoOrganized(sourcePath, finalPath string, recordDate time.Time)
}

// NopVideoSink discards notifications.
type NopVideoSink struct{}

func (NopVideoSink) VideoOrganized(string, string, time.Time) {}

// SyncController owns one reconciliation run: inventory both sides,
// diff, filter through incremental state, then organize the remainder
// with a bounded worker pool.
type SyncController struct {
	cfg       *config.Config
	scanner   *Scanner
	dedup     *DedupManager
	state     *StateManager
	organizer *Organizer
	logger    *log.Logger
}

// NewSyncController builds the full engine from configuration. Rule
// validation failures surface here, before any filesystem work.
func NewSyncController(cfg *config.Config, sink VideoSink, logger *log.Logger) (*SyncController, error) {
	rules, err := NewRulesEngine(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid wudan rules: %w", err)
	}

	scanner := NewScanner(cfg.FileExtensions, logger)
	dedup := NewDedupManager(cfg.Options, logger)
	resolver := NewPathResolver(cfg.TargetPaths, rules, cfg.Options)
	state := NewStateManager(cfg.StateDir, cfg.Options.EnableIncremental, logger)
	organizer := NewOrganizer(resolver, dedup, sink, cfg.Options.DryRun, logger)

	return &SyncController{
		cfg:       cfg,
		scanner:   scanner,
		dedup:     dedup,
		state:     state,
		organizer: organizer,
		logger:    logger,
	}, nil
}

// State exposes the state manager for the status and reset commands.
func (c *SyncController) State() *StateManager {
	return c.state
}

// Run executes one reconciliation pass and returns its statistics.
// Individual file failures are counted, logged and do not abort the run;
// ctx cancellation stops scheduling new files.
func (c *SyncController) Run(ctx context.Context) (*model.RunStats, error) {
	start := time.Now()
	stats := &model.RunStats{}
	roots := c.targetRoots()

	// Source and target inventories are independent walks; overlap them.
	var (
		wg        sync.WaitGroup
		sourceInv map[model.InventoryKey]struct{}
		targetInv map[model.InventoryKey]struct{}
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceInv = c.scanner.BuildInventory(c.cfg.SourceFolders)
	}()
	go func() {
		defer wg.Done()
		targetInv = c.scanner.BuildInventory(roots)
		c.dedup.BuildCache(roots)
		c.state.Load(roots)
	}()
	wg.Wait()

	stats.SourceFiles = len(sourceInv)
	stats.TargetFiles = len(targetInv)
	stats.StateBranch = c.state.Validity()

	missing := Diff(sourceInv, targetInv)
	stats.Candidates = len(missing)
	c.logger.Printf("inventory: %d source, %d target, %d candidates (state: %s)",
		stats.SourceFiles, stats.TargetFiles, stats.Candidates, stats.StateBranch)

	if len(missing) == 0 {
		stats.Elapsed = time.Since(start)
		if c.cfg.Options.DryRun {
			return stats, nil
		}
		return stats, c.state.FinishRun()
	}

	records := c.scanner.Materialize(c.cfg.SourceFolders, missing)

	var todo []model.FileRecord
	for _, rec := range records {
		if c.state.ShouldProcess(rec) {
			todo = append(todo, rec)
		} else {
			stats.FilesSkipped++
		}
	}
	// Oldest first, so the incremental marker advances monotonically and
	// an interrupted run leaves a usable cutoff behind.
	sort.Slice(todo, func(i, j int) bool { return todo[i].Date.Before(todo[j].Date) })

	c.runPool(ctx, todo, stats)

	stats.FilesProcessed = len(todo)
	stats.Elapsed = time.Since(start)

	// Dry runs copy nothing and must not advance the incremental marker.
	if !c.cfg.Options.DryRun {
		if err := c.state.FinishRun(); err != nil {
			c.logger.Printf("warning: failed to persist state: %v", err)
		}
	}
	return stats, ctx.Err()
}

// runPool fans the work list out to cfg.Options.Workers goroutines and
// folds the per-file results into stats under one mutex.
func (c *SyncController) runPool(ctx context.Context, todo []model.FileRecord, stats *model.RunStats) {
	jobs := make(chan model.FileRecord)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < c.cfg.Options.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				res, err := c.organizer.OrganizeFile(rec)

				mu.Lock()
				switch {
				case err != nil:
					stats.FilesFailed++
					c.logger.Printf("error: %s: %v", rec.Path, err)
				case res.Action == ActionDuplicate:
					stats.DuplicatesFound++
					if !c.cfg.Options.DryRun {
						c.state.MarkProcessed(rec)
					}
				default:
					stats.FilesCopied++
					stats.BytesCopied += res.Bytes
					if res.DirCreated {
						stats.DirsCreated++
					}
					if res.Wudan {
						stats.VideosRouted++
					}
					stats.LastFile = rec.Name
					if !c.cfg.Options.DryRun {
						c.state.MarkProcessed(rec)
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, rec := range todo {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- rec:
		}
	}
	close(jobs)
	wg.Wait()
}

// targetRoots returns the distinct destination roots.
func (c *SyncController) targetRoots() []string {
	seen := make(map[string]bool)
	var roots []string
	for _, r := range []string{c.cfg.TargetPaths.Pictures, c.cfg.TargetPaths.Videos, c.cfg.TargetPaths.Wudan} {
		if r != "" && !seen[r] {
			seen[r] = true
			roots = append(roots, r)
		}
	}
	return roots
}
