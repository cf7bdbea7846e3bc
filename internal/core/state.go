package core

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phonesync/phonesync/internal/model"
)

const (
	stateFileName     = "processing_state.json"
	processedFileName = "processed_files.json"

	dayFormat = "2006-01-02"
)

// StateManager persists incremental-processing state between runs as two
// human-inspectable JSON files: a run marker (processing_state.json) and
// the set of already-processed file identities (processed_files.json).
// Deleting either file is a supported operation and simply forces the
// next run to reprocess everything.
//
// The marker is never trusted blindly. On load it is cross-checked
// against the date folders actually present in the target tree; a marker
// pointing at a date no folder corroborates is demoted to stale and the
// newest folder date is used instead.
type StateManager struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	logger  *log.Logger

	// dirLister is swapped in tests to simulate target layouts.
	dirLister func(string) ([]os.DirEntry, error)

	state     model.ProcessingState
	processed map[string]struct{}
	validity  model.StateValidity
	// cutoff is the full last-run timestamp when trusted, and the newest
	// target folder date (midnight) when stale.
	cutoff time.Time

	runProcessed int
	runVideos    int
	lastFile     string
	lastDate     time.Time
}

// NewStateManager creates a manager rooted at dir. Nothing is read until
// Load.
func NewStateManager(dir string, enabled bool, logger *log.Logger) *StateManager {
	return &StateManager{
		dir:       dir,
		enabled:   enabled,
		logger:    logger,
		dirLister: os.ReadDir,
		processed: make(map[string]struct{}),
		validity:  model.StateNone,
	}
}

// Load reads both state files and establishes the date cutoff for this
// run. targetRoots are the destination roots whose date folders vouch for
// the marker. Corrupt or missing files degrade to no_state, never error.
func (s *StateManager) Load(targetRoots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.validity = model.StateNone
	s.cutoff = time.Time{}
	s.processed = make(map[string]struct{})

	if !s.enabled {
		return
	}

	if !s.loadMarker() {
		return
	}
	s.loadProcessedSet()

	lastRun, err := time.Parse(time.RFC3339, s.state.LastRunTimestamp)
	if err != nil {
		s.logger.Printf("warning: unreadable last_run_timestamp %q, ignoring state", s.state.LastRunTimestamp)
		return
	}

	if s.folderExistsFor(targetRoots, lastRun) {
		s.validity = model.StateTrusted
		s.cutoff = lastRun
		return
	}

	// The marker's date has no corroborating folder. Fall back to the
	// newest date folder actually present.
	newest, ok := s.newestFolderDate(targetRoots)
	if !ok {
		s.logger.Printf("warning: last run %s has no matching target folder and no fallback, reprocessing all", s.state.LastRunTimestamp)
		return
	}
	s.logger.Printf("warning: last run %s not corroborated by target folders, using newest folder date %s",
		s.state.LastRunTimestamp, newest.Format(dayFormat))
	s.validity = model.StateStale
	s.cutoff = newest
}

func (s *StateManager) loadMarker() bool {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFileName))
	if err != nil {
		return false
	}
	var st model.ProcessingState
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Printf("warning: corrupt %s, ignoring: %v", stateFileName, err)
		return false
	}
	if st.LastRunTimestamp == "" {
		return false
	}
	s.state = st
	return true
}

func (s *StateManager) loadProcessedSet() {
	data, err := os.ReadFile(filepath.Join(s.dir, processedFileName))
	if err != nil {
		return
	}
	var idx model.ProcessedFileIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Printf("warning: corrupt %s, ignoring: %v", processedFileName, err)
		return
	}
	for _, id := range idx.ProcessedFiles {
		s.processed[id] = struct{}{}
	}
}

// folderExistsFor reports whether any target root holds a date folder for
// the given day, suffixed variants included.
func (s *StateManager) folderExistsFor(roots []string, day time.Time) bool {
	pattern := day.Format("2006_01_02")
	for _, root := range roots {
		entries, err := s.dirLister(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if p := extractDatePattern(e.Name()); p == pattern {
				return true
			}
		}
	}
	return false
}

// newestFolderDate scans every target root and returns the latest date
// parsed from their immediate subdirectory names.
func (s *StateManager) newestFolderDate(roots []string) (time.Time, bool) {
	var newest time.Time
	found := false
	for _, root := range roots {
		entries, err := s.dirLister(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			p := extractDatePattern(e.Name())
			if p == "" {
				continue
			}
			d, err := time.ParseInLocation("2006_01_02", p, time.Local)
			if err != nil {
				continue
			}
			if !found || d.After(newest) {
				newest = d
				found = true
			}
		}
	}
	return newest, found
}

// Validity reports how much the loaded state can be trusted.
func (s *StateManager) Validity() model.StateValidity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validity
}

// ShouldProcess decides whether a candidate needs work this run.
// The processed set is consulted before any date cutoff so out-of-order
// files (older timestamp, added later) stay skipped once seen once.
// With trusted state, files dated at or before the last run are skipped;
// with stale state the comparison degrades to calendar days against the
// newest target folder.
func (s *StateManager) ShouldProcess(rec model.FileRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return true
	}
	if _, done := s.processed[rec.ProcessedID()]; done {
		return false
	}

	switch s.validity {
	case model.StateTrusted:
		return rec.Date.After(s.cutoff)
	case model.StateStale:
		return dayOf(rec.Date).After(s.cutoff)
	default:
		return true
	}
}

// MarkProcessed records a finished file. Safe for concurrent workers.
func (s *StateManager) MarkProcessed(rec model.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[rec.ProcessedID()] = struct{}{}
	s.runProcessed++
	if rec.Type == model.FileTypeVideo {
		s.runVideos++
	}
	s.lastFile = rec.Name
	if rec.Date.After(s.lastDate) {
		s.lastDate = rec.Date
	}
}

// FinishRun persists both state files. Failures are logged and returned
// but the run's copies are already on disk, so callers treat this as
// best-effort.
func (s *StateManager) FinishRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil
	}

	now := time.Now()
	s.state.RunID = uuid.NewString()
	s.state.LastRunTimestamp = now.Format(time.RFC3339)
	s.state.TotalFilesProcessed += s.runProcessed
	s.state.TotalVideosAnalyzed += s.runVideos
	s.state.SchemaVersion = model.SchemaVersion
	if s.lastFile != "" {
		s.state.LastProcessedFile = s.lastFile
	}
	if !s.lastDate.IsZero() {
		prev, err := time.ParseInLocation(dayFormat, s.state.LastProcessedDate, time.Local)
		if err != nil || dayOf(s.lastDate).After(prev) {
			s.state.LastProcessedDate = s.lastDate.Format(dayFormat)
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir %s: %w", s.dir, err)
	}

	if err := s.writeAtomic(stateFileName, s.state); err != nil {
		return err
	}

	ids := make([]string, 0, len(s.processed))
	for id := range s.processed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	idx := model.ProcessedFileIndex{
		ProcessedFiles: ids,
		TotalCount:     len(ids),
		LastUpdated:    now,
	}
	return s.writeAtomic(processedFileName, idx)
}

// writeAtomic marshals v and renames a temp file over the destination so
// a crash mid-write never leaves a truncated state file.
func (s *StateManager) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	final := filepath.Join(s.dir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", final, err)
	}
	return nil
}

// Reset deletes both state files, forcing full reprocessing next run.
func (s *StateManager) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{stateFileName, processedFileName} {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	s.state = model.ProcessingState{}
	s.processed = make(map[string]struct{})
	s.validity = model.StateNone
	s.cutoff = time.Time{}
	return nil
}

// Snapshot returns the persisted marker for the status command.
func (s *StateManager) Snapshot() (model.ProcessingState, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, len(s.processed)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
