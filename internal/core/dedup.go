package core

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/phonesync/phonesync/internal/config"
	"github.com/phonesync/phonesync/internal/model"
)

// dateFolderPattern matches the YYYY_MM_DD prefix of a date-partitioned
// folder name. Anything after the prefix is a human-added suffix.
var dateFolderPattern = regexp.MustCompile(`^(\d{4}_\d{2}_\d{2})`)

// baseNamePattern matches the YYYYMMDD_HHMMSS_N stem of a date-named
// file; the flexible match tolerates descriptive text appended after it.
var baseNamePattern = regexp.MustCompile(`^(\d{8}_\d{6}_\d+)`)

// CacheStats summarizes the in-memory target cache.
type CacheStats struct {
	CacheKeys  int  `json:"cache_keys"`
	TotalFiles int  `json:"total_files"`
	Enabled    bool `json:"cache_enabled"`
}

// DedupManager holds the size-keyed cache of files already present in the
// target tree and answers per-candidate existence checks, including
// flexible matching of target filenames that gained descriptive suffixes
// (20250412_292993_1.mp4 matches 20250412_292993_1_KungFu_GimStyle.mp4).
//
// The cache is built once per run by a full tree walk and updated in
// place after every successful copy, so later candidates in the same run
// see the newly added file. All access is mutex-guarded; callers that
// need check-then-update atomicity serialize externally.
type DedupManager struct {
	mu     sync.RWMutex
	byKey  map[model.InventoryKey][]*model.TargetEntry
	bySize map[int64][]*model.TargetEntry
	total  int

	enabled            bool
	forceRecopyIfNewer bool
	logger             *log.Logger
}

// NewDedupManager creates an empty cache with the configured toggles.
func NewDedupManager(opts config.Options, logger *log.Logger) *DedupManager {
	return &DedupManager{
		byKey:              make(map[model.InventoryKey][]*model.TargetEntry),
		bySize:             make(map[int64][]*model.TargetEntry),
		enabled:            opts.EnableDeduplication,
		forceRecopyIfNewer: opts.ForceRecopyIfNewer,
		logger:             logger,
	}
}

// BuildCache walks every target root and caches each file it finds.
// Returns the number of files cached. Missing roots are skipped (they
// will be created on demand); per-file errors are logged and skipped.
func (m *DedupManager) BuildCache(roots []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byKey = make(map[model.InventoryKey][]*model.TargetEntry)
	m.bySize = make(map[int64][]*model.TargetEntry)
	m.total = 0

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				m.logger.Printf("warning: cannot access %s: %v", path, walkErr)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				m.logger.Printf("warning: cannot stat %s: %v", path, err)
				return nil
			}
			m.insert(d.Name(), info.Size(), path, info.ModTime())
			return nil
		})
		if err != nil {
			m.logger.Printf("warning: scan of %s aborted: %v", root, err)
		}
	}
	return m.total
}

// insert adds one entry to both indexes. Caller holds the write lock.
func (m *DedupManager) insert(name string, size int64, path string, modTime time.Time) {
	dir := filepath.Dir(path)
	dirName := filepath.Base(dir)
	entry := &model.TargetEntry{
		Path:        path,
		ModTime:     modTime,
		Dir:         dir,
		DirName:     dirName,
		DatePattern: extractDatePattern(dirName),
		Size:        size,
	}
	key := model.Key(name, size)
	m.byKey[key] = append(m.byKey[key], entry)
	m.bySize[size] = append(m.bySize[size], entry)
	m.total++
}

// UpdateCache records a freshly copied file so that later candidates in
// the same run deduplicate against it.
func (m *DedupManager) UpdateCache(finalName string, size int64, targetPath string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(finalName, size, targetPath, modTime)
}

// Forget drops a cached entry whose copy never landed, so later
// same-key candidates run the full existence check again instead of
// deduplicating against a file that does not exist.
func (m *DedupManager) Forget(name string, size int64, targetPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := model.Key(name, size)
	if trimmed, ok := removeEntry(m.byKey[key], targetPath); ok {
		if len(trimmed) == 0 {
			delete(m.byKey, key)
		} else {
			m.byKey[key] = trimmed
		}
	}
	if trimmed, ok := removeEntry(m.bySize[size], targetPath); ok {
		if len(trimmed) == 0 {
			delete(m.bySize, size)
		} else {
			m.bySize[size] = trimmed
		}
		m.total--
	}
}

func removeEntry(entries []*model.TargetEntry, path string) ([]*model.TargetEntry, bool) {
	for i, e := range entries {
		if e.Path == path {
			return append(entries[:i], entries[i+1:]...), true
		}
	}
	return entries, false
}

// ExistsInTarget reports whether the candidate already exists in the
// target, under its own name or a suffixed variant of it.
//
// Matching rules, in order:
//  1. size equality is mandatory; a size mismatch disqualifies even
//     identically named files
//  2. the target stem must equal the candidate's base pattern or start
//     with pattern+"_" (underscore boundary: ..._1 never matches ..._10)
//  3. the matching entry's directory date-pattern must equal the
//     destination's, with exact directory equality as the fallback
//  4. when force_recopy_if_newer is set and the source timestamp exceeds
//     the matched entry's mtime, the file is reported as not existing
func (m *DedupManager) ExistsInTarget(name string, size int64, date time.Time, targetFolder string) bool {
	if !m.enabled {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sourceStem := stem(name)
	base := basePattern(name)
	expected := extractDatePattern(filepath.Base(targetFolder))

	for _, entry := range m.bySize[size] {
		targetName := filepath.Base(entry.Path)
		if !flexibleMatch(sourceStem, stem(targetName), base) {
			continue
		}

		matched := false
		if expected != "" && entry.DatePattern != "" {
			matched = entry.DatePattern == expected
		} else if entry.Dir == filepath.Clean(targetFolder) {
			matched = true
		}
		if !matched {
			continue
		}

		if m.forceRecopyIfNewer && date.After(entry.ModTime) {
			// Source is newer than what the target holds; recency
			// wins over deduplication.
			return false
		}
		return true
	}
	return false
}

// Stats returns cache counters for run reporting.
func (m *DedupManager) Stats() CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CacheStats{
		CacheKeys:  len(m.byKey),
		TotalFiles: m.total,
		Enabled:    m.enabled,
	}
}

// FindExistingDateFolder searches base's immediate subdirectories for one
// whose name equals pattern or starts with pattern+"_" (tolerating
// human-added suffixes such as _PaulArt). The first match in directory
// order is reused verbatim.
func FindExistingDateFolder(base, pattern string) (string, bool) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == pattern || strings.HasPrefix(name, pattern+"_") {
			return filepath.Join(base, name), true
		}
	}
	return "", false
}

// extractDatePattern returns the YYYY_MM_DD prefix of a directory name,
// or "" when the name is not date-partitioned.
func extractDatePattern(dirName string) string {
	m := dateFolderPattern.FindStringSubmatch(dirName)
	if m == nil {
		return ""
	}
	return m[1]
}

// basePattern derives the flexible-match pattern from a candidate name:
// the YYYYMMDD_HHMMSS_N prefix for date-named files, the full stem
// otherwise.
func basePattern(name string) string {
	s := stem(name)
	if m := baseNamePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// flexibleMatch reports whether a target stem matches the candidate:
// exact stem equality, or the base pattern followed by nothing or an
// underscore-separated suffix.
func flexibleMatch(sourceStem, targetStem, base string) bool {
	if sourceStem == targetStem {
		return true
	}
	if !strings.HasPrefix(targetStem, base) {
		return false
	}
	rest := targetStem[len(base):]
	return rest == "" || strings.HasPrefix(rest, "_")
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
