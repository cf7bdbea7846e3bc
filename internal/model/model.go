// Package model defines the core domain models for PhoneSync.
package model

import (
	"fmt"
	"time"
)

// FileType represents the media category of a file.
type FileType string

const (
	FileTypePicture FileType = "picture"
	FileTypeVideo   FileType = "video"
)

// FileRecord describes one physical file under consideration.
// Records are rebuilt from the filesystem on every run and never persisted;
// only derived identifiers (InventoryKey, ProcessedID) outlive a run.
type FileRecord struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Extension string    `json:"extension"` // lower-cased, with leading dot
	Type      FileType  `json:"type"`
	Size      int64     `json:"size"`
	Date      time.Time `json:"date"` // filename-derived, EXIF, or mtime; never zero
	ModTime   time.Time `json:"modification_time"`
}

// InventoryKey is the name|size composite identity used for set-based
// reconciliation. The pair is not cryptographically unique but is the
// accepted identity for this domain.
type InventoryKey string

// Key returns the InventoryKey for a name and size.
func Key(name string, size int64) InventoryKey {
	return InventoryKey(fmt.Sprintf("%s|%d", name, size))
}

// Key returns the record's InventoryKey.
func (r FileRecord) Key() InventoryKey {
	return Key(r.Name, r.Size)
}

// ProcessedID returns the composite identity persisted in the processed-files
// index: path|size|isoTimestamp.
func (r FileRecord) ProcessedID() string {
	return fmt.Sprintf("%s|%d|%s", r.Path, r.Size, r.Date.Format(time.RFC3339))
}

// TargetEntry is one physical file already present in the target tree,
// as held in the in-memory deduplication cache.
type TargetEntry struct {
	Path        string    `json:"path"`
	ModTime     time.Time `json:"last_write_time"`
	Dir         string    `json:"directory"`
	DirName     string    `json:"directory_name"`
	DatePattern string    `json:"date_pattern,omitempty"` // YYYY_MM_DD prefix of DirName, empty if none
	Size        int64     `json:"size"`
}

// StateValidity is the three-way outcome of validating the persisted
// processing state against the actual target folder structure.
type StateValidity string

const (
	// StateNone means no persisted state exists; everything is processed.
	StateNone StateValidity = "no_state"
	// StateTrusted means the persisted marker matches a real date folder.
	StateTrusted StateValidity = "trusted"
	// StateStale means the marker is inconsistent with the target tree and
	// the cutoff was derived by scanning folders instead.
	StateStale StateValidity = "stale"
)

// SchemaVersion tags persisted state records.
const SchemaVersion = "1.0"

// ProcessingState is the persisted per-run snapshot.
// If present, LastRunTimestamp is expected to correspond to the newest
// date-partitioned folder under the target roots; that invariant can drift
// (manual folder deletion), which StateManager compensates for.
type ProcessingState struct {
	RunID               string `json:"run_id"`
	LastRunTimestamp    string `json:"last_run_timestamp"` // RFC 3339
	LastProcessedFile   string `json:"last_processed_file"`
	LastProcessedDate   string `json:"last_processed_date"` // YYYY-MM-DD
	TotalFilesProcessed int    `json:"total_files_processed"`
	TotalVideosAnalyzed int    `json:"total_videos_analyzed"`
	SchemaVersion       string `json:"schema_version"`
}

// ProcessedFileIndex is the persisted set of composite file identifiers,
// consulted before any date-based cutoff so out-of-order files (older
// timestamp, added later) are still skipped once seen once.
// Grows monotonically across runs; cleared only by explicit reset.
type ProcessedFileIndex struct {
	ProcessedFiles []string  `json:"processed_files"`
	TotalCount     int       `json:"total_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

// RunStats is the result of one reconciliation run, threaded through
// returns rather than mutated in place.
type RunStats struct {
	SourceFiles     int           `json:"source_files"`
	TargetFiles     int           `json:"target_files"`
	Candidates      int           `json:"candidates"`
	FilesProcessed  int           `json:"files_processed"`
	FilesCopied     int           `json:"files_copied"`
	FilesSkipped    int           `json:"files_skipped"`
	FilesFailed     int           `json:"files_failed"`
	BytesCopied     int64         `json:"bytes_copied"`
	DirsCreated     int           `json:"directories_created"`
	DuplicatesFound int           `json:"duplicates_found"`
	VideosRouted    int           `json:"videos_routed"` // videos sent to the wudan subtree
	LastFile        string        `json:"last_processed_file"`
	StateBranch     StateValidity `json:"state_branch"`
	Elapsed         time.Duration `json:"elapsed"`
}
