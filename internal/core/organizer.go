package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/phonesync/phonesync/internal/model"
)

// Action classifies the outcome of organizing one file.
type Action string

const (
	ActionCopied    Action = "copied"
	ActionDuplicate Action = "duplicate"
	ActionWouldCopy Action = "would_copy"
)

// OrganizeResult describes what happened to one candidate.
type OrganizeResult struct {
	Action     Action
	FinalPath  string
	Bytes      int64
	DirCreated bool
	Wudan      bool
}

// Organizer runs the per-file pipeline: route, deduplicate, place and
// copy. It is safe for concurrent use; the duplicate check and the cache
// reservation of the final path happen under one lock so two workers can
// never claim the same destination.
type Organizer struct {
	mu       sync.Mutex
	resolver *PathResolver
	dedup    *DedupManager
	sink     VideoSink
	logger   *log.Logger
	dryRun   bool

	// pending holds final paths claimed by copies still in flight; the
	// resolver must not hand them out again before the file lands on
	// disk. The disk probe alone cannot see them, and the dedup cache
	// cannot stand in for them because it disqualifies on size.
	pending map[string]struct{}
}

// NewOrganizer wires the pipeline. sink may be nil.
func NewOrganizer(resolver *PathResolver, dedup *DedupManager, sink VideoSink, dryRun bool, logger *log.Logger) *Organizer {
	if sink == nil {
		sink = NopVideoSink{}
	}
	return &Organizer{
		resolver: resolver,
		dedup:    dedup,
		sink:     sink,
		logger:   logger,
		dryRun:   dryRun,
		pending:  make(map[string]struct{}),
	}
}

// OrganizeFile routes and copies a single candidate. Duplicate detection
// is not an error; a missing destination folder with creation disabled
// is, and fails only this file.
func (o *Organizer) OrganizeFile(rec model.FileRecord) (OrganizeResult, error) {
	o.mu.Lock()
	folder, wudan := o.resolver.ResolveFolder(rec)

	if o.dedup.ExistsInTarget(rec.Name, rec.Size, rec.Date, folder) {
		o.mu.Unlock()
		return OrganizeResult{Action: ActionDuplicate, FinalPath: folder, Wudan: wudan}, nil
	}

	created, err := o.resolver.EnsureDir(folder)
	if err != nil {
		o.mu.Unlock()
		return OrganizeResult{Wudan: wudan}, err
	}

	finalPath := o.resolver.ResolveFilePath(folder, rec.Name, o.pending)
	// Reserve the destination before copying so a same-keyed candidate
	// on another worker sees it as taken.
	o.pending[finalPath] = struct{}{}
	o.dedup.UpdateCache(rec.Name, rec.Size, finalPath, rec.ModTime)
	o.mu.Unlock()

	result := OrganizeResult{FinalPath: finalPath, DirCreated: created, Wudan: wudan}

	if o.dryRun {
		// The reservation stays for the whole run; nothing lands on
		// disk for the probe to see.
		result.Action = ActionWouldCopy
		result.Bytes = rec.Size
		o.logger.Printf("dry-run: would copy %s -> %s", rec.Path, finalPath)
		return result, nil
	}

	if err := copyFileAtomic(rec.Path, finalPath, rec.Size); err != nil {
		o.release(rec, finalPath)
		return result, err
	}
	o.mu.Lock()
	delete(o.pending, finalPath)
	o.mu.Unlock()
	if err := os.Chtimes(finalPath, rec.ModTime, rec.ModTime); err != nil {
		o.logger.Printf("warning: cannot preserve mtime on %s: %v", finalPath, err)
	}

	result.Action = ActionCopied
	result.Bytes = rec.Size

	if rec.Type == model.FileTypeVideo {
		o.sink.VideoOrganized(rec.Path, finalPath, rec.Date)
	}
	return result, nil
}

// release rolls back the reservations of a copy that never landed, so
// a same-key sibling later in the run is copied instead of reported as
// a duplicate of nothing.
func (o *Organizer) release(rec model.FileRecord, finalPath string) {
	o.mu.Lock()
	delete(o.pending, finalPath)
	o.mu.Unlock()
	o.dedup.Forget(rec.Name, rec.Size, finalPath)
}

// copyFileAtomic copies src to dst via an in-folder temp file and rename,
// verifying the byte count, so readers of the target tree never observe a
// partial file.
func copyFileAtomic(src, dst string, wantSize int64) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp := TempPath(dst)
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if n != wantSize {
		os.Remove(tmp)
		return fmt.Errorf("short copy of %s: wrote %d of %d bytes", src, n, wantSize)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize %s: %w", dst, err)
	}
	return nil
}
