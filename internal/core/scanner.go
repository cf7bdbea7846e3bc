package core

import (
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/phonesync/phonesync/internal/config"
	"github.com/phonesync/phonesync/internal/model"
)

// Scanner walks directory trees for recognized media files. The same
// scanner serves both the source and the target corpus so the two sides
// share key semantics, which the set-difference reconciliation depends on.
//
// Filesystem errors on individual files are logged and skipped; a single
// unreadable file never aborts a scan.
type Scanner struct {
	pictureExts map[string]bool
	videoExts   map[string]bool
	logger      *log.Logger
}

// NewScanner creates a scanner for the configured extension sets.
func NewScanner(exts config.FileExtensions, logger *log.Logger) *Scanner {
	s := &Scanner{
		pictureExts: make(map[string]bool),
		videoExts:   make(map[string]bool),
		logger:      logger,
	}
	for _, e := range exts.Pictures {
		s.pictureExts[strings.ToLower(e)] = true
	}
	for _, e := range exts.Videos {
		s.videoExts[strings.ToLower(e)] = true
	}
	return s
}

func (s *Scanner) mediaType(ext string) (model.FileType, bool) {
	switch {
	case s.pictureExts[ext]:
		return model.FileTypePicture, true
	case s.videoExts[ext]:
		return model.FileTypeVideo, true
	default:
		return "", false
	}
}

// BuildInventory walks the roots and returns the flat set of name|size
// keys for every recognized media file. This is the performance-critical
// primitive behind bulk reconciliation: membership is O(1) and the
// set difference below is linear in corpus size.
func (s *Scanner) BuildInventory(roots []string) map[model.InventoryKey]struct{} {
	inv := make(map[model.InventoryKey]struct{})
	for _, root := range roots {
		s.walkMedia(root, func(path string, d fs.DirEntry) {
			info, err := d.Info()
			if err != nil {
				s.logger.Printf("warning: cannot stat %s: %v", path, err)
				return
			}
			inv[model.Key(d.Name(), info.Size())] = struct{}{}
		})
	}
	return inv
}

// Diff returns the keys present in source but absent from target:
// the files needing action.
func Diff(source, target map[model.InventoryKey]struct{}) map[model.InventoryKey]struct{} {
	out := make(map[model.InventoryKey]struct{})
	for k := range source {
		if _, ok := target[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// Materialize walks the source roots again and builds full FileRecords
// for exactly the given candidate keys. Only candidates pay the cost of
// date extraction.
func (s *Scanner) Materialize(roots []string, keys map[model.InventoryKey]struct{}) []model.FileRecord {
	records := make([]model.FileRecord, 0, len(keys))
	for _, root := range roots {
		s.walkMedia(root, func(path string, d fs.DirEntry) {
			info, err := d.Info()
			if err != nil {
				s.logger.Printf("warning: cannot stat %s: %v", path, err)
				return
			}
			if _, ok := keys[model.Key(d.Name(), info.Size())]; !ok {
				return
			}
			records = append(records, s.record(path, d.Name(), info))
		})
	}
	return records
}

// record builds a FileRecord, resolving the date through the guaranteed
// fallback chain: filename pattern, then EXIF for pictures, then mtime.
func (s *Scanner) record(path, name string, info fs.FileInfo) model.FileRecord {
	ext := strings.ToLower(filepath.Ext(name))
	ftype, _ := s.mediaType(ext)

	date, ok := ExtractDate(name)
	if !ok && ftype == model.FileTypePicture {
		date, ok = exifDate(path)
	}
	if !ok {
		date = info.ModTime()
	}

	return model.FileRecord{
		Name:      name,
		Path:      path,
		Extension: ext,
		Type:      ftype,
		Size:      info.Size(),
		Date:      date,
		ModTime:   info.ModTime(),
	}
}

// walkMedia visits every recognized media file under root. Walk errors
// are logged and the affected subtree skipped rather than propagated.
func (s *Scanner) walkMedia(root string, visit func(path string, d fs.DirEntry)) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Printf("warning: cannot access %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := s.mediaType(strings.ToLower(filepath.Ext(d.Name()))); !ok {
			return nil
		}
		visit(path, d)
		return nil
	})
	if err != nil {
		s.logger.Printf("warning: scan of %s aborted: %v", root, err)
	}
}
