package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phonesync/phonesync/internal/config"
	"github.com/phonesync/phonesync/internal/model"
)

// FolderCreationError is the typed failure raised when a destination date
// folder is missing and create_missing_folders is off. It fails the one
// file, never the run.
type FolderCreationError struct {
	Folder string
}

func (e *FolderCreationError) Error() string {
	return fmt.Sprintf("target folder %s does not exist and folder creation is disabled", e.Folder)
}

// PathResolver maps a classified file to its destination date folder and
// final on-disk path. Pictures always land under the pictures root;
// videos are routed to the wudan root when the rules engine places their
// timestamp inside a training window, and to the plain videos root
// otherwise.
type PathResolver struct {
	targets config.TargetPaths
	rules   *RulesEngine

	createMissing bool
	dryRun        bool
}

// NewPathResolver wires the resolver to the configured roots and rules.
func NewPathResolver(targets config.TargetPaths, rules *RulesEngine, opts config.Options) *PathResolver {
	return &PathResolver{
		targets:       targets,
		rules:         rules,
		createMissing: opts.CreateMissingFolders,
		dryRun:        opts.DryRun,
	}
}

// ResolveFolder returns the destination date folder for a record, reusing
// an existing suffixed folder (2025_04_12_PaulArt) when one matches the
// date pattern. The folder is not created here; EnsureDir does that.
func (r *PathResolver) ResolveFolder(rec model.FileRecord) (string, bool) {
	var root, pattern string
	wudan := false

	switch rec.Type {
	case model.FileTypeVideo:
		if r.rules.InWindow(rec.Date) {
			root = r.targets.Wudan
			// Wudan folders carry the weekday so training days are
			// visible at a glance: 2025_04_12_Sat.
			pattern = rec.Date.Format("2006_01_02_Mon")
			wudan = true
		} else {
			root = r.targets.Videos
			pattern = rec.Date.Format("2006_01_02")
		}
	default:
		root = r.targets.Pictures
		pattern = rec.Date.Format("2006_01_02")
	}

	if existing, ok := FindExistingDateFolder(root, pattern); ok {
		return existing, wudan
	}
	return filepath.Join(root, pattern), wudan
}

// EnsureDir makes sure the destination folder exists. When it is missing
// and folder creation is disabled, the typed FolderCreationError is
// returned so the caller can fail just this file. Returns true when the
// directory was created by this call.
func (r *PathResolver) EnsureDir(folder string) (bool, error) {
	if _, err := os.Stat(folder); err == nil {
		return false, nil
	}
	if !r.createMissing {
		return false, &FolderCreationError{Folder: folder}
	}
	if r.dryRun {
		return true, nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return false, fmt.Errorf("failed to create folder %s: %w", folder, err)
	}
	return true, nil
}

// ResolveFilePath picks the final path inside folder, probing numeric
// suffixes _1.._9999 when the plain name collides. A path counts as
// taken when it exists on disk or appears in reserved, the set of
// destinations claimed by copies still in flight. If all probes collide
// a timestamp-suffixed name is used; resolution never fails.
func (r *PathResolver) ResolveFilePath(folder, name string, reserved map[string]struct{}) string {
	taken := func(path string) bool {
		if _, ok := reserved[path]; ok {
			return true
		}
		return pathExists(path)
	}

	candidate := filepath.Join(folder, name)
	if !taken(candidate) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= 9999; i++ {
		candidate = filepath.Join(folder, fmt.Sprintf("%s_%d%s", base, i, ext))
		if !taken(candidate) {
			return candidate
		}
	}
	return filepath.Join(folder, fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext))
}

// TempPath returns the in-folder temporary name used for atomic copies.
// The uuid suffix keeps concurrent workers from colliding on it.
func TempPath(finalPath string) string {
	return finalPath + ".phonesync-" + uuid.NewString()[:8] + ".tmp"
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
