// Package core provides tests for the deduplication cache.
package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phonesync/phonesync/internal/config"
)

func newTestDedup(t *testing.T, opts config.Options, roots ...string) *DedupManager {
	t.Helper()
	m := NewDedupManager(opts, testLogger())
	m.BuildCache(roots)
	return m
}

func dedupOptions() config.Options {
	return config.Options{EnableDeduplication: true}
}

func TestDedupManager_ExactMatch(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	writeFile(t, tmpDir, filepath.Join("2025_04_12", "20250412_101500_1.mp4"), "12345")

	m := newTestDedup(t, dedupOptions(), tmpDir)
	folder := filepath.Join(tmpDir, "2025_04_12")

	if !m.ExistsInTarget("20250412_101500_1.mp4", 5, time.Now(), folder) {
		t.Error("exact name and size should match")
	}
	if m.ExistsInTarget("20250412_101500_1.mp4", 6, time.Now(), folder) {
		t.Error("size mismatch must disqualify")
	}
}

func TestDedupManager_FlexibleSuffixMatch(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// The target copy gained a descriptive suffix after it was organized.
	writeFile(t, tmpDir, filepath.Join("2025_04_12_PaulArt", "20250412_101500_1_KungFu_GimStyle.mp4"), "12345")

	m := newTestDedup(t, dedupOptions(), tmpDir)
	// The would-be destination carries the same date pattern, different suffix.
	folder := filepath.Join(tmpDir, "2025_04_12")

	if !m.ExistsInTarget("20250412_101500_1.mp4", 5, time.Now(), folder) {
		t.Error("suffixed target name with matching date pattern should match")
	}
}

func TestDedupManager_UnderscoreBoundary(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// ..._10 must not satisfy a lookup for ..._1.
	writeFile(t, tmpDir, filepath.Join("2025_04_12", "20250412_101500_10.mp4"), "12345")

	m := newTestDedup(t, dedupOptions(), tmpDir)
	folder := filepath.Join(tmpDir, "2025_04_12")

	if m.ExistsInTarget("20250412_101500_1.mp4", 5, time.Now(), folder) {
		t.Error("_10 should not match a _1 base pattern")
	}
}

func TestDedupManager_DatePatternMismatch(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	writeFile(t, tmpDir, filepath.Join("2025_04_11", "20250412_101500_1.mp4"), "12345")

	m := newTestDedup(t, dedupOptions(), tmpDir)
	folder := filepath.Join(tmpDir, "2025_04_12")

	if m.ExistsInTarget("20250412_101500_1.mp4", 5, time.Now(), folder) {
		t.Error("a copy in a different date folder should not match")
	}
}

func TestDedupManager_IdenticalDirFallback(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Neither the holding folder nor the destination is date-partitioned;
	// exact directory equality is the fallback.
	writeFile(t, tmpDir, filepath.Join("misc", "holiday.mp4"), "12345")

	m := newTestDedup(t, dedupOptions(), tmpDir)

	if !m.ExistsInTarget("holiday.mp4", 5, time.Now(), filepath.Join(tmpDir, "misc")) {
		t.Error("same directory should match when no date pattern applies")
	}
	if m.ExistsInTarget("holiday.mp4", 5, time.Now(), filepath.Join(tmpDir, "other")) {
		t.Error("different non-dated directory should not match")
	}
}

func TestDedupManager_ForceRecopyIfNewer(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := writeFile(t, tmpDir, filepath.Join("2025_04_12", "20250412_101500_1.mp4"), "12345")
	old := time.Date(2025, 4, 12, 10, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}

	opts := dedupOptions()
	opts.ForceRecopyIfNewer = true
	m := newTestDedup(t, opts, tmpDir)
	folder := filepath.Join(tmpDir, "2025_04_12")

	if m.ExistsInTarget("20250412_101500_1.mp4", 5, old.Add(time.Hour), folder) {
		t.Error("newer source should be reported as not existing")
	}
	if !m.ExistsInTarget("20250412_101500_1.mp4", 5, old.Add(-time.Hour), folder) {
		t.Error("older source should still be a duplicate")
	}
}

func TestDedupManager_DisabledNeverMatches(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	writeFile(t, tmpDir, filepath.Join("2025_04_12", "a.mp4"), "12345")

	m := newTestDedup(t, config.Options{EnableDeduplication: false}, tmpDir)
	if m.ExistsInTarget("a.mp4", 5, time.Now(), filepath.Join(tmpDir, "2025_04_12")) {
		t.Error("disabled deduplication must report nothing as existing")
	}
}

func TestDedupManager_UpdateCache(t *testing.T) {
	m := NewDedupManager(dedupOptions(), testLogger())

	folder := filepath.Join("target", "2025_04_12")
	m.UpdateCache("20250412_101500_1.mp4", 5, filepath.Join(folder, "20250412_101500_1.mp4"), time.Now())

	if !m.ExistsInTarget("20250412_101500_1.mp4", 5, time.Now(), folder) {
		t.Error("freshly cached file should be a duplicate")
	}
	stats := m.Stats()
	if stats.TotalFiles != 1 || stats.CacheKeys != 1 {
		t.Errorf("stats = %+v, want one file and one key", stats)
	}
}

func TestDedupManager_ForgetDropsEntry(t *testing.T) {
	m := NewDedupManager(dedupOptions(), testLogger())

	folder := filepath.Join("target", "2025_04_12")
	path := filepath.Join(folder, "20250412_101500_1.mp4")
	m.UpdateCache("20250412_101500_1.mp4", 5, path, time.Now())
	m.Forget("20250412_101500_1.mp4", 5, path)

	if m.ExistsInTarget("20250412_101500_1.mp4", 5, time.Now(), folder) {
		t.Error("forgotten entry must not report as existing")
	}
	stats := m.Stats()
	if stats.TotalFiles != 0 || stats.CacheKeys != 0 {
		t.Errorf("stats = %+v, want an empty cache", stats)
	}

	// Forgetting an unknown path is a no-op.
	m.UpdateCache("other.mp4", 7, filepath.Join(folder, "other.mp4"), time.Now())
	m.Forget("other.mp4", 7, filepath.Join(folder, "elsewhere.mp4"))
	if !m.ExistsInTarget("other.mp4", 7, time.Now(), folder) {
		t.Error("unrelated entry must survive a mismatched Forget")
	}
}

func TestFindExistingDateFolder(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "phonesync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, d := range []string{"2025_04_12_PaulArt", "2025_04_120", "2025_04_13"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, d), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", d, err)
		}
	}

	got, ok := FindExistingDateFolder(tmpDir, "2025_04_12")
	if !ok {
		t.Fatal("expected a match")
	}
	if got != filepath.Join(tmpDir, "2025_04_12_PaulArt") {
		t.Errorf("got %q, want the suffixed folder; 2025_04_120 must not match", got)
	}

	if _, ok := FindExistingDateFolder(tmpDir, "2025_04_14"); ok {
		t.Error("expected no match for an absent date")
	}
}
