package imgcache

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testDay = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestArchiver(t *testing.T) *Archiver {
	t.Helper()
	a, err := NewArchiver(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	return a
}

func TestArchive(t *testing.T) {
	c := newTestCache(t)
	a := newTestArchiver(t)

	for _, page := range []int{1, 2, 5} {
		if _, err := c.Write("paper-x", page, []byte{0xff, byte(page)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	zipPath, err := a.Archive(c, "paper-x", 3, testDay)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	wantDir := "Dataset (3) 2026-03-14"
	if filepath.Base(filepath.Dir(zipPath)) != wantDir {
		t.Errorf("batch dir = %q, want %q", filepath.Base(filepath.Dir(zipPath)), wantDir)
	}
	if filepath.Base(zipPath) != "paper-x_images.zip" {
		t.Errorf("zip name = %q", filepath.Base(zipPath))
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 3 {
		t.Errorf("zip has %d files, want 3", len(zr.File))
	}

	if c.Exists("paper-x") {
		t.Error("cache directory still present after archival")
	}
}

func TestArchiveIdempotent(t *testing.T) {
	// A crash between writing the zip and deleting the cache must converge
	// on re-run: the existing zip is kept and the cache is reclaimed.
	c := newTestCache(t)
	a := newTestArchiver(t)

	if _, err := c.Write("paper-y", 1, []byte("img")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first, err := a.Archive(c, "paper-y", 1, testDay)
	if err != nil {
		t.Fatalf("first Archive: %v", err)
	}
	info, err := os.Stat(first)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	// Simulate the crash by recreating the cache entry.
	if _, err := c.Write("paper-y", 1, []byte("img")); err != nil {
		t.Fatalf("re-Write: %v", err)
	}
	second, err := a.Archive(c, "paper-y", 1, testDay)
	if err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	if second != first {
		t.Errorf("zip path changed: %q vs %q", second, first)
	}
	again, err := os.Stat(second)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !again.ModTime().Equal(info.ModTime()) || again.Size() != info.Size() {
		t.Error("existing archive was rewritten")
	}
	if c.Exists("paper-y") {
		t.Error("cache not reclaimed on idempotent re-run")
	}
}

func TestArchiveEmptyCacheFails(t *testing.T) {
	c := newTestCache(t)
	a := newTestArchiver(t)

	if _, err := a.Archive(c, "missing-doc", 1, testDay); err == nil {
		t.Error("archiving a document with no cache entries must fail")
	}
}

func TestArchiveFailureLeavesCache(t *testing.T) {
	c := newTestCache(t)

	root := t.TempDir()
	a, err := NewArchiver(root, nil)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	if _, err := c.Write("paper-z", 1, []byte("img")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Block batch directory creation by occupying its name with a file.
	blocker := filepath.Join(root, BatchDir(2, testDay))
	if err := os.WriteFile(blocker, []byte("in the way"), 0o644); err != nil {
		t.Fatalf("planting blocker: %v", err)
	}

	if _, err := a.Archive(c, "paper-z", 2, testDay); err == nil {
		t.Fatal("expected archival failure")
	}
	if !c.Exists("paper-z") {
		t.Error("cache was deleted despite archival failure")
	}
}
