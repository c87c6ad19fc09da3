package imgcache

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Archiver moves a document's cached images into a dated batch zip and then
// reclaims the cache directory. Archival is the terminal step for a
// successful document: until it completes, the cache entry stays on disk.
type Archiver struct {
	root   string
	logger *slog.Logger
}

// NewArchiver creates the archive root if needed.
func NewArchiver(root string, logger *slog.Logger) (*Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive root: %w", err)
	}
	return &Archiver{root: abs, logger: logger}, nil
}

// BatchDir returns the directory name for a batch archived on the given day.
func BatchDir(batch int, now time.Time) string {
	return fmt.Sprintf("Dataset (%d) %s", batch, now.Format("2006-01-02"))
}

// Archive zips the document's cache directory into
// <root>/Dataset (N) YYYY-MM-DD/<docID>_images.zip and deletes the cache
// directory afterwards. If the zip already exists, the cache is reclaimed
// without rewriting the archive, so a re-run after a crash between zip and
// delete converges instead of failing. On any archival error the cache
// directory is left untouched.
func (a *Archiver) Archive(cache *Cache, docID string, batch int, now time.Time) (string, error) {
	entries, err := cache.Entries(docID)
	if err != nil {
		return "", fmt.Errorf("reading cache for archival: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no cached images to archive for %s", docID)
	}

	dir := filepath.Join(a.root, BatchDir(batch, now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating batch dir: %w", err)
	}
	zipPath := filepath.Join(dir, docID+"_images.zip")

	if _, err := os.Stat(zipPath); err == nil {
		a.logger.Info("archive already exists, reclaiming cache only",
			"doc_id", docID, "zip", zipPath)
	} else {
		if err := writeZip(zipPath, entries); err != nil {
			return "", err
		}
		a.logger.Info("archived document images",
			"doc_id", docID, "zip", zipPath, "pages", len(entries))
	}

	if err := cache.Delete(docID); err != nil {
		return "", fmt.Errorf("reclaiming cache after archival: %w", err)
	}
	return zipPath, nil
}

// writeZip builds the archive under a temporary name and renames it into
// place, so an interrupted run never leaves a half-written zip that a later
// run would mistake for a completed one.
func writeZip(zipPath string, entries []Entry) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(zipPath), ".tmp-zip-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, e := range entries {
		w, werr := zw.Create(filepath.Base(e.Path))
		if werr != nil {
			zw.Close()
			tmp.Close()
			err = fmt.Errorf("adding %s to archive: %w", filepath.Base(e.Path), werr)
			return err
		}
		f, ferr := os.Open(e.Path)
		if ferr != nil {
			zw.Close()
			tmp.Close()
			err = ferr
			return err
		}
		_, cerr := io.Copy(w, f)
		f.Close()
		if cerr != nil {
			zw.Close()
			tmp.Close()
			err = fmt.Errorf("writing %s to archive: %w", filepath.Base(e.Path), cerr)
			return err
		}
	}
	if err = zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), zipPath); err != nil {
		return fmt.Errorf("committing archive: %w", err)
	}
	return nil
}
