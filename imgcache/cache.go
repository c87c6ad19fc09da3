// Package imgcache persists rendered page images per document. The cache is
// the pipeline's checkpoint: once a document's pages are on disk, extraction
// can be retried or resumed without touching the source PDF again. It is not
// a general memoization layer — no eviction, no TTL — because evicting an
// entry would break the retry contract.
package imgcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Entry is one cached page image.
type Entry struct {
	Page int
	Path string
}

// Cache stores page images under <root>/<docID>/<page>.jpg.
type Cache struct {
	root string
}

// New creates the cache root if needed.
func New(root string) (*Cache, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache root: %w", err)
	}
	return &Cache{root: abs}, nil
}

// Root returns the absolute cache root.
func (c *Cache) Root() string { return c.root }

// Dir returns the document's cache directory path (not necessarily created).
func (c *Cache) Dir(docID string) string {
	return filepath.Join(c.root, docID)
}

// Write stores one page image, creating the document directory as needed.
// An existing entry is overwritten. The image lands under a temporary name
// first and is renamed into place, so a crash mid-write never leaves a
// truncated entry behind.
func (c *Cache) Write(docID string, page int, jpeg []byte) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("invalid page number %d", page)
	}
	dir, err := c.containedDir(docID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	final := filepath.Join(dir, strconv.Itoa(page)+".jpg")
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(jpeg); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("committing cache entry: %w", err)
	}
	return final, nil
}

// Entries lists the document's cached pages in ascending page order. It
// reads only the directory contents — no in-memory state — so a fresh
// process can resume a document by re-scanning disk.
func (c *Cache) Entries(docID string) ([]Entry, error) {
	dir, err := c.containedDir(docID)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		name := it.Name()
		if !strings.HasSuffix(name, ".jpg") {
			continue
		}
		page, err := strconv.Atoi(strings.TrimSuffix(name, ".jpg"))
		if err != nil || page < 1 {
			continue
		}
		entries = append(entries, Entry{Page: page, Path: filepath.Join(dir, name)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })
	return entries, nil
}

// Exists reports whether the document has a cache directory with at least
// one entry.
func (c *Cache) Exists(docID string) bool {
	entries, err := c.Entries(docID)
	return err == nil && len(entries) > 0
}

// Delete removes the document's entire cache directory. The target is
// verified to be lexically contained in the cache root before anything is
// removed, so a malformed identifier cannot escape the sandbox.
func (c *Cache) Delete(docID string) error {
	dir, err := c.containedDir(docID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// containedDir resolves the document directory and rejects identifiers that
// would resolve outside the cache root.
func (c *Cache) containedDir(docID string) (string, error) {
	if docID == "" {
		return "", fmt.Errorf("empty document id")
	}
	dir := filepath.Clean(filepath.Join(c.root, docID))
	if dir == c.root || !strings.HasPrefix(dir, c.root+string(filepath.Separator)) {
		return "", fmt.Errorf("document id %q escapes cache root", docID)
	}
	return dir, nil
}
