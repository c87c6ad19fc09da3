package imgcache

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestWriteAndEntries(t *testing.T) {
	c := newTestCache(t)

	// Write out of order; Entries must come back sorted by page.
	for _, page := range []int{7, 2, 14} {
		if _, err := c.Write("doc-a", page, []byte{0xff, 0xd8, byte(page)}); err != nil {
			t.Fatalf("Write page %d: %v", page, err)
		}
	}

	entries, err := c.Entries("doc-a")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i, want := range []int{2, 7, 14} {
		if entries[i].Page != want {
			t.Errorf("entries[%d].Page = %d, want %d", i, entries[i].Page, want)
		}
	}
}

func TestEntriesSurviveRestart(t *testing.T) {
	// The listing is rebuilt from disk, so a second Cache over the same root
	// sees everything the first one wrote.
	root := t.TempDir()
	c1, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c1.Write("doc-b", 3, []byte("img")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	c2, err := New(root)
	if err != nil {
		t.Fatalf("New again: %v", err)
	}
	if !c2.Exists("doc-b") {
		t.Error("fresh cache over same root does not see prior entries")
	}
}

func TestEntriesIgnoreForeignFiles(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Write("doc-c", 1, []byte("img")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, name := range []string{"notes.txt", "0.jpg", "x.jpg"} {
		if err := os.WriteFile(filepath.Join(c.Dir("doc-c"), name), []byte("junk"), 0o644); err != nil {
			t.Fatalf("planting %s: %v", name, err)
		}
	}

	entries, err := c.Entries("doc-c")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Page != 1 {
		t.Errorf("entries = %+v, want only page 1", entries)
	}
}

func TestWriteOverwrites(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Write("doc-d", 1, []byte("old")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	path, err := c.Write("doc-d", 1, []byte("new"))
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Write("doc-e", 1, []byte("img")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Delete("doc-e"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if c.Exists("doc-e") {
		t.Error("entry still exists after Delete")
	}
}

func TestRejectsEscapingIDs(t *testing.T) {
	c := newTestCache(t)
	for _, id := range []string{"", "..", "../outside", "a/../../b", "."} {
		if _, err := c.Write(id, 1, []byte("img")); err == nil {
			t.Errorf("Write(%q) accepted an escaping id", id)
		}
		if err := c.Delete(id); err == nil {
			t.Errorf("Delete(%q) accepted an escaping id", id)
		}
	}
}
