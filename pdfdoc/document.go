// Package pdfdoc wraps source PDF access: stable document identifiers,
// page counting, per-page text extraction, and page rasterization.
package pdfdoc

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ID derives a stable, filesystem-safe identifier from a PDF path. The
// identifier names the document's cache directory and archive file, so it
// must never contain path separators or other hostile runes.
func ID(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := unsafeIDChars.ReplaceAllString(base, "_")
	id = strings.Trim(id, "._")
	if id == "" {
		return "document"
	}
	return id
}

// Document is one source PDF.
type Document struct {
	path  string
	id    string
	pages int
}

// Open validates the PDF far enough to count its pages.
func Open(path string) (*Document, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading page count of %s: %w", filepath.Base(path), err)
	}
	return &Document{path: path, id: ID(path), pages: pages}, nil
}

// Path returns the source file path.
func (d *Document) Path() string { return d.path }

// ID returns the stable document identifier.
func (d *Document) ID() string { return d.id }

// PageCount returns the total number of pages.
func (d *Document) PageCount() int { return d.pages }

// PageTexts extracts plain text for every page, keyed by 1-based page
// number. Pages that fail individually are skipped; a whole-document
// failure returns an error so the selector can fall back to a truncated
// scan.
func (d *Document) PageTexts(ctx context.Context) (texts map[int]string, err error) {
	// The pdf reader panics on some malformed xref tables; a garbled
	// document must degrade to fallback selection, not crash the batch.
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	f, reader, err := pdf.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF for text extraction: %w", err)
	}
	defer f.Close()

	texts = make(map[int]string, d.pages)
	for i := 1; i <= reader.NumPage(); i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			// Skip pages that fail to extract.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		texts[i] = text
	}
	return texts, nil
}
