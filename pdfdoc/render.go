package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Renderer rasterizes a single PDF page to a JPEG image. The pipeline only
// needs this one operation, and keeping it behind an interface lets tests
// inject a fake and leaves room for a different rasterizing backend.
type Renderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// PopplerRenderer renders pages by shelling out to pdftoppm. JPEG at
// quality 95 is a deliberate size/fidelity trade-off: the images feed a
// vision model that reads table digits, re-extraction is expensive, and
// storage is cheap.
type PopplerRenderer struct {
	// DPI for rasterization; 0 means 150.
	DPI int

	// Quality is the JPEG quality; 0 means 95.
	Quality int
}

// RenderPage renders one 1-based page to JPEG bytes.
func (r *PopplerRenderer) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	dpi := r.DPI
	if dpi == 0 {
		dpi = 150
	}
	quality := r.Quality
	if quality == 0 {
		quality = 95
	}

	tmp, err := os.MkdirTemp("", "papermine-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-jpegopt", fmt.Sprintf("quality=%d", quality),
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		pdfPath, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, strings.TrimSpace(stderr.String()))
	}

	img, err := os.ReadFile(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("reading rendered page %d: %w", page, err)
	}
	return img, nil
}

// CheckPoppler verifies that pdftoppm is available. Called once at startup
// so a missing poppler install fails loudly before any document is touched.
func CheckPoppler() error {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return fmt.Errorf("pdftoppm not found (install poppler-utils): %w", err)
	}
	return nil
}
