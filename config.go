package papermine

import (
	"fmt"
	"path/filepath"

	"github.com/cfstlab/papermine/llm"
	"github.com/cfstlab/papermine/pagescan"
	"github.com/cfstlab/papermine/validate"
)

// Config holds all configuration for the extraction pipeline.
type Config struct {
	// InputDir holds the source PDFs.
	InputDir string `json:"input_dir"`

	// CacheDir is the root of the per-document image cache.
	CacheDir string `json:"cache_dir"`

	// ArchiveDir receives dated batch archives of processed image caches.
	ArchiveDir string `json:"archive_dir"`

	// OutputDir receives the result workbook. Defaults to InputDir.
	OutputDir string `json:"output_dir"`

	// FailedDir, ExcludedDir and ReviewDir receive source PDFs routed by
	// outcome: unreadable, rejected by the model, and valid-but-empty.
	FailedDir   string `json:"failed_dir"`
	ExcludedDir string `json:"excluded_dir"`
	ReviewDir   string `json:"review_dir"`

	// StatePath is the SQLite state database. Defaults to
	// <CacheDir>/papermine.db.
	StatePath string `json:"state_path"`

	// Vision configures the extraction model endpoint.
	Vision llm.Config `json:"vision"`

	// Selection tunes page selection; zero value uses defaults.
	Selection pagescan.Config `json:"selection"`

	// Thresholds tunes validation tier bands; zero value uses defaults.
	Thresholds validate.Thresholds `json:"thresholds"`

	// MaxPages caps how many selected pages get rendered per document.
	MaxPages int `json:"max_pages"`

	// RenderDPI and RenderQuality tune page rasterization.
	RenderDPI     int `json:"render_dpi"`
	RenderQuality int `json:"render_quality"`

	// Concurrency bounds parallel document processing; 1 is sequential.
	Concurrency int `json:"concurrency"`
}

// DefaultConfig returns a Config with the standard layout rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		InputDir:      filepath.Join(dir, "files"),
		CacheDir:      filepath.Join(dir, "cache"),
		ArchiveDir:    filepath.Join(dir, "archive"),
		OutputDir:     dir,
		FailedDir:     filepath.Join(dir, "NotInput"),
		ExcludedDir:   filepath.Join(dir, "Excluded"),
		ReviewDir:     filepath.Join(dir, "Manual_Review"),
		Selection:     pagescan.DefaultConfig(),
		Thresholds:    validate.DefaultThresholds(),
		MaxPages:      25,
		RenderDPI:     150,
		RenderQuality: 95,
		Concurrency:   1,
	}
}

// Validate checks the configuration and fills derived defaults in place.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input_dir is required", ErrInvalidConfig)
	}
	if c.CacheDir == "" {
		return fmt.Errorf("%w: cache_dir is required", ErrInvalidConfig)
	}
	if c.ArchiveDir == "" {
		return fmt.Errorf("%w: archive_dir is required", ErrInvalidConfig)
	}
	if c.Vision.Provider == "" || c.Vision.Model == "" {
		return fmt.Errorf("%w: vision provider and model are required", ErrInvalidConfig)
	}
	if c.Vision.Provider != "custom" && c.Vision.APIKey == "" {
		return fmt.Errorf("%w: vision api_key is required for provider %s", ErrInvalidConfig, c.Vision.Provider)
	}
	if c.OutputDir == "" {
		c.OutputDir = c.InputDir
	}
	if c.StatePath == "" {
		c.StatePath = filepath.Join(c.CacheDir, "papermine.db")
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 25
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = 150
	}
	if c.RenderQuality <= 0 {
		c.RenderQuality = 95
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Selection.ShortPaperThreshold == 0 && c.Selection.MaxSelectedPages == 0 {
		c.Selection = pagescan.DefaultConfig()
	}
	if c.Thresholds == (validate.Thresholds{}) {
		c.Thresholds = validate.DefaultThresholds()
	}
	return nil
}
