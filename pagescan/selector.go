package pagescan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Config holds the selection thresholds layered on top of scoring.
type Config struct {
	// ShortPaperThreshold: documents at or below this page count skip
	// scoring entirely and are scanned in full.
	ShortPaperThreshold int `json:"short_paper_threshold"`

	// MaxScanLimit caps the "first N pages" fallback used when text
	// extraction fails for the whole document.
	MaxScanLimit int `json:"max_scan_limit"`

	// MaxSelectedPages is the target size of a filtered selection.
	MaxSelectedPages int `json:"max_selected_pages"`

	// AbsoluteMaxPages is a hard system-wide ceiling applied after every
	// heuristic.
	AbsoluteMaxPages int `json:"absolute_max_pages"`

	Scoring ScoringConfig `json:"scoring"`
}

// DefaultConfig returns the selection defaults.
func DefaultConfig() Config {
	return Config{
		ShortPaperThreshold: 15,
		MaxScanLimit:        10,
		MaxSelectedPages:    8,
		AbsoluteMaxPages:    30,
		Scoring:             DefaultScoringConfig(),
	}
}

// TextSource supplies per-page text for scoring. Implemented by
// pdfdoc.Document; tests use in-memory fakes.
type TextSource interface {
	// PageCount returns the total number of pages.
	PageCount() int

	// PageTexts returns extracted text keyed by 1-based page number.
	// Pages that fail to extract individually are simply absent; an error
	// means extraction failed for the whole document.
	PageTexts(ctx context.Context) (map[int]string, error)
}

// Selection is the outcome of page selection: the 1-based page numbers to
// render, in ascending order, plus a human-readable strategy label.
type Selection struct {
	Pages    []int
	Strategy string

	// Degraded is set when whole-document text extraction failed and the
	// selector fell back to a truncated scan.
	Degraded bool
}

// Selector applies the adaptive page-selection strategy.
type Selector struct {
	cfg    Config
	scorer *Scorer
}

// NewSelector builds a selector, compiling the scoring patterns.
func NewSelector(cfg Config) (*Selector, error) {
	scorer, err := NewScorer(cfg.Scoring)
	if err != nil {
		return nil, err
	}
	return &Selector{cfg: cfg, scorer: scorer}, nil
}

// Select decides which pages of the document get rendered to images.
//
// Short documents are scanned in full without scoring. Longer documents are
// scored page by page; the top-scoring pages win, reference-heavy pages are
// excluded, page 1 is always kept (the abstract disambiguates document type
// for the vision model), and the result is clamped to the absolute ceiling.
// Output is deterministic: ascending page order, stable tie-breaks.
func (s *Selector) Select(ctx context.Context, src TextSource) Selection {
	total := src.PageCount()
	if total == 0 {
		return Selection{Strategy: "empty document"}
	}

	if total <= s.cfg.ShortPaperThreshold {
		return Selection{
			Pages:    pageRange(1, total),
			Strategy: "full scan",
		}
	}

	texts, err := src.PageTexts(ctx)
	if err != nil || !hasUsableText(texts) {
		if err != nil {
			slog.Warn("pagescan: text extraction failed, degraded mode", "error", err)
		}
		n := min(total, s.cfg.MaxScanLimit)
		return Selection{
			Pages:    pageRange(1, n),
			Strategy: "fallback: truncated scan",
			Degraded: err != nil,
		}
	}

	scores := make([]PageScore, 0, total)
	for p := 1; p <= total; p++ {
		scores = append(scores, s.scorer.Score(p, texts[p]))
	}

	// Descending by score, ascending page number on ties.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Page < scores[j].Page
	})

	selected := make(map[int]bool)
	for _, ps := range scores {
		if len(selected) >= s.cfg.MaxSelectedPages {
			break
		}
		if ps.Score < 0 {
			// Reference-heavy pages are excluded even if that leaves the
			// selection short of the target.
			continue
		}
		selected[ps.Page] = true
	}
	if len(selected) == 0 {
		// Every page scored negative; keep the least-bad one rather than
		// selecting nothing.
		selected[scores[0].Page] = true
	}

	// Mandatory anchor.
	selected[1] = true

	pages := make([]int, 0, len(selected))
	for p := range selected {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	if len(pages) > s.cfg.AbsoluteMaxPages {
		pages = pages[:s.cfg.AbsoluteMaxPages]
	}

	return Selection{
		Pages:    pages,
		Strategy: fmt.Sprintf("filtered: %d of %d pages", len(pages), total),
	}
}

func hasUsableText(texts map[int]string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

func pageRange(first, last int) []int {
	pages := make([]int, 0, last-first+1)
	for p := first; p <= last; p++ {
		pages = append(pages, p)
	}
	return pages
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
