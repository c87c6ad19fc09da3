package pagescan

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// fakeSource is an in-memory TextSource.
type fakeSource struct {
	pages int
	texts map[int]string
	err   error
}

func (f *fakeSource) PageCount() int { return f.pages }

func (f *fakeSource) PageTexts(ctx context.Context) (map[int]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.texts, nil
}

func newTestSelector(t *testing.T) *Selector {
	t.Helper()
	sel, err := NewSelector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return sel
}

func TestSelectEmptyDocument(t *testing.T) {
	sel := newTestSelector(t)

	got := sel.Select(context.Background(), &fakeSource{pages: 0})
	if len(got.Pages) != 0 {
		t.Errorf("Pages = %v, want empty", got.Pages)
	}
}

func TestSelectShortPaperBypass(t *testing.T) {
	// P4: at or below the threshold, all pages are selected regardless of
	// content — scoring is skipped entirely.
	sel := newTestSelector(t)

	src := &fakeSource{pages: 5, texts: map[int]string{1: "References"}}
	got := sel.Select(context.Background(), src)

	if !reflect.DeepEqual(got.Pages, []int{1, 2, 3, 4, 5}) {
		t.Errorf("Pages = %v, want 1..5", got.Pages)
	}
	if got.Strategy != "full scan" {
		t.Errorf("Strategy = %q, want %q", got.Strategy, "full scan")
	}
}

func TestSelectDeterministic(t *testing.T) {
	// P1: identical inputs produce identical ordered output.
	sel := newTestSelector(t)

	texts := make(map[int]string)
	for p := 1; p <= 40; p++ {
		texts[p] = fmt.Sprintf("page %d content", p)
	}
	texts[7] = "Table 1: Specimen results"
	texts[22] = "Table 2: dimensions"
	src := &fakeSource{pages: 40, texts: texts}

	first := sel.Select(context.Background(), src)
	for i := 0; i < 10; i++ {
		again := sel.Select(context.Background(), src)
		if !reflect.DeepEqual(first.Pages, again.Pages) {
			t.Fatalf("run %d: Pages = %v, want %v", i, again.Pages, first.Pages)
		}
	}
}

func TestSelectAnchorAndOrdering(t *testing.T) {
	// P2: page 1 always survives filtering even with a terrible score.
	sel := newTestSelector(t)

	texts := make(map[int]string)
	for p := 1; p <= 30; p++ {
		texts[p] = "filler text"
	}
	texts[1] = "References" // would normally be excluded
	texts[18] = "Table 3: Specimen C-1, kN, mm"
	src := &fakeSource{pages: 30, texts: texts}

	got := sel.Select(context.Background(), src)

	if len(got.Pages) == 0 || got.Pages[0] != 1 {
		t.Fatalf("Pages = %v, want page 1 first", got.Pages)
	}
	for i := 1; i < len(got.Pages); i++ {
		if got.Pages[i] <= got.Pages[i-1] {
			t.Fatalf("Pages not strictly ascending: %v", got.Pages)
		}
	}
	if !containsPage(got.Pages, 18) {
		t.Errorf("Pages = %v, want high-score page 18 included", got.Pages)
	}
}

func TestSelectExcludesReferencePages(t *testing.T) {
	sel := newTestSelector(t)

	texts := make(map[int]string)
	for p := 1; p <= 20; p++ {
		if p >= 15 {
			texts[p] = "References\n[1] something"
		} else {
			texts[p] = fmt.Sprintf("normal content %d", p)
		}
	}
	src := &fakeSource{pages: 20, texts: texts}

	got := sel.Select(context.Background(), src)
	for _, p := range got.Pages {
		if p >= 15 {
			t.Errorf("reference page %d selected: %v", p, got.Pages)
		}
	}
}

func TestSelectScenarioLongPaper(t *testing.T) {
	// A 40-page paper with one strong data page and one reference page:
	// data page in, reference page out, page 1 in, at most the target size.
	cfg := DefaultConfig()
	sel, err := NewSelector(cfg)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	texts := make(map[int]string)
	for p := 1; p <= 40; p++ {
		texts[p] = "ordinary prose"
	}
	texts[12] = "Table 3\nSpecimen C-1, kN, mm"
	texts[38] = "References"
	src := &fakeSource{pages: 40, texts: texts}

	got := sel.Select(context.Background(), src)

	if !containsPage(got.Pages, 12) {
		t.Errorf("Pages = %v, want 12 included", got.Pages)
	}
	if containsPage(got.Pages, 38) {
		t.Errorf("Pages = %v, want 38 excluded", got.Pages)
	}
	if !containsPage(got.Pages, 1) {
		t.Errorf("Pages = %v, want 1 included", got.Pages)
	}
	if len(got.Pages) > cfg.MaxSelectedPages+1 {
		t.Errorf("len(Pages) = %d, exceeds target %d (+anchor)", len(got.Pages), cfg.MaxSelectedPages)
	}
}

func TestSelectAbsoluteCeiling(t *testing.T) {
	// P3: no configuration escapes the hard ceiling.
	cfg := DefaultConfig()
	cfg.MaxSelectedPages = 100
	cfg.AbsoluteMaxPages = 30
	sel, err := NewSelector(cfg)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	texts := make(map[int]string)
	for p := 1; p <= 200; p++ {
		texts[p] = "Table 1: Specimen data"
	}
	src := &fakeSource{pages: 200, texts: texts}

	got := sel.Select(context.Background(), src)
	if len(got.Pages) > 30 {
		t.Errorf("len(Pages) = %d, want <= 30", len(got.Pages))
	}
	if !containsPage(got.Pages, 1) {
		t.Errorf("ceiling clamp dropped the anchor page: %v", got.Pages)
	}
}

func TestSelectFallbackOnExtractionFailure(t *testing.T) {
	sel := newTestSelector(t)

	src := &fakeSource{pages: 40, err: errors.New("encrypted xref")}
	got := sel.Select(context.Background(), src)

	if !reflect.DeepEqual(got.Pages, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("Pages = %v, want first 10", got.Pages)
	}
	if got.Strategy != "fallback: truncated scan" {
		t.Errorf("Strategy = %q", got.Strategy)
	}
	if !got.Degraded {
		t.Error("expected Degraded")
	}
}

func TestSelectFallbackOnNoUsableText(t *testing.T) {
	sel := newTestSelector(t)

	texts := make(map[int]string)
	for p := 1; p <= 20; p++ {
		texts[p] = "  \n "
	}
	src := &fakeSource{pages: 20, texts: texts}

	got := sel.Select(context.Background(), src)
	if got.Strategy != "fallback: truncated scan" {
		t.Errorf("Strategy = %q, want truncated fallback", got.Strategy)
	}
	if got.Degraded {
		t.Error("no-usable-text fallback is not degraded mode")
	}
}

func TestSelectAllNegativeKeepsOne(t *testing.T) {
	sel := newTestSelector(t)

	texts := make(map[int]string)
	for p := 1; p <= 20; p++ {
		texts[p] = "References"
	}
	src := &fakeSource{pages: 20, texts: texts}

	got := sel.Select(context.Background(), src)
	if len(got.Pages) == 0 {
		t.Fatal("selection must not be empty for a non-empty document")
	}
}

func containsPage(pages []int, p int) bool {
	for _, q := range pages {
		if q == p {
			return true
		}
	}
	return false
}
