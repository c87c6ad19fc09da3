package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/cfstlab/papermine/extract"
	"github.com/cfstlab/papermine/validate"
)

func f(v float64) *float64 { return &v }

func TestSaveWorkbook(t *testing.T) {
	w := NewWriter(nil)
	w.Add(&extract.Result{
		Valid: true,
		Rectangular: []extract.SpecimenRecord{
			{RefNo: "Han_2004", SpecimenLabel: "S-1", B: f(100), H: f(100),
				T: f(4), R0: f(0), Fy: f(300), FcValue: f(40), NExp: f(800),
				Tier: string(validate.TierOK)},
		},
		Circular: []extract.SpecimenRecord{
			{RefNo: "Han_2004", SpecimenLabel: "C-1", Tier: string(validate.TierReview),
				NeedsManualCheck: true},
		},
	})
	if w.Total() != 2 {
		t.Fatalf("Total = %d, want 2", w.Total())
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := w.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	xf, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer xf.Close()

	// All three group sheets exist, even the empty one.
	sheets := xf.GetSheetList()
	for _, want := range []string{SheetRectangular, SheetCircular, SheetRoundEnded} {
		found := false
		for _, s := range sheets {
			if s == want {
				found = true
			}
		}
		if !found {
			t.Errorf("sheet %s missing from %v", want, sheets)
		}
	}

	rows, err := xf.GetRows(SheetRectangular)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rectangular rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "Ref.No." || rows[1][0] != "Han_2004" {
		t.Errorf("unexpected first column: %v / %v", rows[0][0], rows[1][0])
	}

	// Empty group still has headers.
	empty, err := xf.GetRows(SheetRoundEnded)
	if err != nil {
		t.Fatalf("GetRows empty sheet: %v", err)
	}
	if len(empty) != 1 {
		t.Errorf("empty sheet rows = %d, want header only", len(empty))
	}
}

func TestReport(t *testing.T) {
	groups := map[string]validate.Summary{
		SheetRectangular: {Total: 4, OK: 2, Review: 1, Errors: 1},
	}
	got := Report(groups)

	if !strings.Contains(got, "Total specimens: 4") {
		t.Errorf("report missing totals:\n%s", got)
	}
	if !strings.Contains(got, "Need manual check: 2 (50.0%)") {
		t.Errorf("report missing flagged percentage:\n%s", got)
	}
	if !strings.Contains(got, "=== Group_B ===") || !strings.Contains(got, "No specimens.") {
		t.Errorf("report missing empty groups:\n%s", got)
	}
}
