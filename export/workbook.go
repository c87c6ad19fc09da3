// Package export writes validated specimen records to a styled XLSX
// workbook, one sheet per cross-section group, with tier-colored rows for
// manual review.
package export

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cfstlab/papermine/extract"
	"github.com/cfstlab/papermine/validate"
)

// Sheet names, fixed so downstream tooling can find its group.
const (
	SheetRectangular = "Group_A"
	SheetCircular    = "Group_B"
	SheetRoundEnded  = "Group_C"
)

// column pairs a header with an accessor into the record.
type column struct {
	header string
	value  func(*extract.SpecimenRecord) any
}

func num(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

// columns defines the export order. source_evidence sits next to the
// measured load so a reviewer can trace a suspicious number without
// scrolling.
var columns = []column{
	{"Ref.No.", func(r *extract.SpecimenRecord) any { return r.RefNo }},
	{"Specimen", func(r *extract.SpecimenRecord) any { return r.SpecimenLabel }},
	{"fc (MPa)", func(r *extract.SpecimenRecord) any { return num(r.FcValue) }},
	{"fc type", func(r *extract.SpecimenRecord) any { return r.FcType }},
	{"fy (MPa)", func(r *extract.SpecimenRecord) any { return num(r.Fy) }},
	{"fcy150", func(r *extract.SpecimenRecord) any { return r.Fcy150 }},
	{"RA ratio (%)", func(r *extract.SpecimenRecord) any { return num(r.RRatio) }},
	{"b (mm)", func(r *extract.SpecimenRecord) any { return num(r.B) }},
	{"h (mm)", func(r *extract.SpecimenRecord) any { return num(r.H) }},
	{"t (mm)", func(r *extract.SpecimenRecord) any { return num(r.T) }},
	{"r0 (mm)", func(r *extract.SpecimenRecord) any { return num(r.R0) }},
	{"L (mm)", func(r *extract.SpecimenRecord) any { return num(r.L) }},
	{"e1 (mm)", func(r *extract.SpecimenRecord) any { return num(r.E1) }},
	{"e2 (mm)", func(r *extract.SpecimenRecord) any { return num(r.E2) }},
	{"Nexp (kN)", func(r *extract.SpecimenRecord) any { return num(r.NExp) }},
	{"Source", func(r *extract.SpecimenRecord) any { return r.SourceEvidence }},
	{"Ntheory (kN)", func(r *extract.SpecimenRecord) any { return num(r.NTheory) }},
	{"Nexp/Ntheory", func(r *extract.SpecimenRecord) any { return num(r.StrengthRatio) }},
	{"Tier", func(r *extract.SpecimenRecord) any { return r.Tier }},
	{"Manual check", func(r *extract.SpecimenRecord) any { return r.NeedsManualCheck }},
}

// Writer accumulates records across documents and writes one workbook.
type Writer struct {
	logger *slog.Logger

	rectangular []extract.SpecimenRecord
	circular    []extract.SpecimenRecord
	roundEnded  []extract.SpecimenRecord
}

// NewWriter creates an empty workbook writer. A nil logger uses
// slog.Default.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// Add appends a document's validated records.
func (w *Writer) Add(result *extract.Result) {
	w.rectangular = append(w.rectangular, result.Rectangular...)
	w.circular = append(w.circular, result.Circular...)
	w.roundEnded = append(w.roundEnded, result.RoundEnded...)
}

// Total returns the number of accumulated records.
func (w *Writer) Total() int {
	return len(w.rectangular) + len(w.circular) + len(w.roundEnded)
}

// Save writes the workbook to path. Every group gets a sheet even when
// empty, so the file shape is stable for downstream consumers.
func (w *Writer) Save(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newTierStyles(f)
	if err != nil {
		return fmt.Errorf("building cell styles: %w", err)
	}

	sheets := []struct {
		name    string
		records []extract.SpecimenRecord
	}{
		{SheetRectangular, w.rectangular},
		{SheetCircular, w.circular},
		{SheetRoundEnded, w.roundEnded},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.records, styles); err != nil {
			return fmt.Errorf("writing sheet %s: %w", s.name, err)
		}
	}

	// Drop the default sheet excelize creates.
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}
	if idx, err := f.GetSheetIndex(SheetRectangular); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	w.logger.Info("workbook written", "path", path,
		"rectangular", len(w.rectangular),
		"circular", len(w.circular),
		"round_ended", len(w.roundEnded),
	)
	return nil
}

// tierStyles holds the fill style ID per tier.
type tierStyles map[validate.Tier]int

func newTierStyles(f *excelize.File) (tierStyles, error) {
	mk := func(color string) (int, error) {
		return f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
	}
	green, err := mk("C6EFCE")
	if err != nil {
		return nil, err
	}
	yellow, err := mk("FFEB9C")
	if err != nil {
		return nil, err
	}
	red, err := mk("FFC7CE")
	if err != nil {
		return nil, err
	}
	return tierStyles{
		validate.TierOK:     green,
		validate.TierReview: yellow,
		validate.TierError:  red,
	}, nil
}

func writeSheet(f *excelize.File, sheet string, records []extract.SpecimenRecord, styles tierStyles) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col.header); err != nil {
			return err
		}
	}

	for row, rec := range records {
		for i, col := range columns {
			cell, err := excelize.CoordinatesToCellName(i+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, col.value(&records[row])); err != nil {
				return err
			}
		}
		if style, ok := styles[validate.Tier(rec.Tier)]; ok {
			first, _ := excelize.CoordinatesToCellName(1, row+2)
			last, _ := excelize.CoordinatesToCellName(len(columns), row+2)
			if err := f.SetCellStyle(sheet, first, last, style); err != nil {
				return err
			}
		}
	}
	return nil
}

// Report renders a plain-text validation summary per group, for the run
// log and for operators who never open the workbook.
func Report(groups map[string]validate.Summary) string {
	var b strings.Builder
	for _, name := range []string{SheetRectangular, SheetCircular, SheetRoundEnded} {
		s, ok := groups[name]
		if !ok || s.Total == 0 {
			fmt.Fprintf(&b, "=== %s ===\nNo specimens.\n\n", name)
			continue
		}
		flagged := s.Review + s.Errors
		fmt.Fprintf(&b, "=== %s ===\n", name)
		fmt.Fprintf(&b, "Total specimens: %d\n", s.Total)
		fmt.Fprintf(&b, "Need manual check: %d (%.1f%%)\n", flagged, 100*float64(flagged)/float64(s.Total))
		fmt.Fprintf(&b, "OK: %d  REVIEW: %d  ERROR: %d\n", s.OK, s.Review, s.Errors)
		if s.Total > s.Review+s.Errors || s.MeanRatio() > 0 {
			fmt.Fprintf(&b, "Ratio min/mean/max: %.3f / %.3f / %.3f\n", s.MinRatio, s.MeanRatio(), s.MaxRatio)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
