// Package validate checks extracted specimen records against closed-form
// CFST capacity estimates and assigns each record a confidence tier.
package validate

import (
	"math"

	"github.com/cfstlab/papermine/extract"
)

// Tier is the confidence classification of one record.
type Tier string

const (
	// TierOK means the measured capacity is physically plausible.
	TierOK Tier = "OK"
	// TierReview flags a record for manual inspection.
	TierReview Tier = "REVIEW"
	// TierError flags a likely unit or transcription error.
	TierError Tier = "ERROR"
)

// Thresholds bound the measured/theoretical capacity ratio. All boundaries
// are exclusive: a ratio sitting exactly on one falls to REVIEW.
type Thresholds struct {
	OKLow   float64 // OK band lower bound
	OKHigh  float64 // OK band upper bound
	ErrLow  float64 // below this is ERROR
	ErrHigh float64 // above this is ERROR
}

// DefaultThresholds returns the standard bands: OK strictly inside
// (0.8, 2.5), ERROR outside (0.1, 10), REVIEW in the gaps.
func DefaultThresholds() Thresholds {
	return Thresholds{OKLow: 0.8, OKHigh: 2.5, ErrLow: 0.1, ErrHigh: 10}
}

// Engine validates specimen records. It is stateless and safe for
// concurrent use.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a validation engine.
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Classify maps a capacity ratio to a tier.
func (e *Engine) Classify(ratio float64) Tier {
	t := e.thresholds
	switch {
	case ratio > t.OKLow && ratio < t.OKHigh:
		return TierOK
	case ratio < t.ErrLow || ratio > t.ErrHigh:
		return TierError
	default:
		return TierReview
	}
}

// TheoreticalCapacity computes the nominal squash load in kN for a section
// with outer width b, depth h, wall thickness t and corner radius r0 (all
// mm), steel yield fy and concrete strength fc (MPa). The single formula
// covers all three groups: r0 = 0 degenerates to the sharp-cornered
// rectangle and r0 = h/2 with b == h to the circular annulus.
func TheoreticalCapacity(b, h, t, r0, fy, fc float64) float64 {
	r1 := r0 - t
	if r1 < 0 {
		r1 = 0
	}
	concreteArea := (b-2*t)*(h-2*t) - (4-math.Pi)*r1*r1
	steelArea := 2*t*(b+h) - 4*t*t - (4-math.Pi)*(r0*r0-r1*r1)
	// mm² × MPa gives N; measured loads are reported in kN.
	return (steelArea*fy + concreteArea*fc) / 1000
}

// Validate annotates a record with its theoretical capacity, capacity
// ratio, and tier. Records missing any input field, or whose theoretical
// capacity is not positive, get no ratio and land in REVIEW — the ratio is
// never computed from a degenerate denominator.
func (e *Engine) Validate(rec *extract.SpecimenRecord) {
	rec.NTheory = nil
	rec.StrengthRatio = nil

	if rec.B == nil || rec.H == nil || rec.T == nil || rec.R0 == nil ||
		rec.Fy == nil || rec.FcValue == nil || rec.NExp == nil {
		rec.Tier = string(TierReview)
		rec.NeedsManualCheck = true
		return
	}

	capacity := TheoreticalCapacity(*rec.B, *rec.H, *rec.T, *rec.R0, *rec.Fy, *rec.FcValue)
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		rec.Tier = string(TierReview)
		rec.NeedsManualCheck = true
		return
	}
	rec.NTheory = &capacity

	ratio := *rec.NExp / capacity
	rec.StrengthRatio = &ratio

	tier := e.Classify(ratio)
	rec.Tier = string(tier)
	rec.NeedsManualCheck = tier != TierOK
}

// ValidateAll annotates every record in the result and returns a summary.
func (e *Engine) ValidateAll(result *extract.Result) Summary {
	var s Summary
	for _, gr := range result.Records() {
		e.Validate(gr.Record)
		s.observe(gr.Record)
	}
	return s
}

// ValidateGroups annotates every record and returns one summary per
// cross-section group.
func (e *Engine) ValidateGroups(result *extract.Result) map[extract.Group]Summary {
	out := make(map[extract.Group]Summary, 3)
	for _, gr := range result.Records() {
		e.Validate(gr.Record)
		s := out[gr.Group]
		s.observe(gr.Record)
		out[gr.Group] = s
	}
	return out
}

// Summary aggregates tier counts and ratio statistics over one document.
type Summary struct {
	Total  int
	OK     int
	Review int
	Errors int

	MinRatio float64
	MaxRatio float64
	sumRatio float64
	rated    int
}

func (s *Summary) observe(rec *extract.SpecimenRecord) {
	s.Total++
	switch Tier(rec.Tier) {
	case TierOK:
		s.OK++
	case TierError:
		s.Errors++
	default:
		s.Review++
	}
	if rec.StrengthRatio != nil {
		r := *rec.StrengthRatio
		if s.rated == 0 || r < s.MinRatio {
			s.MinRatio = r
		}
		if s.rated == 0 || r > s.MaxRatio {
			s.MaxRatio = r
		}
		s.sumRatio += r
		s.rated++
	}
}

// Merge folds another summary into this one, preserving ratio extrema.
func (s *Summary) Merge(other Summary) {
	s.Total += other.Total
	s.OK += other.OK
	s.Review += other.Review
	s.Errors += other.Errors
	if other.rated > 0 {
		if s.rated == 0 || other.MinRatio < s.MinRatio {
			s.MinRatio = other.MinRatio
		}
		if s.rated == 0 || other.MaxRatio > s.MaxRatio {
			s.MaxRatio = other.MaxRatio
		}
		s.sumRatio += other.sumRatio
		s.rated += other.rated
	}
}

// MeanRatio returns the average capacity ratio over records that have one,
// or 0 when none do.
func (s *Summary) MeanRatio() float64 {
	if s.rated == 0 {
		return 0
	}
	return s.sumRatio / float64(s.rated)
}

// Clean reports whether no record needs manual attention.
func (s *Summary) Clean() bool {
	return s.Review == 0 && s.Errors == 0
}
