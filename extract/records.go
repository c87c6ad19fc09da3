// Package extract turns cached page images into structured specimen
// records using a vision model, validating and normalizing the model's
// JSON output before anything downstream sees it.
package extract

// Group identifies a specimen cross-section family.
type Group string

const (
	// GroupRectangular covers square and rectangular tubes.
	GroupRectangular Group = "rectangular"
	// GroupCircular covers circular tubes.
	GroupCircular Group = "circular"
	// GroupRoundEnded covers round-ended (stadium-shaped) tubes.
	GroupRoundEnded Group = "round_ended"
)

// SpecimenRecord is one extracted test specimen. Numeric fields are
// pointers because the source tables routinely omit values, and "absent"
// must stay distinguishable from zero all the way into validation.
type SpecimenRecord struct {
	RefNo         string `json:"ref_no"`
	SpecimenLabel string `json:"specimen_label"`

	FcValue *float64 `json:"fc_value"` // concrete strength, MPa
	FcType  string   `json:"fc_type"`  // cube / cylinder / prism
	Fy      *float64 `json:"fy"`       // steel yield strength, MPa
	Fcy150  string   `json:"fcy150"`   // reserved column, always empty
	RRatio  *float64 `json:"r_ratio"`  // reinforcement ratio, if reported

	B  *float64 `json:"b"`  // section width, mm
	H  *float64 `json:"h"`  // section depth, mm
	T  *float64 `json:"t"`  // tube wall thickness, mm
	R0 *float64 `json:"r0"` // end radius, mm
	L  *float64 `json:"L"`  // specimen length, mm
	E1 *float64 `json:"e1"` // load eccentricity at top, mm
	E2 *float64 `json:"e2"` // load eccentricity at bottom, mm

	NExp *float64 `json:"n_exp"` // experimental ultimate load, kN

	SourceEvidence string `json:"source_evidence,omitempty"`

	// Filled in by validation, not by the model.
	NTheory          *float64 `json:"n_theory,omitempty"`
	StrengthRatio    *float64 `json:"strength_ratio,omitempty"`
	Tier             string   `json:"tier,omitempty"`
	NeedsManualCheck bool     `json:"needs_manual_check,omitempty"`
}

// Result is the parsed outcome of one extraction call.
type Result struct {
	Valid  bool
	Reason string

	Rectangular []SpecimenRecord
	Circular    []SpecimenRecord
	RoundEnded  []SpecimenRecord
}

// Records returns all specimen records tagged with their group, in stable
// group order.
func (r *Result) Records() []GroupedRecord {
	out := make([]GroupedRecord, 0, len(r.Rectangular)+len(r.Circular)+len(r.RoundEnded))
	for i := range r.Rectangular {
		out = append(out, GroupedRecord{Group: GroupRectangular, Record: &r.Rectangular[i]})
	}
	for i := range r.Circular {
		out = append(out, GroupedRecord{Group: GroupCircular, Record: &r.Circular[i]})
	}
	for i := range r.RoundEnded {
		out = append(out, GroupedRecord{Group: GroupRoundEnded, Record: &r.RoundEnded[i]})
	}
	return out
}

// Empty reports whether the result carries no specimen data at all.
func (r *Result) Empty() bool {
	return len(r.Rectangular) == 0 && len(r.Circular) == 0 && len(r.RoundEnded) == 0
}

// GroupedRecord pairs a record with its cross-section group.
type GroupedRecord struct {
	Group  Group
	Record *SpecimenRecord
}

// Normalize enforces the geometric conventions of each group on every
// record: circular sections are forced to b == h with r0 = h/2, round-ended
// sections get b >= h with r0 = h/2, and rectangular sections always carry
// r0 = 0. Models drift on these redundancies, and validation depends on
// them holding.
func (r *Result) Normalize() {
	for i := range r.Rectangular {
		zero := 0.0
		r.Rectangular[i].R0 = &zero
	}
	for i := range r.Circular {
		rec := &r.Circular[i]
		if rec.H == nil && rec.B != nil {
			rec.H = rec.B
		}
		if rec.H != nil {
			h := *rec.H
			rec.B = &h
			half := h / 2
			rec.R0 = &half
		}
	}
	for i := range r.RoundEnded {
		rec := &r.RoundEnded[i]
		if rec.B != nil && rec.H != nil && *rec.B < *rec.H {
			rec.B, rec.H = rec.H, rec.B
		}
		if rec.H != nil {
			half := *rec.H / 2
			rec.R0 = &half
		}
	}
}

// SetReference stamps every record with the originating document
// identifier. The model is not trusted to carry provenance.
func (r *Result) SetReference(ref string) {
	for i := range r.Rectangular {
		r.Rectangular[i].RefNo = ref
	}
	for i := range r.Circular {
		r.Circular[i].RefNo = ref
	}
	for i := range r.RoundEnded {
		r.RoundEnded[i].RefNo = ref
	}
}
