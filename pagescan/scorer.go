// Package pagescan decides which pages of an academic paper are worth
// rendering for vision analysis. Scoring is a cheap regex pass over the
// page text; selection applies thresholds and fallbacks on top of it.
package pagescan

import (
	"fmt"
	"regexp"
	"strings"
)

// ScoringConfig holds the weights and patterns for page relevance scoring.
type ScoringConfig struct {
	TableWeight     int `json:"table_weight"`
	DataWeight      int `json:"data_weight"`
	ReferenceWeight int `json:"reference_weight"`
	BaseWeight      int `json:"base_weight"`

	TablePatterns     []string `json:"table_patterns"`
	DataPatterns      []string `json:"data_patterns"`
	ReferencePatterns []string `json:"reference_patterns"`
}

// DefaultScoringConfig returns the weights and patterns tuned for
// experimental CFST papers.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TableWeight:     10,
		DataWeight:      5,
		ReferenceWeight: -5,
		BaseWeight:      1,
		TablePatterns: []string{
			`(?i)Table\s+\d+`,
			`(?i)Tab\.\s*\d+`,
		},
		DataPatterns: []string{
			`(?i)Specimen`,
			`(?i)Experimental`,
			`\d+\.\d+\s*(?:mm|MPa|kN)`,
		},
		ReferencePatterns: []string{
			`(?i)\bReferences?\b`,
			`(?i)\bBibliography\b`,
		},
	}
}

// PageScore is the ephemeral result of scoring a single page.
type PageScore struct {
	Page           int
	Score          int
	TableMatch     bool
	ReferenceMatch bool
}

// Scorer scores page text for likely specimen-data relevance. It is a pure
// function over the text: no I/O, safe for concurrent use.
type Scorer struct {
	cfg       ScoringConfig
	tableRe   []*regexp.Regexp
	dataRe    []*regexp.Regexp
	refRe     []*regexp.Regexp
}

// NewScorer compiles the configured patterns.
func NewScorer(cfg ScoringConfig) (*Scorer, error) {
	s := &Scorer{cfg: cfg}
	var err error
	if s.tableRe, err = compileAll(cfg.TablePatterns); err != nil {
		return nil, fmt.Errorf("table patterns: %w", err)
	}
	if s.dataRe, err = compileAll(cfg.DataPatterns); err != nil {
		return nil, fmt.Errorf("data patterns: %w", err)
	}
	if s.refRe, err = compileAll(cfg.ReferencePatterns); err != nil {
		return nil, fmt.Errorf("reference patterns: %w", err)
	}
	return s, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// Score evaluates one page's extracted text. Each category contributes its
// weight at most once — a presence test, not a match count — so scores stay
// bounded and comparable across pages of very different lengths. Empty or
// unextractable text scores 0; non-empty text that matches nothing gets the
// base weight.
func (s *Scorer) Score(page int, text string) PageScore {
	ps := PageScore{Page: page}

	if strings.TrimSpace(text) == "" {
		return ps
	}

	matched := false
	if matchAny(s.tableRe, text) {
		ps.Score += s.cfg.TableWeight
		ps.TableMatch = true
		matched = true
	}
	if matchAny(s.dataRe, text) {
		ps.Score += s.cfg.DataWeight
		matched = true
	}
	if matchAny(s.refRe, text) {
		ps.Score += s.cfg.ReferenceWeight
		ps.ReferenceMatch = true
		matched = true
	}
	if !matched {
		ps.Score = s.cfg.BaseWeight
	}
	return ps
}

func matchAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
