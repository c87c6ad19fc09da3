package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports an unusable model response along with a bounded
// preview of what came back, enough to diagnose without logging the whole
// payload.
type ParseError struct {
	Reason  string
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing extraction response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing extraction response: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(reason string, raw string, err error) *ParseError {
	const maxPreview = 500
	preview := raw
	if len(preview) > maxPreview {
		preview = preview[:maxPreview]
	}
	return &ParseError{Reason: reason, Preview: preview, Err: err}
}

// wireResponse mirrors the model's JSON envelope.
type wireResponse struct {
	IsValid bool             `json:"is_valid"`
	Reason  string           `json:"reason"`
	GroupA  []SpecimenRecord `json:"Group_A"`
	GroupB  []SpecimenRecord `json:"Group_B"`
	GroupC  []SpecimenRecord `json:"Group_C"`
}

// Parse decodes a model response into a Result. The response is expected to
// be bare JSON, but markdown code fences are tolerated because models add
// them despite instructions. The payload is schema-validated before
// decoding and the result is geometry-normalized before return.
func Parse(raw string) (*Result, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, newParseError("empty response", raw, nil)
	}

	var generic any
	if err := json.Unmarshal([]byte(cleaned), &generic); err != nil {
		return nil, newParseError("response is not JSON", cleaned, err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, newParseError("response violates schema", cleaned, err)
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, newParseError("decoding response", cleaned, err)
	}

	result := &Result{
		Valid:       wire.IsValid,
		Reason:      wire.Reason,
		Rectangular: wire.GroupA,
		Circular:    wire.GroupB,
		RoundEnded:  wire.GroupC,
	}
	result.Normalize()
	return result, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace. Content that is not fenced passes
// through untouched.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
