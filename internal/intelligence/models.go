package intelligence

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Size limits for raw field keys and values, in runes.
const (
	MaxKeyLength   = 64
	MaxValueLength = 256
)

// RawField is a (key, value) pair proposed by a detector before canonicalization
type RawField struct {
	Key        string   `json:"key"`
	Value      string   `json:"value"`
	BBox       pdf.BBox `json:"bbox"`
	Page       int      `json:"page"`
	Confidence float64  `json:"confidence"`
	SourceText string   `json:"source_text"`
}

// NewRawField builds a RawField, trimming whitespace and enforcing the size
// limits. Values longer than MaxValueLength are truncated. Empty or oversized
// keys, empty values, bad pages and unusable boxes are rejected as malformed
// candidates.
func NewRawField(key, value string, bbox pdf.BBox, page int, confidence float64, source string) (RawField, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch {
	case key == "":
		return RawField{}, malformed("empty key", value)
	case utf8.RuneCountInString(key) > MaxKeyLength:
		return RawField{}, malformed("key too long", key)
	case value == "":
		return RawField{}, malformed("empty value", key)
	case page < 1:
		return RawField{}, malformed(fmt.Sprintf("invalid page %d", page), key)
	case !bbox.Valid():
		return RawField{}, malformed("invalid bbox "+bbox.String(), key)
	case math.IsNaN(confidence):
		return RawField{}, malformed("confidence is NaN", key)
	}

	if utf8.RuneCountInString(value) > MaxValueLength {
		value = string([]rune(value)[:MaxValueLength])
	}

	return RawField{
		Key:        key,
		Value:      value,
		BBox:       bbox,
		Page:       page,
		Confidence: clamp01(confidence),
		SourceText: source,
	}, nil
}

func malformed(msg, context string) error {
	return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeMalformedCandidate, msg, context)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Candidate is one possible value for a canonical field
type Candidate struct {
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	BBox       pdf.BBox `json:"bbox"`
	SourceText string   `json:"source_text,omitempty"`
	Page       int      `json:"page"`
}

// Validation is the outcome of one validation rule against a chosen value
type Validation struct {
	Rule    string `json:"rule"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Field groups the candidates found for one canonical name.
// Chosen is nil or points at Candidates[0].
type Field struct {
	Canonical   string       `json:"canonical"`
	Candidates  []Candidate  `json:"candidates"`
	Chosen      *Candidate   `json:"chosen"`
	Validations []Validation `json:"validations"`
}

// ChosenValue returns the chosen candidate's value, or "" when nothing was chosen.
func (f *Field) ChosenValue() string {
	if f.Chosen == nil {
		return ""
	}
	return f.Chosen.Value
}

// TableCell is one cell of a detected table
type TableCell struct {
	Text       string   `json:"text"`
	BBox       pdf.BBox `json:"bbox"`
	Confidence float64  `json:"confidence"`
}

// Table is a block of aligned columns found in page text
type Table struct {
	Page       int           `json:"page"`
	Headers    []string      `json:"headers"`
	Rows       [][]TableCell `json:"rows"`
	BBox       pdf.BBox      `json:"bbox"`
	Confidence float64       `json:"confidence"`
}

// Meta describes how a ParseResult was produced
type Meta struct {
	Scanned          bool     `json:"scanned"`
	Pages            int      `json:"pages"`
	ProcessingTime   float64  `json:"processing_time"`
	ExtractionMethod string   `json:"extraction_method"`
	Provider         string   `json:"provider,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// ParseResult is the complete output of one document parse
type ParseResult struct {
	ID     string  `json:"id"`
	Fields []Field `json:"fields"`
	Tables []Table `json:"tables"`
	Meta   Meta    `json:"meta"`
}

// Field returns the field with the given canonical name, or nil.
func (r *ParseResult) Field(canonical string) *Field {
	for i := range r.Fields {
		if r.Fields[i].Canonical == canonical {
			return &r.Fields[i]
		}
	}
	return nil
}
