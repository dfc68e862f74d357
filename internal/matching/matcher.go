// Package matching pairs extracted fields with the input elements of a web
// form using fuzzy label similarity, optionally blended with embeddings.
package matching

import (
	"context"
	"log/slog"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/fuzzy"
	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
)

// Confidence tiers
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// DomInput describes one form control as reported by the page
type DomInput struct {
	Selector    string `json:"selector"`
	LabelText   string `json:"label_text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
}

// Label joins the descriptive attributes of the input in a fixed order,
// lower-cased with whitespace collapsed.
func (d DomInput) Label() string {
	parts := []string{d.LabelText, d.Placeholder, d.AriaLabel, d.Name, d.ID}
	return strings.Join(strings.Fields(strings.ToLower(strings.Join(parts, " "))), " ")
}

// Match is the best input found for one field
type Match struct {
	Selector      string  `json:"selector"`
	Canonical     string  `json:"canonical"`
	Value         string  `json:"value"`
	Confidence    float64 `json:"confidence"`
	Tier          string  `json:"tier"`
	FuzzyScore    float64 `json:"fuzzy_score"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
}

// Result buckets matches by tier, each in field order
type Result struct {
	High   []Match `json:"high"`
	Medium []Match `json:"medium"`
	Low    []Match `json:"low"`
}

// All returns every match, high tier first
func (r *Result) All() []Match {
	out := make([]Match, 0, len(r.High)+len(r.Medium)+len(r.Low))
	out = append(out, r.High...)
	out = append(out, r.Medium...)
	return append(out, r.Low...)
}

// MatcherConfig holds the tier thresholds and blend weight
type MatcherConfig struct {
	HighTier   float64 `json:"high_tier"`
	MediumTier float64 `json:"medium_tier"`
	// LowFloor is the score a match must exceed to be reported at all.
	LowFloor float64 `json:"low_floor"`
	// DropLow discards low-tier matches instead of reporting them.
	DropLow bool `json:"drop_low"`
	// SemanticWeight is the share of the embedding score in a blended score.
	SemanticWeight float64 `json:"semantic_weight"`
}

// DefaultMatcherConfig returns the default matcher configuration
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		HighTier:       0.92,
		MediumTier:     0.80,
		LowFloor:       0.0,
		DropLow:        false,
		SemanticWeight: 0.7,
	}
}

// Matcher scores fields against DOM inputs. It keeps no state between calls
// apart from the read-only semantic index.
type Matcher struct {
	config MatcherConfig
	index  *SemanticIndex
	logger *slog.Logger
}

// NewMatcher creates a matcher. index may be nil for fuzzy-only matching.
func NewMatcher(config MatcherConfig, index *SemanticIndex, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{config: config, index: index, logger: logger}
}

// GetConfig returns the current configuration
func (m *Matcher) GetConfig() MatcherConfig {
	return m.config
}

// Tier maps a score onto a confidence tier
func (m *Matcher) Tier(score float64) string {
	switch {
	case score >= m.config.HighTier:
		return TierHigh
	case score >= m.config.MediumTier:
		return TierMedium
	default:
		return TierLow
	}
}

// scored is the best input for a field so far
type scored struct {
	input    int
	score    float64
	fuzzy    float64
	semantic float64
	// tie breaks equal scores in favor of the closer word order
	tie float64
}

// Match finds the best input for every field with a chosen value. Fields
// without a value, or whose best score does not exceed LowFloor, produce
// nothing. Embedding failures fall back to fuzzy scoring.
func (m *Matcher) Match(ctx context.Context, fields []intelligence.Field, inputs []DomInput) (*Result, error) {
	result := &Result{}
	if len(fields) == 0 || len(inputs) == 0 {
		return result, nil
	}

	labels := make([]string, len(inputs))
	for i, in := range inputs {
		labels[i] = in.Label()
	}

	labelVectors := m.embedLabels(ctx, labels)

	for _, field := range fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value := field.ChosenValue()
		if value == "" || field.Canonical == intelligence.Unknown {
			continue
		}

		terms := intelligence.SearchTerms(field.Canonical)
		best, ok := m.bestInput(field.Canonical, terms, labels, labelVectors)
		if !ok || best.score <= m.config.LowFloor {
			continue
		}

		match := Match{
			Selector:      inputs[best.input].Selector,
			Canonical:     field.Canonical,
			Value:         value,
			Confidence:    best.score,
			Tier:          m.Tier(best.score),
			FuzzyScore:    best.fuzzy,
			SemanticScore: best.semantic,
		}

		switch match.Tier {
		case TierHigh:
			result.High = append(result.High, match)
		case TierMedium:
			result.Medium = append(result.Medium, match)
		default:
			if !m.config.DropLow {
				result.Low = append(result.Low, match)
			}
		}
	}

	return result, nil
}

// bestInput scores every labelled input against the field's search terms
func (m *Matcher) bestInput(canonical string, terms, labels []string, labelVectors [][]float64) (scored, bool) {
	var termVectors [][]float64
	if labelVectors != nil {
		termVectors = m.index.TermVectors(canonical)
	}

	best := scored{input: -1}
	for i, label := range labels {
		if label == "" {
			continue
		}

		fuzzyScore, _ := fuzzy.Best(label, terms, fuzzy.TokenSetRatio)
		tie, _ := fuzzy.Best(label, terms, fuzzy.TokenSortRatio)

		cand := scored{input: i, score: fuzzyScore, fuzzy: fuzzyScore, tie: tie}
		if len(termVectors) > 0 && labelVectors[i] != nil {
			cand.semantic = maxCosine(labelVectors[i], termVectors)
			w := m.config.SemanticWeight
			cand.score = w*cand.semantic + (1-w)*fuzzyScore
		}

		if best.input == -1 || cand.score > best.score || (cand.score == best.score && cand.tie > best.tie) {
			best = cand
		}
	}
	return best, best.input != -1
}

// embedLabels returns one vector per label, or nil when embeddings are not
// available for this call.
func (m *Matcher) embedLabels(ctx context.Context, labels []string) [][]float64 {
	if m.index == nil {
		return nil
	}
	if err := m.index.Initialize(ctx); err != nil {
		m.logger.Warn("semantic index unavailable, using fuzzy matching", "err", err)
		return nil
	}

	vectors, err := m.index.EmbedLabels(ctx, labels)
	if err != nil {
		m.logger.Warn("label embedding failed, using fuzzy matching", "err", err)
		return nil
	}
	return vectors
}
