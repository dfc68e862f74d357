package intelligence

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/fuzzy"
)

// Inference methods, in the order they are attempted
const (
	MethodValuePattern   = "value_pattern"
	MethodExactCanonical = "exact_canonical"
	MethodExactSynonym   = "exact_synonym"
	MethodFuzzyKey       = "fuzzy_key"
	MethodValueShape     = "value_shape"
	MethodNone           = "none"
)

// Inference is the canonical name assigned to a raw (key, value) pair
type Inference struct {
	Canonical  string  `json:"canonical"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// ClassifierConfig holds the tunables of field inference
type ClassifierConfig struct {
	// FuzzyFloor is the minimum token-sort similarity for a fuzzy key match.
	FuzzyFloor float64 `json:"fuzzy_floor"`
	// ValueShapeConfidence is assigned to the weak value-shape heuristics.
	ValueShapeConfidence float64 `json:"value_shape_confidence"`
}

// DefaultClassifierConfig returns the default inference configuration
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		FuzzyFloor:           0.80,
		ValueShapeConfidence: 0.70,
	}
}

// valuePattern recognizes a canonical field from the shape of its value
type valuePattern struct {
	canonical  string
	pattern    *regexp.Regexp
	confidence float64
	// stripSpaces removes spaces from the value before matching
	stripSpaces bool
	// check is a structural test the value must also pass
	check func(string) bool
}

// valuePatterns are tried in order; the first match wins. Every date shape maps
// to dob, which conflates birth dates with other dates on the form.
var valuePatterns = []valuePattern{
	{canonical: Email, pattern: regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`), confidence: 0.95},
	{canonical: Phone, pattern: regexp.MustCompile(`^\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}$`), confidence: 0.90, stripSpaces: true},
	{canonical: SSN, pattern: regexp.MustCompile(`^\d{3}[-.\s]?\d{2}[-.\s]?\d{4}$`), confidence: 0.95, check: ValidSSNStructure},
	{canonical: EIN, pattern: regexp.MustCompile(`^\d{2}[-.\s]?\d{7}$`), confidence: 0.95, check: ValidEINPrefix},
	{canonical: Zip, pattern: regexp.MustCompile(`^\d{5}(?:-\d{4})?$`), confidence: 0.90},
	{canonical: DOB, pattern: regexp.MustCompile(`^\d{1,2}[/\-]\d{1,2}[/\-]\d{4}$`), confidence: 0.80},
	{canonical: DOB, pattern: regexp.MustCompile(`^\d{4}[/\-]\d{1,2}[/\-]\d{1,2}$`), confidence: 0.80},
	{canonical: DOB, pattern: regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}$`), confidence: 0.80},
}

var (
	nameShapePattern    = regexp.MustCompile(`^[A-Za-z\s\-']+$`)
	streetNumberPattern = regexp.MustCompile(`\d+\s+[A-Za-z]+`)
	streetSuffixPattern = regexp.MustCompile(`(?i)\b(street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd|court|ct|way)\b`)
	stateShapePattern   = regexp.MustCompile(`^[A-Z]{2}$`)
	nonDigitPattern     = regexp.MustCompile(`\D`)
)

// searchEntry is one label that resolves to a canonical name. Canonical
// entries hold the literal name, synonym entries the normalized synonym.
type searchEntry struct {
	canonical string
	term      string
	exact     bool
}

// Classifier maps raw (key, value) pairs onto the canonical vocabulary
type Classifier struct {
	config  ClassifierConfig
	entries []searchEntry
}

// NewClassifier creates a classifier with the default configuration
func NewClassifier() *Classifier {
	return NewClassifierWithConfig(DefaultClassifierConfig())
}

// NewClassifierWithConfig creates a classifier with custom configuration
func NewClassifierWithConfig(config ClassifierConfig) *Classifier {
	var entries []searchEntry
	for _, e := range vocabulary {
		entries = append(entries, searchEntry{canonical: e.canonical, term: e.canonical, exact: true})
		for _, s := range e.synonyms {
			entries = append(entries, searchEntry{canonical: e.canonical, term: fuzzy.Normalize(s)})
		}
	}
	return &Classifier{config: config, entries: entries}
}

// GetConfig returns the current configuration
func (c *Classifier) GetConfig() ClassifierConfig {
	return c.config
}

// Infer assigns a canonical name to a raw pair. Value patterns are checked
// first, then exact and fuzzy key matches, then weak value-shape heuristics.
// Pairs that match nothing are Unknown with zero confidence.
func (c *Classifier) Infer(key, value string) Inference {
	value = strings.TrimSpace(value)

	if inf, ok := c.matchValuePattern(value); ok {
		return inf
	}

	normKey := fuzzy.Normalize(key)
	if normKey != "" {
		if inf, ok := c.matchExactKey(strings.ToLower(strings.TrimSpace(key)), normKey); ok {
			return inf
		}
		if inf, ok := c.matchFuzzyKey(normKey); ok {
			return inf
		}
	}

	if canonical := inferFromValueShape(value); canonical != "" {
		return Inference{Canonical: canonical, Confidence: c.config.ValueShapeConfidence, Method: MethodValueShape}
	}

	return Inference{Canonical: Unknown, Confidence: 0, Method: MethodNone}
}

// matchValuePattern tests the value against the fixed-format patterns. A
// pattern whose structural check fails is skipped, so an invalid SSN or EIN
// is left to the remaining shapes and then to the key.
func (c *Classifier) matchValuePattern(value string) (Inference, bool) {
	if value == "" {
		return Inference{}, false
	}

	for _, vp := range valuePatterns {
		candidate := value
		if vp.stripSpaces {
			candidate = strings.ReplaceAll(candidate, " ", "")
		}
		if !vp.pattern.MatchString(candidate) {
			continue
		}
		if vp.check != nil && !vp.check(candidate) {
			continue
		}
		return Inference{Canonical: vp.canonical, Confidence: vp.confidence, Method: MethodValuePattern}, true
	}
	return Inference{}, false
}

// matchExactKey compares the lower-cased key to the literal canonical names,
// then the normalized key to the normalized synonyms.
func (c *Classifier) matchExactKey(lowerKey, normKey string) (Inference, bool) {
	for _, e := range c.entries {
		if e.exact && e.term == lowerKey {
			return Inference{Canonical: e.canonical, Confidence: 1.0, Method: MethodExactCanonical}, true
		}
	}
	for _, e := range c.entries {
		if !e.exact && e.term == normKey {
			return Inference{Canonical: e.canonical, Confidence: 0.95, Method: MethodExactSynonym}, true
		}
	}
	return Inference{}, false
}

// matchFuzzyKey takes the single best token-sort score over every canonical
// name and synonym. Ties keep the earlier vocabulary entry.
func (c *Classifier) matchFuzzyKey(normKey string) (Inference, bool) {
	best := 0.0
	bestCanonical := ""
	for _, e := range c.entries {
		if score := fuzzy.TokenSortRatio(normKey, e.term); score > best {
			best = score
			bestCanonical = e.canonical
		}
	}
	if bestCanonical == "" || best < c.config.FuzzyFloor {
		return Inference{}, false
	}
	return Inference{Canonical: bestCanonical, Confidence: best, Method: MethodFuzzyKey}, true
}

// inferFromValueShape applies the weak heuristics used only when no key matched
func inferFromValueShape(value string) string {
	if value == "" {
		return ""
	}
	if nameShapePattern.MatchString(value) && len(strings.Fields(value)) >= 2 {
		return FullName
	}
	if streetNumberPattern.MatchString(value) && streetSuffixPattern.MatchString(value) {
		return AddressLine1
	}
	if stateShapePattern.MatchString(value) {
		return State
	}
	return ""
}

// ValidSSNStructure reports whether a nine-digit SSN has a usable area,
// group and serial: area not 000, 666 or 900-999, group not 00, serial not 0000.
func ValidSSNStructure(value string) bool {
	area, group, serial, ok := SplitSSN(value)
	if !ok {
		return false
	}
	return area != 0 && area != 666 && area < 900 && group != 0 && serial != 0
}

// SplitSSN parses the digits of an SSN into its area, group and serial parts.
func SplitSSN(value string) (area, group, serial int, ok bool) {
	digits := nonDigitPattern.ReplaceAllString(value, "")
	if len(digits) != 9 {
		return 0, 0, 0, false
	}
	area, _ = strconv.Atoi(digits[:3])
	group, _ = strconv.Atoi(digits[3:5])
	serial, _ = strconv.Atoi(digits[5:])
	return area, group, serial, true
}

// validEINPrefixes are the IRS campus prefixes in use
var validEINPrefixes = func() map[int]bool {
	ranges := [][2]int{
		{1, 6}, {10, 16}, {20, 27}, {30, 39}, {40, 48}, {50, 59},
		{60, 63}, {65, 67}, {71, 73}, {75, 77}, {80, 88}, {90, 95},
	}
	set := make(map[int]bool)
	for _, r := range ranges {
		for p := r[0]; p <= r[1]; p++ {
			set[p] = true
		}
	}
	return set
}()

// ValidEINPrefix reports whether a nine-digit EIN starts with an assigned prefix.
func ValidEINPrefix(value string) bool {
	digits := nonDigitPattern.ReplaceAllString(value, "")
	if len(digits) != 9 {
		return false
	}
	prefix, _ := strconv.Atoi(digits[:2])
	return validEINPrefixes[prefix]
}
