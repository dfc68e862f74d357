package extraction

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// Constants for key-value detection
const (
	defaultPairWindow        = 3
	defaultInlineConfidence  = 0.8
	defaultStrongConfidence  = 0.95
	defaultPatternConfidence = 0.85

	minLabelLength  = 2
	maxLabelLength  = 100
	maxValueLength  = 100
	minInlineKey    = 2
	maxInlineKey    = 30
	maxInlineValue  = 50

	// Bounding box estimation for matches found in page text
	estimatedCharWidth  = 7.0
	estimatedLineHeight = 16.0
	defaultLeftMargin   = 72.0
	defaultTopMargin    = 72.0
)

var (
	// labelKeywordPattern covers the curated label families.
	labelKeywordPattern = regexp.MustCompile(`(?i)(name|address|phone|email|date|ssn|social|employer|signature)`)
	// genericLabelPattern is a short run of letters optionally ending in a colon.
	genericLabelPattern = regexp.MustCompile(`^[A-Za-z\s]{3,30}:?$`)

	skipPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^page\s+\d+`),
		regexp.MustCompile(`(?i)^form\s+`),
		regexp.MustCompile(`(?i)^section\s+`),
		regexp.MustCompile(`(?i)^please\s+`),
		regexp.MustCompile(`(?i)^instructions?:?`),
	}

	// inlinePatterns match "Key: Value", "Key - Value" and "Key = Value" on one
	// line. Neither side may cross a column gap of three or more spaces.
	inlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`([A-Za-z]+(?:[ \t]{1,2}[A-Za-z]+)*)[ \t]*:[ \t]*((?:[^\s:]|[ \t]{1,2}[^\s:])+)`),
		regexp.MustCompile(`([A-Za-z]+(?:[ \t]{1,2}[A-Za-z]+)*)[ \t]*[-_][ \t]*((?:[^\s\-_]|[ \t]{1,2}[^\s\-_])+)`),
		regexp.MustCompile(`([A-Za-z]+(?:[ \t]{1,2}[A-Za-z]+)*)[ \t]*=[ \t]*((?:[^\s=]|[ \t]{1,2}[^\s=])+)`),
	}
)

// standalonePattern finds a typed value in page text without a label
type standalonePattern struct {
	key        string
	pattern    *regexp.Regexp
	confidence float64
}

var standalonePatterns = []standalonePattern{
	{key: intelligence.Email, pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), confidence: defaultStrongConfidence},
	{key: intelligence.Phone, pattern: regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`), confidence: defaultPatternConfidence},
	{key: intelligence.SSN, pattern: regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`), confidence: defaultStrongConfidence},
	{key: intelligence.EIN, pattern: regexp.MustCompile(`\b\d{2}[-.\s]?\d{7}\b`), confidence: defaultPatternConfidence},
	{key: intelligence.Zip, pattern: regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`), confidence: defaultPatternConfidence},
	{key: "date", pattern: regexp.MustCompile(`\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`), confidence: defaultPatternConfidence},
}

// DetectorConfig holds the tunables of key-value detection
type DetectorConfig struct {
	// PairWindow is how many spans after a label are searched for its value.
	PairWindow int `json:"pair_window"`
	// InlineConfidence is assigned to pairs found by the inline patterns.
	InlineConfidence float64 `json:"inline_confidence"`
}

// DefaultDetectorConfig returns the default detector configuration
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		PairWindow:       defaultPairWindow,
		InlineConfidence: defaultInlineConfidence,
	}
}

// Detector proposes raw key-value pairs from positioned page text
type Detector struct {
	config DetectorConfig
	logger *slog.Logger
}

// NewDetector creates a detector with custom configuration
func NewDetector(config DetectorConfig, logger *slog.Logger) *Detector {
	if config.PairWindow < 1 {
		config.PairWindow = defaultPairWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{config: config, logger: logger}
}

// collector accumulates raw fields, dropping duplicates and malformed candidates
type collector struct {
	fields  []intelligence.RawField
	seen    map[string]bool
	dropped int
	logger  *slog.Logger
}

func (c *collector) add(key, value string, bbox pdf.BBox, page int, confidence float64, source string) {
	rf, err := intelligence.NewRawField(key, value, bbox, page, confidence, source)
	if err != nil {
		c.dropped++
		c.logger.Warn("dropping malformed candidate", "page", page, "key", key, "err", err)
		return
	}

	id := strings.ToLower(rf.Key) + "\x00" + rf.Value
	if c.seen[id] {
		return
	}
	c.seen[id] = true
	c.fields = append(c.fields, rf)
}

// Detect runs adjacent-block pairing, inline patterns and standalone value
// detection over every page and returns their union in detection order. A
// pair whose key (case-insensitive) and value were already collected is
// discarded.
func (d *Detector) Detect(doc *pdf.Document) []intelligence.RawField {
	c := &collector{seen: make(map[string]bool), logger: d.logger}
	if doc == nil {
		return nil
	}

	for _, page := range doc.Pages {
		d.pairAdjacentSpans(page, c)
		d.detectInline(page, c)
		d.detectStandalone(page, c)
	}

	if c.dropped > 0 {
		d.logger.Info("key-value detection dropped candidates", "dropped", c.dropped, "kept", len(c.fields))
	}
	return c.fields
}

// pairAdjacentSpans pairs each label-like span with the first value-like span
// among the next PairWindow spans. The search stops at a span that can only
// be a label, so an empty field never takes the value of the field after it.
func (d *Detector) pairAdjacentSpans(page pdf.Page, c *collector) {
	spans := page.Spans
	for i, label := range spans {
		text := strings.TrimSpace(label.Text)
		if n := utf8.RuneCountInString(text); n < minLabelLength || n > maxLabelLength {
			continue
		}
		if !IsLabelLike(text) {
			continue
		}

		for j := i + 1; j < len(spans) && j <= i+d.config.PairWindow; j++ {
			valueText := strings.TrimSpace(spans[j].Text)
			if !IsValueLike(valueText) {
				if IsLabelLike(valueText) {
					break
				}
				continue
			}
			c.add(
				strings.TrimSpace(strings.TrimRight(text, ":")),
				valueText,
				spans[j].BBox,
				page.Number,
				min(label.Confidence, spans[j].Confidence),
				text+" "+valueText,
			)
			break
		}
	}
}

// detectInline applies the inline patterns to the page text
func (d *Detector) detectInline(page pdf.Page, c *collector) {
	for _, pattern := range inlinePatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(page.Text, -1) {
			key := strings.TrimSpace(page.Text[m[2]:m[3]])
			value := truncateRunes(strings.TrimSpace(page.Text[m[4]:m[5]]), maxInlineValue)

			if n := utf8.RuneCountInString(key); n < minInlineKey || n > maxInlineKey {
				continue
			}
			if !IsLabelLike(key) || !IsValueLike(value) {
				continue
			}

			c.add(key, value, EstimateBBox(page.Text, m[0], m[1]), page.Number,
				d.config.InlineConfidence, page.Text[m[0]:m[1]])
		}
	}
}

// detectStandalone finds typed values anywhere in the page text
func (d *Detector) detectStandalone(page pdf.Page, c *collector) {
	for _, sp := range standalonePatterns {
		for _, loc := range sp.pattern.FindAllStringIndex(page.Text, -1) {
			// \b cannot anchor before "(", so pull an opening parenthesis back in.
			if loc[0] > 0 && page.Text[loc[0]-1] == '(' && strings.Contains(page.Text[loc[0]:loc[1]], ")") {
				loc[0]--
			}
			value := strings.TrimSpace(page.Text[loc[0]:loc[1]])
			c.add(sp.key, value, EstimateBBox(page.Text, loc[0], loc[1]), page.Number, sp.confidence, value)
		}
	}
}

// IsLabelLike reports whether text has the shape of a field label: it ends in
// a colon, names a common field family, or is a short run of letters.
func IsLabelLike(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return strings.HasSuffix(text, ":") ||
		labelKeywordPattern.MatchString(text) ||
		genericLabelPattern.MatchString(text)
}

// IsValueLike reports whether text can be a field value. Text ending in a
// colon or naming a field family reads as another label. Plain words are
// accepted, otherwise "John" could never be a first name.
func IsValueLike(text string) bool {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < 1 || n > maxValueLength {
		return false
	}
	if strings.HasSuffix(text, ":") || labelKeywordPattern.MatchString(text) {
		return false
	}
	for _, p := range skipPatterns {
		if p.MatchString(text) {
			return false
		}
	}
	return true
}

// EstimateBBox synthesizes a box for text[start:end] from its line and column
// in the page text, assuming fixed character width and line height anchored
// at a one-inch margin. The result is marked Estimated.
func EstimateBBox(text string, start, end int) pdf.BBox {
	before := text[:start]
	linesBefore := strings.Count(before, "\n")
	lineStart := strings.LastIndex(before, "\n") + 1
	charInLine := utf8.RuneCountInString(text[lineStart:start])
	length := utf8.RuneCountInString(text[start:end])

	x0 := defaultLeftMargin + float64(charInLine)*estimatedCharWidth
	y0 := defaultTopMargin + float64(linesBefore)*estimatedLineHeight
	return pdf.BBox{
		X0:        x0,
		Y0:        y0,
		X1:        x0 + float64(length)*estimatedCharWidth,
		Y1:        y0 + estimatedLineHeight,
		Estimated: true,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
