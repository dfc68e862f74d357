package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Line grouping tolerances, expressed as multiples of the glyph font size.
const (
	baselineTolerance = 0.5
	wordGapFactor     = 0.2
	spanGapFactor     = 2.5
	defaultFontSize   = 10.0
)

// spanSeparator joins spans that share a line in the page text. Three spaces
// keep column boundaries recoverable by the table detector.
const spanSeparator = "   "

// Glyph is one positioned text run as reported by the PDF content stream.
// X and Y are in PDF user space, Y measured upward from the page bottom.
type Glyph struct {
	Text     string
	X        float64
	Y        float64
	W        float64
	FontSize float64
}

// PageSource provides raw glyphs per page. Page numbers are 1-based.
type PageSource interface {
	NumPages() int
	PageSize(pageNum int) (width, height float64)
	Glyphs(pageNum int) ([]Glyph, error)
}

// TextLayerExtractor turns the embedded text layer of a PDF into positioned spans
type TextLayerExtractor struct {
	workers int
	logger  *slog.Logger
}

// NewTextLayerExtractor creates an extractor that processes up to workers pages at once
func NewTextLayerExtractor(workers int, logger *slog.Logger) *TextLayerExtractor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextLayerExtractor{workers: workers, logger: logger}
}

// Extract parses the document bytes and returns the positioned text of every page.
func (e *TextLayerExtractor) Extract(ctx context.Context, data []byte) (*Document, error) {
	src, err := NewReaderSource(data)
	if err != nil {
		return nil, err
	}
	return e.ExtractSource(ctx, src)
}

// ExtractSource builds a Document from any PageSource. Pages are processed in
// parallel and placed by page number. A page that fails to decode becomes an
// empty page plus a warning.
func (e *TextLayerExtractor) ExtractSource(ctx context.Context, src PageSource) (*Document, error) {
	numPages := src.NumPages()
	doc := &Document{
		Pages:  make([]Page, numPages),
		Method: MethodText,
	}

	pageErrs := make([]*pdferrors.PDFError, numPages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < numPages; i++ {
		pageNum := i + 1
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			page, err := e.extractPage(src, pageNum)
			if err != nil {
				e.logger.Warn("text layer page unreadable", "page", pageNum, "err", err)
				pageErrs[pageNum-1] = pdferrors.WrapError(pdferrors.ErrorTypeMalformedPage, err).WithPage(pageNum)
			}
			doc.Pages[pageNum-1] = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	warnings := pdferrors.NewErrorCollection()
	for _, pe := range pageErrs {
		if pe != nil {
			warnings.Add(pe)
		}
	}
	doc.Warnings = warnings.Messages()
	return doc, nil
}

// extractPage converts the glyphs of one page, recovering from decoder panics
func (e *TextLayerExtractor) extractPage(src PageSource, pageNum int) (page Page, err error) {
	width, height := src.PageSize(pageNum)
	page = Page{Number: pageNum, Width: width, Height: height}

	defer func() {
		if r := recover(); r != nil {
			page = Page{Number: pageNum, Width: width, Height: height}
			err = fmt.Errorf("panic decoding page content: %v", r)
		}
	}()

	glyphs, err := src.Glyphs(pageNum)
	if err != nil {
		return page, err
	}

	page.Spans = BuildSpans(glyphs, pageNum, height)
	page.Text = JoinSpanText(page.Spans)
	return page, nil
}

// BuildSpans groups glyphs into spans. Glyphs sharing a baseline form a line;
// a horizontal gap wider than a few character widths starts a new span on
// the same line. Output is in reading order, top to bottom, left to right.
func BuildSpans(glyphs []Glyph, pageNum int, pageHeight float64) []Span {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.FontSize <= 0 {
			g.FontSize = defaultFontSize
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	// Cluster by baseline
	var lines [][]Glyph
	var lineY float64
	for _, g := range sorted {
		if len(lines) > 0 && math.Abs(g.Y-lineY) <= g.FontSize*baselineTolerance {
			lines[len(lines)-1] = append(lines[len(lines)-1], g)
			continue
		}
		lines = append(lines, []Glyph{g})
		lineY = g.Y
	}

	var spans []Span
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		spans = append(spans, splitLine(line, pageNum, pageHeight)...)
	}
	return spans
}

// splitLine cuts one baseline into spans on wide horizontal gaps
func splitLine(line []Glyph, pageNum int, pageHeight float64) []Span {
	var spans []Span
	var b strings.Builder
	var cur Span
	var end float64
	open := false

	flush := func() {
		if !open {
			return
		}
		cur.Text = strings.Join(strings.Fields(b.String()), " ")
		if cur.Text != "" {
			spans = append(spans, cur)
		}
		b.Reset()
		open = false
	}

	for _, g := range line {
		top := pageHeight - (g.Y + g.FontSize)
		bottom := pageHeight - g.Y + g.FontSize*0.2
		box := BBox{X0: g.X, Y0: math.Max(0, top), X1: g.X + g.W, Y1: math.Max(0, bottom)}

		if open {
			gap := g.X - end
			switch {
			case gap > g.FontSize*spanGapFactor:
				flush()
			case gap > g.FontSize*wordGapFactor:
				b.WriteByte(' ')
			}
		}

		if !open {
			cur = Span{BBox: box, Page: pageNum, Confidence: 1.0, FontSize: g.FontSize}
			open = true
		} else {
			cur.BBox = cur.BBox.Union(box)
		}
		b.WriteString(g.Text)
		end = math.Max(end, g.X+g.W)
		if g.W <= 0 {
			end = math.Max(end, g.X+float64(len(g.Text))*g.FontSize*0.5)
		}
	}
	flush()
	return spans
}

// GroupLines splits spans in reading order into lines of spans sharing a baseline.
func GroupLines(spans []Span) [][]Span {
	var lines [][]Span
	for i, s := range spans {
		if i > 0 && sameLine(spans[i-1], s) {
			lines[len(lines)-1] = append(lines[len(lines)-1], s)
			continue
		}
		lines = append(lines, []Span{s})
	}
	return lines
}

// JoinSpanText renders spans as page text: one line per baseline, spans on
// the same line separated by three spaces.
func JoinSpanText(spans []Span) string {
	lines := GroupLines(spans)
	out := make([]string, len(lines))
	for i, line := range lines {
		parts := make([]string, len(line))
		for j, s := range line {
			parts[j] = s.Text
		}
		out[i] = strings.Join(parts, spanSeparator)
	}
	return strings.Join(out, "\n")
}

func sameLine(a, b Span) bool {
	size := math.Max(a.FontSize, b.FontSize)
	if size <= 0 {
		// OCR spans carry no font size; use the box height instead.
		size = math.Max(a.BBox.Y1-a.BBox.Y0, b.BBox.Y1-b.BBox.Y0)
	}
	return math.Abs(a.BBox.Y1-b.BBox.Y1) <= size*baselineTolerance
}

// ReaderSource adapts a ledongthuc/pdf reader to PageSource.
type ReaderSource struct {
	mu     sync.Mutex
	reader *pdf.Reader
}

// NewReaderSource opens the document bytes for text-layer extraction
func NewReaderSource(data []byte) (src *ReaderSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src = nil
			err = pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeCorruptedData,
				"failed to open PDF", fmt.Sprint(r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeCorruptedData, err).WithContext("failed to open PDF")
	}
	return &ReaderSource{reader: reader}, nil
}

// NumPages returns the page count
func (s *ReaderSource) NumPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader.NumPage()
}

// PageSize reads the MediaBox, falling back to US Letter
func (s *ReaderSource) PageSize(pageNum int) (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.reader.Page(pageNum)
	if page.V.IsNull() {
		return DefaultPageWidth, DefaultPageHeight
	}
	box := page.V.Key("MediaBox")
	if box.IsNull() || box.Len() < 4 {
		return DefaultPageWidth, DefaultPageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return DefaultPageWidth, DefaultPageHeight
	}
	return w, h
}

// Glyphs decodes the content stream of one page. The underlying reader is
// not safe for concurrent use, so decoding is serialized.
func (s *ReaderSource) Glyphs(pageNum int) ([]Glyph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", pageNum)
	}

	content := page.Content()
	glyphs := make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		glyphs = append(glyphs, Glyph{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
		})
	}
	return glyphs, nil
}
