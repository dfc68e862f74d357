// Package ocr recovers positioned text from scanned pages through a
// pluggable recognition engine, degrading page by page when it cannot.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Confidence assigned to text that did not come from the engine
const (
	MaxEngineConfidence   = 0.99
	FallbackConfidence    = 0.6
	PlaceholderConfidence = 0.1
)

// Engine recognizes the text of one rendered page. Span boxes are in PDF
// points with a top-left origin.
type Engine interface {
	Recognize(ctx context.Context, img pdf.PageImage) ([]pdf.Span, error)
}

// AdapterConfig holds the OCR resource limits
type AdapterConfig struct {
	// Timeout bounds the engine call for a single page.
	Timeout time.Duration `json:"timeout"`
	// Workers is the number of pages recognized concurrently.
	Workers int `json:"workers"`
	// DPI is the render resolution handed to the engine.
	DPI float64 `json:"dpi"`
}

// DefaultAdapterConfig returns the default OCR configuration
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Timeout: 30 * time.Second,
		Workers: 2,
		DPI:     144,
	}
}

// Adapter runs an Engine over rendered pages with bounded concurrency
type Adapter struct {
	engine   Engine
	renderer pdf.Renderer
	config   AdapterConfig
	logger   *slog.Logger
}

// NewAdapter creates an OCR adapter. engine may be nil, in which case every
// page degrades.
func NewAdapter(engine Engine, renderer pdf.Renderer, config AdapterConfig, logger *slog.Logger) *Adapter {
	defaults := DefaultAdapterConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Workers < 1 {
		config.Workers = defaults.Workers
	}
	if config.DPI <= 0 {
		config.DPI = defaults.DPI
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, renderer: renderer, config: config, logger: logger}
}

// Available reports whether an engine and renderer are configured
func (a *Adapter) Available() bool {
	return a.engine != nil && a.renderer != nil
}

// Extract recognizes every page of data. fallback holds the text-layer
// result for the same bytes; a page the engine cannot read falls back to
// its text-layer spans at reduced confidence, or to a placeholder when that
// page has no text. Only cancellation of ctx is returned as an error.
func (a *Adapter) Extract(ctx context.Context, data []byte, fallback *pdf.Document) (*pdf.Document, error) {
	if fallback == nil {
		fallback = &pdf.Document{}
	}

	var images []pdf.PageImage
	var unavailable error
	if a.Available() {
		rendered, err := a.renderer.Render(ctx, data, a.config.DPI)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.logger.Warn("page rendering failed, degrading all pages", "err", err)
			unavailable = err
		}
		images = rendered
	} else {
		unavailable = errors.New("no OCR engine configured")
	}

	numPages := max(len(images), fallback.PageCount())
	doc := &pdf.Document{Pages: make([]pdf.Page, numPages)}

	// One slot per page keeps warnings in page order whatever the finish order.
	pageErrs := make([]*pdferrors.PDFError, numPages)
	recognized := make([]bool, numPages)
	degrade := func(pageNum int, img *pdf.PageImage, cause error) {
		doc.Pages[pageNum-1] = degradedPage(pageNum, img, fallbackPage(fallback, pageNum))
		pageErrs[pageNum-1] = pdferrors.WrapError(pdferrors.ErrorTypeOCRUnavailable, cause).WithPage(pageNum)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)

	for i := 0; i < numPages; i++ {
		pageNum := i + 1
		var img *pdf.PageImage
		if i < len(images) {
			img = &images[i]
		}

		if unavailable != nil || img == nil {
			cause := unavailable
			if cause == nil {
				cause = fmt.Errorf("page %d was not rendered", pageNum)
			}
			degrade(pageNum, img, cause)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			page, err := a.recognize(gctx, *img)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				a.logger.Warn("OCR failed for page, degrading", "page", pageNum, "err", err)
				degrade(pageNum, img, err)
				return nil
			}
			doc.Pages[pageNum-1] = page
			recognized[pageNum-1] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A document no page of which was recognized is still text-layer output.
	doc.Method = pdf.MethodText
	warnings := pdferrors.NewErrorCollection()
	for i, err := range pageErrs {
		if recognized[i] {
			doc.Method = pdf.MethodOCR
		}
		if err != nil {
			warnings.Add(err)
		}
	}
	if warnings.Count() > 0 {
		a.logger.Warn("OCR degraded", "summary", warnings.Summary())
	}

	doc.Warnings = append(append([]string(nil), fallback.Warnings...), warnings.Messages()...)
	return doc, nil
}

// recognize runs the engine on one page under the per-page timeout
func (a *Adapter) recognize(ctx context.Context, img pdf.PageImage) (pdf.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	spans, err := a.engine.Recognize(ctx, img)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pdf.Page{}, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeTimeout,
				"OCR timed out", a.config.Timeout.String())
		}
		return pdf.Page{}, err
	}

	page := pdf.Page{Number: img.Number, Width: img.Width, Height: img.Height}
	for _, s := range spans {
		if s.Text == "" || !s.BBox.Valid() {
			continue
		}
		s.Page = img.Number
		s.Confidence = min(max(s.Confidence, 0), MaxEngineConfidence)
		page.Spans = append(page.Spans, s)
	}
	sortReadingOrder(page.Spans)
	page.Text = pdf.JoinSpanText(page.Spans)
	return page, nil
}

// sortReadingOrder orders spans top to bottom, then left to right
func sortReadingOrder(spans []pdf.Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].BBox.Y0 != spans[j].BBox.Y0 {
			return spans[i].BBox.Y0 < spans[j].BBox.Y0
		}
		return spans[i].BBox.X0 < spans[j].BBox.X0
	})
}

func fallbackPage(doc *pdf.Document, pageNum int) *pdf.Page {
	if pageNum < 1 || pageNum > len(doc.Pages) {
		return nil
	}
	return &doc.Pages[pageNum-1]
}

// degradedPage reuses the text-layer spans of a page at reduced confidence,
// or covers the page with a placeholder span when it has no text.
func degradedPage(pageNum int, img *pdf.PageImage, fb *pdf.Page) pdf.Page {
	width, height := pdf.DefaultPageWidth, pdf.DefaultPageHeight
	switch {
	case fb != nil && fb.Width > 0 && fb.Height > 0:
		width, height = fb.Width, fb.Height
	case img != nil && img.Width > 0 && img.Height > 0:
		width, height = img.Width, img.Height
	}

	page := pdf.Page{Number: pageNum, Width: width, Height: height}
	if fb != nil && len(fb.Spans) > 0 {
		page.Spans = make([]pdf.Span, len(fb.Spans))
		for i, s := range fb.Spans {
			s.Confidence = FallbackConfidence
			page.Spans[i] = s
		}
		page.Text = pdf.JoinSpanText(page.Spans)
		return page
	}

	placeholder := pdf.Span{
		Text:       PlaceholderText(pageNum),
		BBox:       pdf.BBox{X0: 0, Y0: 0, X1: width, Y1: height},
		Page:       pageNum,
		Confidence: PlaceholderConfidence,
	}
	page.Spans = []pdf.Span{placeholder}
	page.Text = placeholder.Text
	return page
}

// PlaceholderText is the text recorded for a page nothing could be read from
func PlaceholderText(pageNum int) string {
	return fmt.Sprintf("[Scanned page %d - OCR not available]", pageNum)
}
