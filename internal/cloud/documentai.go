package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Document AI form parser pricing per page
const documentAICostPerPage = 0.03

// DocumentAIConfig names the form processor to call
type DocumentAIConfig struct {
	ProjectID   string `json:"project_id"`
	Location    string `json:"location"`
	ProcessorID string `json:"processor_id"`
}

// ProcessorName returns the fully qualified processor resource name
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// complete reports whether every identifier is set
func (c DocumentAIConfig) complete() bool {
	return c.ProjectID != "" && c.Location != "" && c.ProcessorID != ""
}

// processFunc issues one ProcessDocument call
type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

var _ Provider = (*DocumentAIProvider)(nil)

// DocumentAIProvider runs documents through a Google Document AI form parser
type DocumentAIProvider struct {
	config  DocumentAIConfig
	process processFunc
	close   func() error
	assembler
}

// NewDocumentAIProvider connects to the regional Document AI endpoint. An
// incomplete configuration yields an unconfigured provider without dialing.
func NewDocumentAIProvider(ctx context.Context, config DocumentAIConfig, aggregator *intelligence.Aggregator, logger *slog.Logger) (*DocumentAIProvider, error) {
	p := &DocumentAIProvider{
		config:    config,
		assembler: newAssembler("documentai", aggregator, logger),
	}
	if !config.complete() {
		return p, nil
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("creating document ai client: %w", err)
	}

	p.process = func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return client.ProcessDocument(ctx, req)
	}
	p.close = client.Close
	return p, nil
}

// Name returns the provider name
func (p *DocumentAIProvider) Name() string { return p.provider }

// IsConfigured reports whether a processor client is available
func (p *DocumentAIProvider) IsConfigured() bool { return p.process != nil }

// EstimateCost returns the expected charge for pages
func (p *DocumentAIProvider) EstimateCost(pages int) float64 {
	return float64(pages) * documentAICostPerPage
}

// Close releases the underlying client
func (p *DocumentAIProvider) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// Extract sends the raw PDF to the processor and canonicalizes its form fields
func (p *DocumentAIProvider) Extract(ctx context.Context, data []byte) (*intelligence.ParseResult, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	resp, err := p.process(ctx, &documentaipb.ProcessRequest{
		Name: p.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
	})
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeProviderFailure, err).WithContext(p.provider)
	}

	doc := resp.GetDocument()
	pairs := documentAIPairs(doc)
	return p.assemble(pairs, max(len(doc.GetPages()), 1)), nil
}

// documentAIPairs reads the form fields of every page
func documentAIPairs(doc *documentaipb.Document) []pair {
	text := doc.GetText()

	var pairs []pair
	for i, page := range doc.GetPages() {
		pageNum := int(page.GetPageNumber())
		if pageNum < 1 {
			pageNum = i + 1
		}

		for _, ff := range page.GetFormFields() {
			name := anchorText(text, ff.GetFieldName().GetTextAnchor())
			value := anchorText(text, ff.GetFieldValue().GetTextAnchor())
			if name == "" || value == "" {
				continue
			}

			pairs = append(pairs, pair{
				key:        strings.TrimRight(name, ": "),
				value:      value,
				confidence: float64(min(ff.GetFieldName().GetConfidence(), ff.GetFieldValue().GetConfidence())),
				page:       pageNum,
				bbox:       polyBox(ff.GetFieldValue().GetBoundingPoly()),
			})
		}
	}
	return pairs
}

// anchorText concatenates the document text covered by an anchor
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// polyBox bounds the normalized vertices of a polygon
func polyBox(poly *documentaipb.BoundingPoly) pdf.BBox {
	vertices := poly.GetNormalizedVertices()
	if len(vertices) == 0 {
		return pdf.BBox{Estimated: true}
	}

	left, top := 1.0, 1.0
	right, bottom := 0.0, 0.0
	for _, v := range vertices {
		x, y := float64(v.GetX()), float64(v.GetY())
		left, right = min(left, x), max(right, x)
		top, bottom = min(top, y), max(bottom, y)
	}
	return normalizedBox(left, top, right, bottom)
}
