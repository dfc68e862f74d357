package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
)

// Gemini pricing per page
const geminiCostPerPage = 0.0025

const geminiExtractPrompt = `Extract every filled-in form field from this PDF.
Return only a JSON object of the form:
{"pages": <page count>, "fields": [{"key": "<label as printed>", "value": "<filled value>", "confidence": <0..1>, "page": <1-based page>}]}
Skip labels that have no value. Do not add commentary.`

// Generator produces a JSON document from prompt parts
type Generator interface {
	GenerateJSON(ctx context.Context, parts ...genai.Part) (string, error)
}

var _ Provider = (*GeminiProvider)(nil)

// GeminiProvider sends the whole PDF to a Gemini model
type GeminiProvider struct {
	client Generator
	assembler
}

// NewGeminiProvider creates a Gemini provider. client may be nil when no
// API key is configured.
func NewGeminiProvider(client Generator, aggregator *intelligence.Aggregator, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{
		client:    client,
		assembler: newAssembler("gemini", aggregator, logger),
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string { return p.provider }

// IsConfigured reports whether a client is available
func (p *GeminiProvider) IsConfigured() bool { return p.client != nil }

// EstimateCost returns the expected charge for pages
func (p *GeminiProvider) EstimateCost(pages int) float64 {
	return float64(pages) * geminiCostPerPage
}

// geminiResponse is the JSON shape requested from the model
type geminiResponse struct {
	Pages  int `json:"pages"`
	Fields []struct {
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
		Page       int     `json:"page"`
	} `json:"fields"`
}

// Extract sends the document and canonicalizes the returned pairs
func (p *GeminiProvider) Extract(ctx context.Context, data []byte) (*intelligence.ParseResult, error) {
	if !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := p.client.GenerateJSON(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: data},
		genai.Text(geminiExtractPrompt),
	)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeProviderFailure, err).WithContext(p.provider)
	}
	return p.parse(body)
}

func (p *GeminiProvider) parse(body string) (*intelligence.ParseResult, error) {
	var resp geminiResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeProviderFailure,
			fmt.Errorf("unmarshaling gemini fields: %w", err)).WithContext(p.provider)
	}

	// The model reports no geometry, so boxes are placeholders.
	pages := resp.Pages
	pairs := make([]pair, 0, len(resp.Fields))
	for _, f := range resp.Fields {
		pages = max(pages, f.Page)
		pairs = append(pairs, pair{
			key:        f.Key,
			value:      f.Value,
			confidence: f.Confidence,
			page:       f.Page,
			bbox:       pdf.BBox{Estimated: true},
		})
	}

	return p.assemble(pairs, max(pages, 1)), nil
}
