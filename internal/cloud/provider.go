// Package cloud delegates whole-document extraction to hosted document
// understanding services. Every provider returns the same ParseResult shape
// as the local pipeline.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// ErrNotConfigured is returned when a provider lacks credentials or settings
var ErrNotConfigured = errors.New("provider is not configured")

// Provider extracts fields from a whole document in one remote call
type Provider interface {
	Name() string
	IsConfigured() bool
	// EstimateCost returns the expected charge in US dollars.
	EstimateCost(pages int) float64
	Extract(ctx context.Context, data []byte) (*intelligence.ParseResult, error)
}

// Info summarizes a provider for listings
type Info struct {
	Name        string  `json:"name"`
	Configured  bool    `json:"configured"`
	CostPerPage float64 `json:"cost_per_page"`
}

// Registry holds the providers available to the pipeline, by name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry of the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Get returns the named provider if it exists and is configured
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	return p, nil
}

// List describes every registered provider, sorted by name
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, Info{
			Name:        p.Name(),
			Configured:  p.IsConfigured(),
			CostPerPage: p.EstimateCost(1),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// assembler turns provider key-value pairs into a ParseResult through the
// same canonicalization as the local pipeline.
type assembler struct {
	provider   string
	aggregator *intelligence.Aggregator
	logger     *slog.Logger
}

func newAssembler(provider string, aggregator *intelligence.Aggregator, logger *slog.Logger) assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if aggregator == nil {
		aggregator = intelligence.NewAggregator(intelligence.DefaultAggregatorConfig(), nil, logger)
	}
	return assembler{provider: provider, aggregator: aggregator, logger: logger}
}

// pair is one key-value pair reported by a provider
type pair struct {
	key        string
	value      string
	confidence float64
	page       int
	bbox       pdf.BBox
}

func (a assembler) assemble(pairs []pair, pages int) *intelligence.ParseResult {
	raw := make([]intelligence.RawField, 0, len(pairs))
	for _, p := range pairs {
		page := max(p.page, 1)
		rf, err := intelligence.NewRawField(p.key, p.value, p.bbox, page, p.confidence, p.key+": "+p.value)
		if err != nil {
			a.logger.Warn("dropping provider candidate", "provider", a.provider, "page", page, "key", p.key, "err", err)
			continue
		}
		raw = append(raw, rf)
	}

	return &intelligence.ParseResult{
		Fields: a.aggregator.Aggregate(raw),
		Tables: []intelligence.Table{},
		Meta: intelligence.Meta{
			Pages:            pages,
			ExtractionMethod: pdf.MethodCloud,
			Provider:         a.provider,
		},
	}
}

// normalizedBox converts a box given as fractions of the page into points
func normalizedBox(left, top, right, bottom float64) pdf.BBox {
	return pdf.BBox{
		X0: left * pdf.DefaultPageWidth,
		Y0: top * pdf.DefaultPageHeight,
		X1: right * pdf.DefaultPageWidth,
		Y1: bottom * pdf.DefaultPageHeight,
	}
}
