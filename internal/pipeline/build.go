package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/a3tai/mcp-pdf-forms/internal/cloud"
	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/gemini"
	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/matching"
	"github.com/a3tai/mcp-pdf-forms/internal/ocr"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-forms/internal/validation"
)

// Build assembles a Service from configuration. Optional collaborators are
// enabled by their settings: a Gemini key turns on OCR and the Gemini
// provider, an AWS region turns on Textract, a Document AI processor turns
// on Document AI and an embeddings key or URL turns on semantic matching.
// The returned function releases remote clients.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	classifier := intelligence.NewClassifierWithConfig(intelligence.ClassifierConfig{
		FuzzyFloor:           cfg.InferenceFloor,
		ValueShapeConfidence: intelligence.DefaultClassifierConfig().ValueShapeConfidence,
	})
	aggregator := intelligence.NewAggregator(intelligence.AggregatorConfig{
		AutoChooseFloor: cfg.AutoChooseFloor,
		MaxCandidates:   cfg.MaxCandidates,
		IncludeUnknown:  cfg.IncludeUnknown,
	}, classifier, logger)

	var (
		engine    ocr.Engine
		generator cloud.Generator
	)
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, client.Close)
		engine = ocr.NewGeminiEngine(client)
		generator = client
	} else {
		logger.Info("no Gemini API key configured, OCR and the gemini provider are disabled")
	}

	adapter := ocr.NewAdapter(engine, pdf.NewFitzRenderer(), ocr.AdapterConfig{
		Timeout: cfg.OCRTimeout,
		Workers: cfg.OCRWorkers,
		DPI:     cfg.RenderDPI,
	}, logger)

	textract, err := cloud.NewTextractProviderFromRegion(ctx, cfg.AWSRegion, aggregator, logger)
	if err != nil {
		_ = closeAll()
		return nil, nil, fmt.Errorf("configuring textract: %w", err)
	}

	documentAI, err := cloud.NewDocumentAIProvider(ctx, cloud.DocumentAIConfig{
		ProjectID:   cfg.DocumentAIProject,
		Location:    cfg.DocumentAILocation,
		ProcessorID: cfg.DocumentAIProcessor,
	}, aggregator, logger)
	if err != nil {
		_ = closeAll()
		return nil, nil, fmt.Errorf("configuring document ai: %w", err)
	}
	closers = append(closers, documentAI.Close)

	var index *matching.SemanticIndex
	if cfg.EmbeddingURL != "" || cfg.EmbeddingAPIKey != "" {
		index = matching.NewSemanticIndex(matching.NewOpenAIEmbedder(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel))
	}
	matcher := matching.NewMatcher(matching.MatcherConfig{
		HighTier:       cfg.HighTier,
		MediumTier:     cfg.MediumTier,
		LowFloor:       cfg.LowFloor,
		DropLow:        cfg.DropLow,
		SemanticWeight: cfg.SemanticWeight,
	}, index, logger)

	svc := NewService(Config{
		ScanTextThreshold: cfg.ScanTextThreshold,
		EnableOCR:         cfg.EnableOCR,
		MaxFileSize:       cfg.MaxFileSize,
		TextWorkers:       DefaultConfig().TextWorkers,
		DefaultProvider:   cfg.DefaultProvider,
	}, Components{
		OCR:        adapter,
		Detector:   extraction.NewDetector(extraction.DefaultDetectorConfig(), logger),
		Tables:     extraction.NewTableDetector(extraction.DefaultTableConfig(), logger),
		Aggregator: aggregator,
		Validator:  validation.NewValidator(),
		Matcher:    matcher,
		Providers: cloud.NewRegistry(
			cloud.NewGeminiProvider(generator, aggregator, logger),
			textract,
			documentAI,
		),
	}, logger)

	return svc, closeAll, nil
}
