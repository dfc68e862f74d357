// Package pipeline runs a PDF through extraction, canonicalization and
// validation, or hands it to a cloud provider, and produces one ParseResult.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-forms/internal/cloud"
	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/matching"
	"github.com/a3tai/mcp-pdf-forms/internal/ocr"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-forms/internal/validation"
)

// FormFieldConfidence is the extraction confidence of filled AcroForm values
const FormFieldConfidence = 0.9

// ProviderLocal forces the local pipeline when a default provider is configured
const ProviderLocal = "local"

// InputChecker rejects unusable documents before extraction
type InputChecker interface {
	ValidateBytes(data []byte) error
}

// TextSource extracts the embedded text layer of a document
type TextSource interface {
	Extract(ctx context.Context, data []byte) (*pdf.Document, error)
}

// FormSource reads filled interactive form values
type FormSource interface {
	ReadValues(data []byte) ([]pdf.FormValue, error)
}

// Config holds the pipeline switches
type Config struct {
	ScanTextThreshold int   `json:"scan_text_threshold"`
	EnableOCR         bool  `json:"enable_ocr"`
	MaxFileSize       int64 `json:"max_file_size"`
	TextWorkers       int   `json:"text_workers"`
	// DefaultProvider is used when Options.Provider is empty.
	DefaultProvider string `json:"default_provider,omitempty"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		ScanTextThreshold: pdf.DefaultScanThreshold,
		EnableOCR:         true,
		MaxFileSize:       100 * 1024 * 1024,
		TextWorkers:       4,
	}
}

// Components are the collaborators of a Service. Nil members get defaults
// built from the Config; a nil OCR adapter becomes one without an engine,
// which degrades scanned pages, and a nil Providers registry has no providers.
type Components struct {
	Input      InputChecker
	TextLayer  TextSource
	Forms      FormSource
	OCR        *ocr.Adapter
	Detector   *extraction.Detector
	Tables     *extraction.TableDetector
	Aggregator *intelligence.Aggregator
	Validator  *validation.Validator
	Matcher    *matching.Matcher
	Providers  *cloud.Registry
}

// Options select how a single document is parsed
type Options struct {
	// Provider names a cloud provider. Empty selects the configured
	// default and ProviderLocal always runs the local pipeline.
	Provider string `json:"provider,omitempty"`
}

// Service orchestrates one parse per call and holds no per-call state
type Service struct {
	config     Config
	input      InputChecker
	textLayer  TextSource
	forms      FormSource
	ocr        *ocr.Adapter
	detector   *extraction.Detector
	tables     *extraction.TableDetector
	aggregator *intelligence.Aggregator
	validator  *validation.Validator
	matcher    *matching.Matcher
	providers  *cloud.Registry
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a service from config and components
func NewService(config Config, c Components, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = defaults.MaxFileSize
	}
	if config.ScanTextThreshold <= 0 {
		config.ScanTextThreshold = defaults.ScanTextThreshold
	}

	s := &Service{
		config:     config,
		input:      c.Input,
		textLayer:  c.TextLayer,
		forms:      c.Forms,
		ocr:        c.OCR,
		detector:   c.Detector,
		tables:     c.Tables,
		aggregator: c.Aggregator,
		validator:  c.Validator,
		matcher:    c.Matcher,
		providers:  c.Providers,
		logger:     logger,
		now:        time.Now,
	}

	if s.input == nil {
		s.input = pdf.NewInputValidator(config.MaxFileSize)
	}
	if s.textLayer == nil {
		s.textLayer = pdf.NewTextLayerExtractor(config.TextWorkers, logger)
	}
	if s.forms == nil {
		s.forms = pdf.NewAcroFormReader(logger)
	}
	if s.ocr == nil {
		s.ocr = ocr.NewAdapter(nil, nil, ocr.DefaultAdapterConfig(), logger)
	}
	if s.detector == nil {
		s.detector = extraction.NewDetector(extraction.DefaultDetectorConfig(), logger)
	}
	if s.tables == nil {
		s.tables = extraction.NewTableDetector(extraction.DefaultTableConfig(), logger)
	}
	if s.aggregator == nil {
		s.aggregator = intelligence.NewAggregator(intelligence.DefaultAggregatorConfig(), nil, logger)
	}
	if s.validator == nil {
		s.validator = validation.NewValidator()
	}
	if s.matcher == nil {
		s.matcher = matching.NewMatcher(matching.DefaultMatcherConfig(), nil, logger)
	}
	if s.providers == nil {
		s.providers = cloud.NewRegistry()
	}
	return s
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() Config {
	return s.config
}

// ExtractFields parses one document. Input problems are returned before any
// extraction runs. Degraded pages become warnings on the result. Cancellation
// of ctx between stages is returned as a timeout error.
func (s *Service) ExtractFields(ctx context.Context, data []byte, opts Options) (*intelligence.ParseResult, error) {
	start := s.now()

	if err := s.input.ValidateBytes(data); err != nil {
		return nil, err
	}
	if err := checkpoint(ctx, "input validation"); err != nil {
		return nil, err
	}

	var (
		result *intelligence.ParseResult
		err    error
	)
	provider := opts.Provider
	if provider == "" {
		provider = s.config.DefaultProvider
	}
	if provider != "" && provider != ProviderLocal {
		result, err = s.extractWithProvider(ctx, data, provider)
	} else {
		result, err = s.extractLocal(ctx, data)
	}
	if err != nil {
		return nil, err
	}

	result.ID = uuid.NewString()
	result.Meta.ProcessingTime = s.now().Sub(start).Seconds()
	if result.Fields == nil {
		result.Fields = []intelligence.Field{}
	}
	if result.Tables == nil {
		result.Tables = []intelligence.Table{}
	}

	s.logger.Info("document parsed",
		"id", result.ID,
		"method", result.Meta.ExtractionMethod,
		"pages", result.Meta.Pages,
		"fields", len(result.Fields),
		"warnings", len(result.Meta.Warnings),
	)
	return result, nil
}

// extractWithProvider delegates the whole parse to a cloud provider
func (s *Service) extractWithProvider(ctx context.Context, data []byte, name string) (*intelligence.ParseResult, error) {
	provider, err := s.providers.Get(name)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err).WithContext("provider")
	}

	result, err := provider.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, checkpoint(ctx, "provider "+name)
		}
		return nil, err
	}

	for i := range result.Fields {
		if result.Fields[i].Validations == nil {
			s.validator.ValidateField(&result.Fields[i])
		}
	}
	result.Meta.ExtractionMethod = pdf.MethodCloud
	result.Meta.Provider = provider.Name()
	return result, nil
}

// extractLocal runs the text layer, optional OCR, detection, aggregation,
// validation and table detection in that order.
func (s *Service) extractLocal(ctx context.Context, data []byte) (*intelligence.ParseResult, error) {
	doc, err := s.textLayer.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, checkpoint(ctx, "text extraction")
		}
		// An unreadable text layer leaves OCR as the only source.
		s.logger.Warn("text layer unavailable", "err", err)
		doc = &pdf.Document{
			Method:   pdf.MethodText,
			Warnings: []string{pdferrors.WrapError(pdferrors.ErrorTypeMalformedPage, err).Error()},
		}
	}
	if err := checkpoint(ctx, "text extraction"); err != nil {
		return nil, err
	}

	scanned := pdf.IsScanned(doc, s.config.ScanTextThreshold)
	if scanned && s.config.EnableOCR {
		recognized, err := s.ocr.Extract(ctx, data, doc)
		if err != nil {
			if cerr := checkpoint(ctx, "ocr"); cerr != nil {
				return nil, cerr
			}
			return nil, err
		}
		doc = recognized
	}
	if err := checkpoint(ctx, "ocr"); err != nil {
		return nil, err
	}

	raw := s.detector.Detect(doc)
	raw = append(raw, s.formFields(data, doc)...)
	if err := checkpoint(ctx, "detection"); err != nil {
		return nil, err
	}

	fields := s.aggregator.Aggregate(raw)
	if err := checkpoint(ctx, "inference"); err != nil {
		return nil, err
	}

	s.validator.ValidateFields(fields)
	if err := checkpoint(ctx, "validation"); err != nil {
		return nil, err
	}

	method := doc.Method
	if method == "" {
		method = pdf.MethodText
	}
	return &intelligence.ParseResult{
		Fields: fields,
		Tables: s.tables.Detect(doc),
		Meta: intelligence.Meta{
			Scanned:          scanned,
			Pages:            doc.PageCount(),
			ExtractionMethod: method,
			Warnings:         doc.Warnings,
		},
	}, nil
}

// formFields converts filled AcroForm values into raw candidates
func (s *Service) formFields(data []byte, doc *pdf.Document) []intelligence.RawField {
	values, err := s.forms.ReadValues(data)
	if err != nil {
		s.logger.Warn("form fields unreadable", "err", err)
		doc.Warnings = append(doc.Warnings, pdferrors.WrapError(pdferrors.ErrorTypeMalformedPage, err).
			WithContext("acroform").Error())
		return nil
	}

	raw := make([]intelligence.RawField, 0, len(values))
	for _, v := range values {
		if v.Type == pdf.FormTypeButton || v.Type == pdf.FormTypeSignature {
			continue
		}
		rf, err := intelligence.NewRawField(v.Name, v.Value, v.BBox, max(v.Page, 1), FormFieldConfidence, v.Name+": "+v.Value)
		if err != nil {
			s.logger.Warn("dropping form field", "key", v.Name, "page", v.Page, "err", err)
			continue
		}
		raw = append(raw, rf)
	}
	return raw
}

// MatchFields maps extracted fields onto web form inputs
func (s *Service) MatchFields(ctx context.Context, fields []intelligence.Field, inputs []matching.DomInput) (*matching.Result, error) {
	return s.matcher.Match(ctx, fields, inputs)
}

// ValidateValue runs the validation rules of canonical against value
func (s *Service) ValidateValue(canonical, value string) []intelligence.Validation {
	return s.validator.Validate(canonical, value)
}

// Providers describes the registered cloud providers
func (s *Service) Providers() []cloud.Info {
	return s.providers.List()
}

// checkpoint converts a cancelled context into a timeout error naming the
// stage that was reached.
func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeTimeout, err).WithContext("cancelled after " + stage)
	}
	return nil
}
