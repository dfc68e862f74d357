package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
)

// pdfHeader must appear at the start of every document we accept.
const pdfHeader = "%PDF-"

// InputValidator rejects documents before any extraction work runs
type InputValidator struct {
	maxFileSize int64
	paths       *security.PathValidator
}

// NewInputValidator creates a validator with the specified size limit
func NewInputValidator(maxFileSize int64) *InputValidator {
	return &InputValidator{
		maxFileSize: maxFileSize,
	}
}

// WithPathValidator confines ReadFile to the validator's allowed directory
func (v *InputValidator) WithPathValidator(paths *security.PathValidator) *InputValidator {
	v.paths = paths
	return v
}

// ValidateBytes checks raw document bytes. Empty, oversized and non-PDF
// payloads are input errors; a PDF whose structure pdfcpu cannot parse
// is reported as corrupted data.
func (v *InputValidator) ValidateBytes(data []byte) error {
	if len(data) == 0 {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeEmptyInput, "document is empty")
	}

	if int64(len(data)) > v.maxFileSize {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeFileTooLarge,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize))
	}

	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), []byte(pdfHeader)) {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidHeader, "content is not a PDF document")
	}

	if err := v.validateStructure(data); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeCorruptedData, err).
			WithContext("pdf structure validation failed")
	}

	return nil
}

// validateStructure runs pdfcpu's relaxed validation over the document
func (v *InputValidator) validateStructure(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during validation: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.Validate(bytes.NewReader(data), conf)
}

// ReadFile loads a PDF from disk after checking the path, then validates its bytes.
func (v *InputValidator) ReadFile(filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput, "path cannot be empty")
	}

	if v.paths != nil {
		resolved, err := v.paths.ValidatePath(filePath)
		if err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err).WithContext("path")
		}
		filePath = resolved
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidInput, "file does not exist", filePath)
	}
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err).WithContext("cannot access file")
	}

	if fileInfo.IsDir() {
		return nil, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidInput, "path is a directory, not a file", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return nil, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidInput, "file is not a PDF", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeFileTooLarge,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), v.maxFileSize))
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err).WithContext("cannot read file")
	}

	if err := v.ValidateBytes(data); err != nil {
		return nil, err
	}
	return data, nil
}
