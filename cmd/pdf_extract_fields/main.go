package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/matching"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-forms/internal/pipeline"
)

// extractionOutput is printed when an inputs file is given
type extractionOutput struct {
	Result  *intelligence.ParseResult `json:"result"`
	Matches *matching.Result          `json:"matches"`
}

func main() {
	cfg, args, err := config.LoadWithArgs(os.Args[1:])
	if errors.Is(err, config.ErrVersionRequested) {
		fmt.Println("pdf_extract_fields (mcp-pdf-forms)")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if len(args) == 0 || len(args) > 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	logger := logging.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var inputsPath string
	if len(args) == 2 {
		inputsPath = args[1]
	}
	if err := run(ctx, cfg, args[0], inputsPath, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting fields: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "PDF Extract Fields - extract canonical form fields from a PDF document")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_extract_fields [OPTIONS] <pdf_file> [inputs.json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "With an inputs file (a JSON array of form inputs) the fields are also")
	fmt.Fprintln(w, "matched to the inputs. Options are the same as for mcp-pdf-forms, e.g.")
	fmt.Fprintln(w, "  pdf_extract_fields --provider=textract --aws-region=us-east-1 scan.pdf")
}

// run parses pdfPath and writes the result, plus matches when inputsPath is set, as JSON
func run(ctx context.Context, cfg *config.Config, pdfPath, inputsPath string, out io.Writer, logger *slog.Logger) error {
	var inputs []matching.DomInput
	if inputsPath != "" {
		raw, err := os.ReadFile(inputsPath)
		if err != nil {
			return fmt.Errorf("reading inputs: %w", err)
		}
		if err := json.Unmarshal(raw, &inputs); err != nil {
			return fmt.Errorf("inputs must be a JSON array of form inputs: %w", err)
		}
	}

	paths, err := security.NewPathValidator(cfg.AllowedDir)
	if err != nil {
		return err
	}
	data, err := pdf.NewInputValidator(cfg.MaxFileSize).WithPathValidator(paths).ReadFile(pdfPath)
	if err != nil {
		return err
	}

	service, closeService, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeService(); err != nil {
			logger.Warn("closing provider clients", "err", err)
		}
	}()

	result, err := service.ExtractFields(ctx, data, pipeline.Options{})
	if err != nil {
		return err
	}

	var output any = result
	if inputsPath != "" {
		matches, err := service.MatchFields(ctx, result.Fields, inputs)
		if err != nil {
			return err
		}
		output = extractionOutput{Result: result, Matches: matches}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
