package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
)

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	badInputs := filepath.Join(dir, "inputs.json")
	require.NoError(t, os.WriteFile(badInputs, []byte(`{"selector":`), 0o600))
	notPDF := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notPDF, []byte("hello"), 0o600))

	tests := []struct {
		name    string
		pdfPath string
		inputs  string
		wantErr string
	}{
		{name: "missing pdf", pdfPath: filepath.Join(dir, "missing.pdf"), wantErr: "file does not exist"},
		{name: "not a pdf", pdfPath: notPDF, wantErr: "file is not a PDF"},
		{name: "missing inputs", pdfPath: notPDF, inputs: filepath.Join(dir, "none.json"), wantErr: "reading inputs"},
		{name: "malformed inputs", pdfPath: notPDF, inputs: badInputs, wantErr: "JSON array of form inputs"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), config.DefaultConfig(), tt.pdfPath, tt.inputs, &out, logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Zero(t, out.Len())
		})
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	assert.Contains(t, buf.String(), "pdf_extract_fields [OPTIONS] <pdf_file> [inputs.json]")
}
