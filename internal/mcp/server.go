package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/cloud"
	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/descriptions"
	"github.com/a3tai/mcp-pdf-forms/internal/intelligence"
	"github.com/a3tai/mcp-pdf-forms/internal/matching"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-forms/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pipeline.Service
	input     *pdf.InputValidator
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pipeline.Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := security.NewPathValidator(cfg.AllowedDir)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed at startup
	)

	s := &Server{
		config:    cfg,
		service:   service,
		input:     pdf.NewInputValidator(cfg.MaxFileSize).WithPathValidator(paths),
		mcpServer: mcpServer,
		logger:    logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	parseDocumentTool := mcp.NewTool(
		"parse_document",
		mcp.WithDescription(descriptions.ParseDocumentDescription),
		mcp.WithString("path",
			mcp.Description("Full path to the PDF file (use this or content_base64)"),
		),
		mcp.WithString("content_base64",
			mcp.Description("Base64 encoded PDF content (use this or path)"),
		),
		mcp.WithString("provider",
			mcp.Description("Cloud provider to use instead of local extraction: gemini, textract, documentai or local"),
		),
	)
	s.mcpServer.AddTool(parseDocumentTool, s.handleParseDocument)

	matchFieldsTool := mcp.NewTool(
		"match_fields",
		mcp.WithDescription(descriptions.MatchFieldsDescription),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description("JSON array of fields as returned by parse_document"),
		),
		mcp.WithString("inputs",
			mcp.Required(),
			mcp.Description("JSON array of inputs with selector, label_text, placeholder, aria_label, name and id"),
		),
	)
	s.mcpServer.AddTool(matchFieldsTool, s.handleMatchFields)

	validateFieldTool := mcp.NewTool(
		"validate_field",
		mcp.WithDescription(descriptions.ValidateFieldDescription),
		mcp.WithString("canonical",
			mcp.Required(),
			mcp.Description("Canonical field name, for example ssn or dob"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Value to validate"),
		),
	)
	s.mcpServer.AddTool(validateFieldTool, s.handleValidateField)

	listProvidersTool := mcp.NewTool(
		"list_providers",
		mcp.WithDescription(descriptions.ListProvidersDescription),
		mcp.WithNumber("pages",
			mcp.Description("Optional page count for a cost estimate"),
		),
	)
	s.mcpServer.AddTool(listProvidersTool, s.handleListProviders)

	serverInfoTool := mcp.NewTool(
		"server_info",
		mcp.WithDescription(descriptions.ServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleParseDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path, _ := args["path"].(string)
	encoded, _ := args["content_base64"].(string)
	provider, _ := args["provider"].(string)

	data, err := s.documentBytes(path, encoded)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.ExtractFields(ctx, data, pipeline.Options{Provider: provider})
	if err != nil {
		s.logger.Warn("parse_document failed", "path", path, "provider", provider, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

// documentBytes loads the document from exactly one of a path or inline content
func (s *Server) documentBytes(path, encoded string) ([]byte, error) {
	switch {
	case path != "" && encoded != "":
		return nil, fmt.Errorf("provide either path or content_base64, not both")
	case path != "":
		return s.input.ReadFile(path)
	case encoded != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, fmt.Errorf("content_base64 is not valid base64: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("one of path or content_base64 is required")
	}
}

func (s *Server) handleMatchFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawFields, err := request.RequireString("fields")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawInputs, err := request.RequireString("inputs")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var fields []intelligence.Field
	if err := json.Unmarshal([]byte(rawFields), &fields); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fields must be a JSON array of fields: %v", err)), nil
	}
	var inputs []matching.DomInput
	if err := json.Unmarshal([]byte(rawInputs), &inputs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inputs must be a JSON array of inputs: %v", err)), nil
	}

	result, err := s.service.MatchFields(ctx, fields, inputs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

func (s *Server) handleValidateField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canonical, err := request.RequireString("canonical")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !intelligence.IsCanonical(canonical) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown canonical field %q", canonical)), nil
	}

	return jsonResult(s.service.ValidateValue(canonical, value))
}

// providerListing is one row of list_providers output
type providerListing struct {
	cloud.Info
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
}

func (s *Server) handleListProviders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages := 0
	if v, ok := request.GetArguments()["pages"].(float64); ok {
		if v < 0 {
			return mcp.NewToolResultError("pages cannot be negative"), nil
		}
		pages = int(v)
	}

	infos := s.service.Providers()
	listing := make([]providerListing, 0, len(infos))
	for _, info := range infos {
		listing = append(listing, providerListing{
			Info:          info,
			EstimatedCost: info.CostPerPage * float64(pages),
		})
	}

	return jsonResult(listing)
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// Formatting methods
func (s *Server) formatServerInfo() string {
	cfg := s.config

	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s v%s - Server Information\n", cfg.ServerName, cfg.Version)
	fmt.Fprintf(&b, "📏 Max File Size: %d MB\n", cfg.MaxFileSize/(1024*1024))
	if cfg.AllowedDir != "" {
		fmt.Fprintf(&b, "📁 Allowed Directory: %s\n", cfg.AllowedDir)
	}
	fmt.Fprintf(&b, "🔍 OCR: %t (scan threshold %d characters per page)\n", cfg.EnableOCR, cfg.ScanTextThreshold)
	if cfg.DefaultProvider != "" {
		fmt.Fprintf(&b, "☁️  Default Provider: %s\n", cfg.DefaultProvider)
	}

	b.WriteString("\n🎚️  Thresholds:\n")
	fmt.Fprintf(&b, "  Inference floor: %.2f\n", cfg.InferenceFloor)
	fmt.Fprintf(&b, "  Auto-choose floor: %.2f\n", cfg.AutoChooseFloor)
	fmt.Fprintf(&b, "  Max candidates: %d\n", cfg.MaxCandidates)
	fmt.Fprintf(&b, "  Match tiers: high >= %.2f, medium >= %.2f, low >= %.2f\n", cfg.HighTier, cfg.MediumTier, cfg.LowFloor)

	b.WriteString("\n🛠️  Available Tools:\n")
	for _, tool := range descriptions.Tools() {
		fmt.Fprintf(&b, "\n• %s\n", tool.Name)
		fmt.Fprintf(&b, "  Description: %s\n", tool.Description)
		fmt.Fprintf(&b, "  Usage: %s\n", tool.Usage)
		fmt.Fprintf(&b, "  Parameters: %s\n", tool.Parameters)
	}

	b.WriteString("\n📚 Canonical Fields:\n")
	b.WriteString("  " + strings.Join(intelligence.CanonicalNames(), ", ") + "\n")

	return b.String()
}

// jsonResult renders v as indented JSON text
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch s.config.Mode {
	case config.ModeStdio:
		return s.runStdioMode(ctx)
	case config.ModeServer:
		return s.runServerMode(ctx)
	default:
		return fmt.Errorf("unsupported mode %q", s.config.Mode)
	}
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug("starting MCP server", "mode", config.ModeStdio)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server", "mode", config.ModeServer, "address", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve SSE: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down MCP server", "address", addr)
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		return nil
	}
}
